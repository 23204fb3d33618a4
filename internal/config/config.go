package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Portal
	PortalURL          string
	PortalTimezone     string
	PortalLocation     *time.Location
	PortalAllowedPorts []int
	// PortalAllowPrivate は学校内ネットワークに設置されたポータルへの接続を許可する。
	PortalAllowPrivate bool

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort      string
	ShutdownTimeout time.Duration

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// LoadDotEnv はpathの.envファイルを環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が解釈できない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.PortalURL = os.Getenv("PORTAL_URL")
	if cfg.PortalURL == "" {
		missing = append(missing, "PORTAL_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.PortalTimezone = getEnvString("PORTAL_TIMEZONE", "Europe/Paris")
	loc, err := time.LoadLocation(cfg.PortalTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PORTAL_TIMEZONE %q: %w", cfg.PortalTimezone, err)
	}
	cfg.PortalLocation = loc

	ports, err := getEnvIntList("PORTAL_ALLOWED_PORTS", []int{80, 443})
	if err != nil {
		return nil, err
	}
	cfg.PortalAllowedPorts = ports
	cfg.PortalAllowPrivate = getEnvBool("PORTAL_ALLOW_PRIVATE", false)

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvIntList はカンマ区切りの整数リストを読み込む。解釈できない値はエラーにする。
func getEnvIntList(key string, defaultVal []int) ([]int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	var values []int
	for _, part := range strings.Split(v, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		values = append(values, i)
	}
	return values, nil
}
