// Package pronote はPronoteポータルとの通信を提供する。
// appelfonction 形式の関数呼び出しと、応答に含まれる型付き値の解釈を含む。
package pronote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/hitoshi/schoolprofile/internal/model"
)

// UserParametersFunction はユーザーパラメータを返すポータル関数名。
const UserParametersFunction = "ParametresUtilisateur"

// MetricsRecorder はポータル呼び出しのメトリクス記録先。
type MetricsRecorder interface {
	RecordFetchSuccess(function string)
	RecordFetchFailure(function string, reason string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// StatusError はポータルが200以外のステータスを返したことを表す。
type StatusError struct {
	Function   string
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("portal function %s returned status %d", e.Function, e.StatusCode)
}

// PortalError はポータルが応答本文でエラーを返したことを表す。
// セッション切れなどは200のまま Erreur で通知される。
type PortalError struct {
	Function string
	Kind     int
	Title    string
}

// Error はerrorインターフェースを実装する。
func (e *PortalError) Error() string {
	return fmt.Sprintf("portal function %s failed: %s (kind %d)", e.Function, e.Title, e.Kind)
}

type callRequest struct {
	Session int            `json:"session"`
	Name    string         `json:"nom"`
	Data    map[string]any `json:"donneesSec"`
}

type callResponse struct {
	Name   string `json:"nom"`
	Secure struct {
		Data json.RawMessage `json:"donnees"`
	} `json:"donneesSec"`
	Error *struct {
		G     int    `json:"G"`
		Titre string `json:"Titre"`
	} `json:"Erreur"`
}

// Client はポータルの appelfonction エンドポイントのクライアント。
// 1回の呼び出しにつき1回のHTTPリクエストを送り、再試行は行わない。
// クッキーは呼び出しごとに新しいCookieJarで保持し、セッション間で共有しない。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     MetricsRecorder
	baseURL     *url.URL
	maxBodySize int64
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	httpClient *http.Client,
	logger *slog.Logger,
	metrics MetricsRecorder,
	baseURL *url.URL,
	maxBodySize int64,
) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		metrics:     metrics,
		baseURL:     baseURL,
		maxBodySize: maxBodySize,
	}
}

// NewCookieJar はポータルのセッションクッキーを保持するCookieJarを生成する。
func NewCookieJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// sessionClient は共有のhttpClientを複製し、この呼び出し専用のCookieJarを設定する。
func (c *Client) sessionClient() (*http.Client, error) {
	jar, err := NewCookieJar()
	if err != nil {
		return nil, fmt.Errorf("CookieJarの作成に失敗: %w", err)
	}
	client := *c.httpClient
	client.Jar = jar
	return &client, nil
}

// FetchUserParameters はユーザーパラメータを取得する。
func (c *Client) FetchUserParameters(ctx context.Context, session model.Session) (*UserParameters, error) {
	var params UserParameters
	if err := c.Call(ctx, session, UserParametersFunction, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// Call はポータル関数を呼び出し、応答の donneesSec.donnees をoutにデコードする。
// ネットワークエラーやコンテキストのキャンセルはラップせずにそのまま返す。
func (c *Client) Call(ctx context.Context, session model.Session, function string, out any) error {
	start := time.Now()

	endpoint := c.baseURL.JoinPath("appelfonction", strconv.Itoa(session.Space), strconv.Itoa(session.ID))

	body, err := json.Marshal(callRequest{
		Session: session.ID,
		Name:    function,
		Data:    map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("リクエストのエンコードに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SchoolProfile/1.0")

	httpClient, err := c.sessionClient()
	if err != nil {
		return err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger.Error("ポータルの呼び出しに失敗しました",
			slog.String("function", function),
			slog.Int("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordFetchFailure(function, "transport")
		return err
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)
	c.metrics.RecordFetchLatency(time.Since(start))

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ポータルがエラーステータスを返しました",
			slog.String("function", function),
			slog.Int("session_id", session.ID),
			slog.Int("http_status", resp.StatusCode),
		)
		c.metrics.RecordFetchFailure(function, "status")
		return &StatusError{Function: function, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		c.metrics.RecordFetchFailure(function, "read")
		return fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}

	var envelope callResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Error("ポータルのレスポンスのパースに失敗しました",
			slog.String("function", function),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordFetchFailure(function, "decode")
		return fmt.Errorf("レスポンスJSONのパースに失敗: %w", err)
	}

	if envelope.Error != nil {
		c.metrics.RecordFetchFailure(function, "portal")
		return &PortalError{Function: function, Kind: envelope.Error.G, Title: envelope.Error.Titre}
	}

	if len(envelope.Secure.Data) == 0 {
		c.metrics.RecordFetchFailure(function, "decode")
		return &model.MalformedPayloadError{Path: "donneesSec.donnees"}
	}
	if err := json.Unmarshal(envelope.Secure.Data, out); err != nil {
		c.metrics.RecordFetchFailure(function, "decode")
		return &model.MalformedPayloadError{Path: "donneesSec.donnees", Err: err}
	}

	c.metrics.RecordFetchSuccess(function)
	c.logger.Info("ポータル関数の呼び出しが完了しました",
		slog.String("function", function),
		slog.Int("session_id", session.ID),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
