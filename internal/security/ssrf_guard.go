// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// defaultPorts はポータルへの接続で許可されるポート。
var defaultPorts = []int{80, 443}

// allowedSchemes はポータルURLで許可されるスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はポータルURLとして拒否するネットワーク範囲。
// safeurlはDNS解決後のIPアドレスもDialerで検証するため、ここでは静的な事前検証のみ行う。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// PortalGuard はポータルへの外向き通信をSSRFから保護する。
// 設定されたポータルURLの検証と、内部ネットワークへ接続しないHTTPクライアントの生成を行う。
type PortalGuard struct {
	allowedPorts []int
}

// NewPortalGuard はPortalGuardを生成する。ports を省略した場合は80と443のみ許可する。
func NewPortalGuard(ports ...int) *PortalGuard {
	if len(ports) == 0 {
		ports = defaultPorts
	}
	return &PortalGuard{allowedPorts: ports}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// jar はポータルのセッションクッキーの保持に使う。nilの場合はクッキーを保持しない。
func (g *PortalGuard) NewSafeClient(timeout time.Duration, jar http.CookieJar) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.allowedPorts...).
		Build()

	client := safeurl.Client(config).Client
	client.Jar = jar
	return client
}

// ValidatePortalURL はポータルのベースURLを検証し、パース済みのURLを返す。
// DNS解決は行わない。
func (g *PortalGuard) ValidatePortalURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !slices.Contains(allowedSchemes, scheme) {
		return nil, fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if port := parsed.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || !slices.Contains(g.allowedPorts, n) {
			return nil, fmt.Errorf("disallowed port: %s (allowed: %v)", port, g.allowedPorts)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, fmt.Errorf("blocked IP address: %s", ip.String())
		}
	} else if strings.EqualFold(host, "localhost") {
		return nil, fmt.Errorf("blocked host: %s", host)
	}

	if parsed.User != nil {
		return nil, fmt.Errorf("credentials in portal URL are not allowed")
	}

	return parsed, nil
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
