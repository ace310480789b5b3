package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultPingTimeout はPingの既定のタイムアウト。
const DefaultPingTimeout = 2 * time.Second

// ErrUpstreamStatus は上流が5xxを返したことを表す。
var ErrUpstreamStatus = errors.New("上流がサーバーエラーを返しました")

// Client は上流サーバー用のHTTPクライアント。
type Client struct {
	// baseURL は上流サーバーのベースURL。
	baseURL *url.URL
	// transport はストリーム中継と死活確認で共有するトランスポート。
	transport *http.Transport
	// pingTimeout はPingの1回あたりのタイムアウト。
	pingTimeout time.Duration
}

// New は新しい上流サーバー用HTTPクライアントを生成する。
// baseURLには絶対URL（例: "http://127.0.0.1:8000"）を指定する。
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("上流URLのパースに失敗: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("上流URLのスキームが不正: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("上流URLにホストがありません: %q", baseURL)
	}

	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// SSEは圧縮せずにそのまま中継する
		DisableCompression: true,
	}

	return &Client{
		baseURL:     u,
		transport:   transport,
		pingTimeout: DefaultPingTimeout,
	}, nil
}

// BaseURL は上流サーバーのベースURLのコピーを返す。
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Transport はリバースプロキシに渡すトランスポートを返す。
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// SetPingTimeout はPingのタイムアウトを変更する。0以下は無視する。
func (c *Client) SetPingTimeout(d time.Duration) {
	if d > 0 {
		c.pingTimeout = d
	}
}

// Ping は上流サーバーの指定パスにGETリクエストを送り、到達可能かを確認する。
// 接続できない場合と5xxが返った場合にエラーを返す。4xxは到達可能とみなす。
func (c *Client) Ping(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+path, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}

	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()
	// ストリームの場合に備えて少しだけ読み捨てる
	_, _ = io.CopyN(io.Discard, resp.Body, 512)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status=%d", ErrUpstreamStatus, resp.StatusCode)
	}
	return nil
}

// CloseIdleConnections はアイドル状態の接続を閉じる。
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}
