package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client, err := New("http://127.0.0.1:8000/")
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if got := client.BaseURL().String(); got != "http://127.0.0.1:8000" {
			t.Errorf("BaseURL() = %q, want %q", got, "http://127.0.0.1:8000")
		}
		if client.Transport() == nil {
			t.Fatal("Transport()がnil")
		}
	})

	t.Run("BaseURLの変更がクライアントに影響しないこと", func(t *testing.T) {
		t.Parallel()

		client, err := New("http://127.0.0.1:8000")
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		u := client.BaseURL()
		u.Host = "example.com"
		if got := client.BaseURL().Host; got != "127.0.0.1:8000" {
			t.Errorf("Host = %q, want %q", got, "127.0.0.1:8000")
		}
	})

	tests := []struct {
		name    string
		baseURL string
	}{
		{name: "スキームが無い場合エラーになること", baseURL: "127.0.0.1:8000"},
		{name: "未対応のスキームの場合エラーになること", baseURL: "ftp://example.com"},
		{name: "ホストが無い場合エラーになること", baseURL: "http://"},
		{name: "相対パスの場合エラーになること", baseURL: "/upstream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := New(tt.baseURL); err == nil {
				t.Errorf("New(%q) error = nil, want error", tt.baseURL)
			}
		})
	}
}

// TestPing はPing関数を検証する。
func TestPing(t *testing.T) {
	t.Parallel()

	t.Run("上流が応答する場合nilを返すこと", func(t *testing.T) {
		t.Parallel()

		var gotPath string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		client, err := New(ts.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if err := client.Ping(context.Background(), "/"); err != nil {
			t.Errorf("Ping() error = %v, want nil", err)
		}
		if gotPath != "/" {
			t.Errorf("path = %q, want %q", gotPath, "/")
		}
	})

	t.Run("上流が5xxを返す場合エラーになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		client, err := New(ts.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		err = client.Ping(context.Background(), "/")
		if !errors.Is(err, ErrUpstreamStatus) {
			t.Errorf("Ping() error = %v, want ErrUpstreamStatus", err)
		}
	})

	t.Run("上流が停止している場合エラーになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		client, err := New(url)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if err := client.Ping(context.Background(), "/"); err == nil {
			t.Error("Ping() error = nil, want error")
		}
	})

	t.Run("応答が遅い場合タイムアウトすること", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer ts.Close()
		defer close(release)

		client, err := New(ts.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		client.SetPingTimeout(50 * time.Millisecond)

		start := time.Now()
		if err := client.Ping(context.Background(), "/"); err == nil {
			t.Error("Ping() error = nil, want error")
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("Ping()に %v かかった", elapsed)
		}
	})
}
