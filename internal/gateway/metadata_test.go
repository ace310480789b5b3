package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestExternalOrigin はディスカバリ文書に載るオリジンの決定順を検証する。
func TestExternalOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		publicURL string
		headers   map[string]string
		want      string
	}{
		{
			name: "リクエストのホストを使うこと",
			want: "http://gateway.local",
		},
		{
			name: "X-Forwarded-ProtoとX-Forwarded-Hostを優先すること",
			headers: map[string]string{
				"X-Forwarded-Proto": "https",
				"X-Forwarded-Host":  "mcp.example.com, internal.local",
			},
			want: "https://mcp.example.com",
		},
		{
			name:      "PUBLIC_URLが最優先であること",
			publicURL: "https://public.example.com",
			headers: map[string]string{
				"X-Forwarded-Proto": "http",
				"X-Forwarded-Host":  "ignored.example.com",
			},
			want: "https://public.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := newTestConfig(closedUpstreamURL(t))
			cfg.PublicURL = tt.publicURL
			s := newTestServer(t, cfg)

			req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
			req.Host = "gateway.local"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
			}
			body := decodeJSON(t, w.Body.Bytes())
			if body["issuer"] != tt.want {
				t.Errorf("issuer = %v, want %q", body["issuer"], tt.want)
			}
			if body["token_endpoint"] != tt.want+"/oauth/token" {
				t.Errorf("token_endpoint = %v, want %q", body["token_endpoint"], tt.want+"/oauth/token")
			}
		})
	}
}

// TestMetadataDocuments は各ディスカバリ文書の内容を検証する。
func TestMetadataDocuments(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(closedUpstreamURL(t))
	cfg.PublicURL = "https://mcp.example.com"
	s := newTestServer(t, cfg)

	get := func(t *testing.T, path string) map[string]any {
		t.Helper()

		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s のステータスコード = %d, want %d", path, w.Code, http.StatusOK)
		}
		return decodeJSON(t, w.Body.Bytes())
	}

	t.Run("ルートが各文書の場所を返すこと", func(t *testing.T) {
		t.Parallel()

		body := get(t, "/")
		meta, _ := body["metadata"].(map[string]any)
		if meta["mcp"] != "https://mcp.example.com/.well-known/mcp.json" {
			t.Errorf("metadata.mcp = %v", meta["mcp"])
		}
		if meta["protected_resource"] != "https://mcp.example.com/.well-known/oauth-protected-resource" {
			t.Errorf("metadata.protected_resource = %v", meta["protected_resource"])
		}
	})

	t.Run("mcp.jsonがトークンURLとエンドポイントを返すこと", func(t *testing.T) {
		t.Parallel()

		body := get(t, "/.well-known/mcp.json")
		if body["name"] != "TickTick MCP Server" {
			t.Errorf("name = %v", body["name"])
		}
		authn, _ := body["authentication"].(map[string]any)
		if authn["type"] != "oauth2-client-credentials" {
			t.Errorf("authentication.type = %v", authn["type"])
		}
		if authn["token_url"] != "https://mcp.example.com/oauth/token" {
			t.Errorf("authentication.token_url = %v", authn["token_url"])
		}
		endpoints, _ := body["endpoints"].(map[string]any)
		if endpoints["sse"] != "https://mcp.example.com/sse" {
			t.Errorf("endpoints.sse = %v", endpoints["sse"])
		}
	})

	t.Run("認可サーバーメタデータがclient_credentialsのみを公開すること", func(t *testing.T) {
		t.Parallel()

		body := get(t, "/.well-known/oauth-authorization-server")
		grants, _ := body["grant_types_supported"].([]any)
		if len(grants) != 1 || grants[0] != "client_credentials" {
			t.Errorf("grant_types_supported = %v", body["grant_types_supported"])
		}
	})

	t.Run("保護リソースメタデータが認可サーバーを指すこと", func(t *testing.T) {
		t.Parallel()

		body := get(t, "/.well-known/oauth-protected-resource")
		if body["resource"] != "https://mcp.example.com" {
			t.Errorf("resource = %v", body["resource"])
		}
		servers, _ := body["authorization_servers"].([]any)
		if len(servers) != 1 || servers[0] != "https://mcp.example.com" {
			t.Errorf("authorization_servers = %v", body["authorization_servers"])
		}
	})
}
