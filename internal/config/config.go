package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/ticktick-mcp-gateway/pkg/oauth"
	"gopkg.in/yaml.v3"
)

// 既定値。
const (
	DefaultPort            = "8080"
	DefaultUpstreamURL     = "http://127.0.0.1:8000"
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultReadyTimeout    = 2 * time.Second
	DefaultTokenRateLimit  = 5.0
	DefaultTokenRateBurst  = 10
)

// 上限値。
const (
	// MaxClockSkew は検証時に許容する時計のずれの上限。
	MaxClockSkew = 5 * time.Second
	// MaxReadyTimeout はレディネス確認で上流を待つ時間の上限。/readyのリクエスト期限より短くする。
	MaxReadyTimeout = 4 * time.Second
	// MaxSeconds は秒数で指定する設定値の上限（1年）。
	MaxSeconds = 365 * 24 * 60 * 60
)

var (
	// ErrInvalid は設定値が不正であることを表す。
	ErrInvalid = errors.New("設定値が不正です")
	// ErrNoClients はクライアントが1件も登録されていないことを表す。
	ErrNoClients = errors.New("OAuthクライアントが1件も登録されていません")
)

// Config はゲートウェイの設定。読み込み後は変更しない。
type Config struct {
	// Port はリッスンポート。
	Port string
	// Clients は登録済みのクライアント資格情報。
	Clients []oauth.ClientCredential
	// SigningKey はHMAC-SHA256の署名鍵。
	SigningKey []byte
	// EphemeralKey は署名鍵が起動時に生成されたものかどうか。
	EphemeralKey bool
	// TokenTTL はアクセストークンの有効期間。
	TokenTTL time.Duration
	// TokenIssuer はトークンのissクレーム。
	TokenIssuer string
	// ClockSkew はトークン検証時の許容誤差。
	ClockSkew time.Duration
	// UpstreamURL は内部のツール実行エンドポイントのベースURL。
	UpstreamURL string
	// UpstreamTimeout はストリーム以外の中継のタイムアウト。
	UpstreamTimeout time.Duration
	// ReadyTimeout は/readyで上流の死活を確認する際のタイムアウト。
	ReadyTimeout time.Duration
	// PublicURL は外部から見たゲートウェイのオリジン。空の場合はリクエストから組み立てる。
	PublicURL string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// TokenRateLimit は送信元IPごとのトークン発行レート（毎秒）。0で無効。
	TokenRateLimit float64
	// TokenRateBurst はトークン発行レートのバースト数。
	TokenRateBurst int
	// MetricsEnabled は /metrics を公開するかどうか。
	MetricsEnabled bool
	// AuditDBPath は監査ログのSQLiteファイルパス。空の場合は記録しない。
	AuditDBPath string
}

// Summary は秘密情報を含まない設定の要約を返す。
func (c *Config) Summary() string {
	return fmt.Sprintf("port=%s clients=%d token_ttl=%s issuer=%s upstream=%s ephemeral_key=%t metrics=%t audit=%t",
		c.Port, len(c.Clients), c.TokenTTL, c.TokenIssuer, c.UpstreamURL, c.EphemeralKey, c.MetricsEnabled, c.AuditDBPath != "")
}

// LookupFunc は環境変数の参照関数。os.LookupEnvと同じ形。
type LookupFunc func(key string) (string, bool)

// Load は環境変数（とCONFIG_FILEが指すYAMLファイル）から設定を読み込む。
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom はlookupから設定を読み込む。
func LoadFrom(lookup LookupFunc) (*Config, error) {
	src := &source{lookup: lookup}
	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		file, err := readFile(path, lookup)
		if err != nil {
			return nil, err
		}
		src.file = file
	}
	return build(src)
}

// source は環境変数とYAMLファイルの値をまとめて参照する。
type source struct {
	lookup LookupFunc
	file   map[string]string
}

// get はnames の順に環境変数を探し、無ければ先頭の名前に対応するYAMLのキーを参照する。
func (s *source) get(names ...string) string {
	for _, name := range names {
		if v, ok := s.lookup(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	for _, name := range names {
		if v, ok := s.file[strings.ToLower(name)]; ok && v != "" {
			return v
		}
	}
	return ""
}

func build(src *source) (*Config, error) {
	cfg := &Config{
		Port:            DefaultPort,
		TokenTTL:        oauth.DefaultTTL,
		TokenIssuer:     oauth.DefaultIssuer,
		UpstreamURL:     DefaultUpstreamURL,
		UpstreamTimeout: DefaultUpstreamTimeout,
		ReadyTimeout:    DefaultReadyTimeout,
		TokenRateLimit:  DefaultTokenRateLimit,
		TokenRateBurst:  DefaultTokenRateBurst,
		MetricsEnabled:  true,
	}

	if v := src.get("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: PORT=%q はポート番号として不正です", ErrInvalid, v)
		}
		cfg.Port = v
	}

	clients, err := oauth.ParseClients(src.get("OAUTH_CLIENTS", "MCP_OAUTH_CLIENTS"))
	if err != nil {
		return nil, fmt.Errorf("%w: OAUTH_CLIENTS: %w", ErrInvalid, err)
	}
	if len(clients) == 0 {
		return nil, ErrNoClients
	}
	cfg.Clients = clients

	if v := src.get("OAUTH_SIGNING_KEY", "MCP_OAUTH_SIGNING_KEY"); v != "" {
		key, err := oauth.DecodeSigningKey(v)
		if err != nil {
			// 鍵そのものはエラーメッセージに含めない
			return nil, fmt.Errorf("%w: OAUTH_SIGNING_KEY: %w", ErrInvalid, err)
		}
		cfg.SigningKey = key
	} else {
		key, err := oauth.GenerateSigningKey(oauth.MinSigningKeyBytes)
		if err != nil {
			return nil, fmt.Errorf("署名鍵の生成に失敗: %w", err)
		}
		cfg.SigningKey = key
		cfg.EphemeralKey = true
		log.Printf("[Config] 警告: OAUTH_SIGNING_KEY が未設定のため一時的な署名鍵を生成しました。再起動すると発行済みトークンは無効になります")
	}

	if v := src.get("TOKEN_EXPIRY_SECONDS", "MCP_TOKEN_EXPIRY"); v != "" {
		d, err := parseSeconds("TOKEN_EXPIRY_SECONDS", v)
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: TOKEN_EXPIRY_SECONDS は正の値を指定してください: %q", ErrInvalid, v)
		}
		cfg.TokenTTL = d
	}

	if v := src.get("TOKEN_ISSUER"); v != "" {
		cfg.TokenIssuer = v
	}

	if v := src.get("CLOCK_SKEW_SECONDS"); v != "" {
		d, err := parseSeconds("CLOCK_SKEW_SECONDS", v)
		if err != nil {
			return nil, err
		}
		if d < 0 || d > MaxClockSkew {
			return nil, fmt.Errorf("%w: CLOCK_SKEW_SECONDS は0から%dの範囲で指定してください: %q", ErrInvalid, int(MaxClockSkew.Seconds()), v)
		}
		cfg.ClockSkew = d
	}

	if v := src.get("UPSTREAM_URL", "FASTMCP_SERVER_URL"); v != "" {
		cfg.UpstreamURL = v
	}
	if err := validateAbsoluteURL("UPSTREAM_URL", cfg.UpstreamURL); err != nil {
		return nil, err
	}
	cfg.UpstreamURL = strings.TrimRight(cfg.UpstreamURL, "/")

	if v := src.get("UPSTREAM_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds("UPSTREAM_TIMEOUT_SECONDS", v)
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: UPSTREAM_TIMEOUT_SECONDS は正の値を指定してください: %q", ErrInvalid, v)
		}
		cfg.UpstreamTimeout = d
	}

	if v := src.get("READY_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds("READY_TIMEOUT_SECONDS", v)
		if err != nil {
			return nil, err
		}
		if d <= 0 || d > MaxReadyTimeout {
			return nil, fmt.Errorf("%w: READY_TIMEOUT_SECONDS は1から%dの範囲で指定してください: %q", ErrInvalid, int(MaxReadyTimeout.Seconds()), v)
		}
		cfg.ReadyTimeout = d
	}

	if v := src.get("PUBLIC_URL"); v != "" {
		if err := validateAbsoluteURL("PUBLIC_URL", v); err != nil {
			return nil, err
		}
		cfg.PublicURL = strings.TrimRight(v, "/")
	}

	cfg.AllowedOrigins = splitList(src.get("ALLOWED_ORIGINS"))

	if v := src.get("TOKEN_RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return nil, fmt.Errorf("%w: TOKEN_RATE_LIMIT=%q は0以上の数値を指定してください", ErrInvalid, v)
		}
		cfg.TokenRateLimit = rps
	}
	if v := src.get("TOKEN_RATE_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil || burst < 0 {
			return nil, fmt.Errorf("%w: TOKEN_RATE_BURST=%q は0以上の整数を指定してください", ErrInvalid, v)
		}
		cfg.TokenRateBurst = burst
	}

	if v := src.get("METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: METRICS_ENABLED=%q は真偽値を指定してください", ErrInvalid, v)
		}
		cfg.MetricsEnabled = enabled
	}

	cfg.AuditDBPath = src.get("AUDIT_DB_PATH")

	return cfg, nil
}

// parseSeconds は秒数の設定値をtime.Durationに変換する。
// time.Durationへの変換で桁あふれしないよう、MaxSecondsを超える値は拒否する。
func parseSeconds(name, v string) (time.Duration, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q は整数ではありません", ErrInvalid, name, v)
	}
	if n > MaxSeconds || n < -MaxSeconds {
		return 0, fmt.Errorf("%w: %s=%q は%d秒以下で指定してください", ErrInvalid, name, v, MaxSeconds)
	}
	return time.Duration(n) * time.Second, nil
}

func validateAbsoluteURL(name, v string) error {
	u, err := url.Parse(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s=%q はhttp(s)の絶対URLを指定してください", ErrInvalid, name, v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars は ${VAR} を環境変数の値に置き換える。未設定の変数は空文字列になる。
func expandEnvVars(s string, lookup LookupFunc) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		v, _ := lookup(envRef.FindStringSubmatch(match)[1])
		return v
	})
}

// readFile はYAMLの設定ファイルを読み込み、キーを小文字にした文字列マップを返す。
// リストはカンマ区切りの文字列に変換する。
func readFile(path string, lookup LookupFunc) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data), lookup)), &raw); err != nil {
		return nil, fmt.Errorf("%w: 設定ファイルのパースに失敗: %w", ErrInvalid, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		s, err := scalarString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, k, err)
		}
		values[strings.ToLower(k)] = s
	}
	return values, nil
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, err := scalarString(item)
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return strings.Join(items, ","), nil
	case map[string]any:
		return "", errors.New("入れ子のマッピングには対応していません")
	default:
		return fmt.Sprint(t), nil
	}
}
