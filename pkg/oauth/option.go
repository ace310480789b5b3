package oauth

import "time"

// Option はIssuerとValidatorの挙動を変更する。
type Option func(*options)

type options struct {
	// now は現在時刻を返す関数。テストで時計を差し替えるために使う。
	now func() time.Time
	// issuer はトークンのissクレームに設定・検証する発行者名。
	issuer string
	// leeway は有効期限検証時に許容する時計のずれ。
	leeway time.Duration
}

func newOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		issuer: DefaultIssuer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock は現在時刻の取得に使う関数を指定する。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIssuerName はissクレームの値を指定する。空文字列の場合はDefaultIssuerのまま。
func WithIssuerName(issuer string) Option {
	return func(o *options) {
		if issuer != "" {
			o.issuer = issuer
		}
	}
}

// WithLeeway は有効期限検証で許容する時計のずれを指定する。
func WithLeeway(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.leeway = d
		}
	}
}
