package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/apierror"
	"golang.org/x/time/rate"
)

// maxTrackedKeys はこれを超えたら古いエントリを掃除する件数。
const maxTrackedKeys = 10000

// staleAfter はこの時間アクセスの無いキーを掃除の対象にする。
const staleAfter = 10 * time.Minute

// KeyRateLimiter はキー（送信元IP）ごとのトークンバケットを管理する。
type KeyRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyRateLimiter は毎秒rps件、最大burst件のレート制限を生成する。
// rpsが0以下の場合はnilを返し、レート制限を無効にする。
func NewKeyRateLimiter(rps float64, burst int) *KeyRateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &KeyRateLimiter{
		limiters: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow はkeyのリクエストを許可するか判定する。
func (l *KeyRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedKeys {
			l.prune(now)
		}
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// prune は一定時間アクセスの無いキーを削除する。mu を保持した状態で呼ぶこと。
func (l *KeyRateLimiter) prune(now time.Time) {
	for key, v := range l.limiters {
		if now.Sub(v.lastSeen) > staleAfter {
			delete(l.limiters, key)
		}
	}
}

// RateLimit は送信元IPごとにレート制限を行うGinミドルウェアを返す。
// lがnilの場合は何もしない。
func RateLimit(l *KeyRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", strconv.Itoa(1))
			apierror.Abort(c, apierror.ErrRateLimited)
			return
		}
		c.Next()
	}
}
