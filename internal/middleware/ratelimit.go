package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"chat-backend/internal/errs"
)

type keyLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

type rateLimiter struct {
	mu    sync.Mutex
	byKey map[string]*keyLimiter
	rps   rate.Limit
	burst int
	ttl   time.Duration
	stop  chan struct{}
}

func newRateLimiter(rps rate.Limit, burst int, ttl time.Duration) *rateLimiter {
	return &rateLimiter{
		byKey: make(map[string]*keyLimiter),
		rps:   rps,
		burst: burst,
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if kl, ok := rl.byKey[key]; ok {
		kl.seen = time.Now()
		return kl.lim
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.byKey[key] = &keyLimiter{lim: lim, seen: time.Now()}
	return lim
}

func (rl *rateLimiter) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, kl := range rl.byKey {
				if now.Sub(kl.seen) > rl.ttl {
					delete(rl.byKey, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// RateLimit returns a per-client token bucket middleware keyed on IP and
// route. Used on the auth endpoints to slow credential stuffing.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	rl := newRateLimiter(rate.Limit(rps), burst, 2*time.Minute)
	go rl.gc()
	return func(c *gin.Context) {
		key := clientIP(c.Request.RemoteAddr) + "|" + c.FullPath()
		if !rl.get(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   gin.H{"code": errs.CodeRateLimited, "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
