package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientWindow struct {
	count int
	start time.Time
}

// RateLimiter allows a fixed number of requests per client per window.
// At most maxClients windows are tracked; expired windows are evicted first,
// then the oldest.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientWindow
	limit      int
	window     time.Duration
	maxClients int
	now        func() time.Time
}

func NewRateLimiter(limit int, window time.Duration, maxClients int) *RateLimiter {
	return &RateLimiter{
		clients:    make(map[string]*clientWindow),
		limit:      limit,
		window:     window,
		maxClients: maxClients,
		now:        time.Now,
	}
}

// Allow records a request for key and reports whether it is within the
// limit. When it is not, retryAfter is the time until the window resets.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	client, exists := rl.clients[key]
	if exists && now.Sub(client.start) > rl.window {
		delete(rl.clients, key)
		exists = false
	}

	if !exists {
		if len(rl.clients) >= rl.maxClients {
			rl.evict(now)
		}
		rl.clients[key] = &clientWindow{count: 1, start: now}
		return true, rl.limit - 1, 0
	}

	if client.count >= rl.limit {
		return false, 0, client.start.Add(rl.window).Sub(now)
	}

	client.count++
	return true, rl.limit - client.count, 0
}

// evict drops expired windows, then the oldest ones until there is room
func (rl *RateLimiter) evict(now time.Time) {
	var oldestKey string
	var oldest time.Time

	for key, client := range rl.clients {
		if now.Sub(client.start) > rl.window {
			delete(rl.clients, key)
			continue
		}
		if oldestKey == "" || client.start.Before(oldest) {
			oldestKey, oldest = key, client.start
		}
	}

	if len(rl.clients) >= rl.maxClients && oldestKey != "" {
		delete(rl.clients, oldestKey)
	}
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, retryAfter := rl.Allow(c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:      true,
				Message:    "Rate limit exceeded. Please try again later.",
				RetryAfter: &seconds,
			})
			return
		}

		c.Next()
	}
}
