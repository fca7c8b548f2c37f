package http

import (
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// maxTrackedChats bounds the limiter table; it is dropped wholesale when full.
const maxTrackedChats = 10000

var errRateLimited = errors.New("too many messages for this chat")

type chatLimiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	chats map[string]*rate.Limiter
}

func newChatLimiter(limit rate.Limit, burst int) *chatLimiter {
	if burst < 1 {
		burst = 1
	}
	return &chatLimiter{limit: limit, burst: burst, chats: make(map[string]*rate.Limiter)}
}

func (l *chatLimiter) allow(chatID string) bool {
	l.mu.Lock()
	lim, ok := l.chats[chatID]
	if !ok {
		if len(l.chats) >= maxTrackedChats {
			l.chats = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.chats[chatID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(chi.URLParam(r, "chatID")) {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
