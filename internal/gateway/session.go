package gateway

import (
	"context"
	"sync"
)

// SessionHub feeds identity changes from the session endpoints to the
// cart engine's watcher. Only the latest identity matters, so when the
// buffer is full the oldest emission is dropped.
type SessionHub struct {
	mu sync.Mutex
	ch chan string
}

func NewSessionHub() *SessionHub {
	return &SessionHub{ch: make(chan string, 16)}
}

func (h *SessionHub) Identities(ctx context.Context) <-chan string {
	return h.ch
}

func (h *SessionHub) SignIn(userID string) {
	h.emit(userID)
}

func (h *SessionHub) SignOut() {
	h.emit("")
}

func (h *SessionHub) emit(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		select {
		case h.ch <- id:
			return
		default:
		}
		select {
		case <-h.ch:
		default:
		}
	}
}
