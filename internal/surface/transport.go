package surface

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSurfaceUnreachable reports a request to a surface that is not
// connected. Broadcasts never return it; they silently skip.
var ErrSurfaceUnreachable = errors.New("surface: unreachable")

// Transport moves messages between surfaces. The core is agnostic to how
// delivery physically happens; implementations may drop messages
// (at-most-once) and must never block a caller indefinitely.
type Transport interface {
	// Send performs a request/response round trip to one surface.
	Send(ctx context.Context, surfaceID, action string, payload []byte) ([]byte, error)
	// Broadcast fans payload out to every other connected surface,
	// fire-and-forget.
	Broadcast(fromID, action string, payload []byte) error
}

// Handler is a surface's receiving side.
type Handler interface {
	HandleRequest(action string, payload []byte) ([]byte, error)
	HandleBroadcast(action string, payload []byte)
}

// InprocTransport connects surfaces living in one process. Each surface
// registers a handler; Send dispatches to the target directly and
// Broadcast fans out to everyone but the sender. The demo app and the
// tests both run on this.
type InprocTransport struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewInprocTransport() *InprocTransport {
	return &InprocTransport{handlers: make(map[string]Handler)}
}

// Connect registers a surface. Reconnecting replaces the old handler.
func (t *InprocTransport) Connect(surfaceID string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[surfaceID] = h
}

// Disconnect removes a surface; later sends to it fail with
// ErrSurfaceUnreachable.
func (t *InprocTransport) Disconnect(surfaceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, surfaceID)
}

func (t *InprocTransport) Send(ctx context.Context, surfaceID, action string, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	h, ok := t.handlers[surfaceID]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSurfaceUnreachable, surfaceID)
	}
	return h.HandleRequest(action, payload)
}

func (t *InprocTransport) Broadcast(fromID, action string, payload []byte) error {
	t.mu.RLock()
	targets := make([]Handler, 0, len(t.handlers))
	for id, h := range t.handlers {
		if id == fromID {
			continue
		}
		targets = append(targets, h)
	}
	t.mu.RUnlock()
	for _, h := range targets {
		h.HandleBroadcast(action, payload)
	}
	return nil
}

var _ Transport = (*InprocTransport)(nil)
