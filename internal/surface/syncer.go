package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/subgloss/subgloss/internal/selection"
)

// SyncConfig tunes the reconciliation protocol.
type SyncConfig struct {
	// ResyncMinInterval spaces canonical resync requests so bursts of DOM
	// mutations do not turn into a request storm.
	ResyncMinInterval time.Duration
	// StalenessWindow is how recently a local manual edit must have
	// happened for an incoming broadcast to be treated as a stale echo.
	StalenessWindow time.Duration
}

// DefaultSyncConfig returns the protocol defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		ResyncMinInterval: 600 * time.Millisecond,
		StalenessWindow:   50 * time.Millisecond,
	}
}

// Syncer runs the reconciliation protocol for one surface. The surface
// that captured the original sentence structure (the overlay) is the
// owner: its Selection Order is canonical, and other surfaces resync
// against it after local edits rather than trusting their own mirror.
// Syncer methods are driven by the surface's single event loop.
type Syncer struct {
	surfaceID string
	ownerID   string
	store     *selection.Store
	transport Transport
	cfg       SyncConfig
	log       *zap.Logger
	now       func() time.Time

	resyncInFlight bool
	lastResync     time.Time
	remoteBusy     bool

	// OnRemoteChange, when set, is called after a remote snapshot was
	// applied so the rendering layer can redraw.
	OnRemoteChange func()
}

// NewSyncer builds the protocol endpoint for surfaceID. ownerID names the
// surface holding the canonical order (may equal surfaceID).
func NewSyncer(surfaceID, ownerID string, store *selection.Store, transport Transport, cfg SyncConfig, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{
		surfaceID: surfaceID,
		ownerID:   ownerID,
		store:     store,
		transport: transport,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// SetClock replaces the time source (tests).
func (s *Syncer) SetClock(now func() time.Time) { s.now = now }

// SurfaceID returns this endpoint's id.
func (s *Syncer) SurfaceID() string { return s.surfaceID }

// IsOwner reports whether this surface holds the canonical order.
func (s *Syncer) IsOwner() bool { return s.surfaceID == s.ownerID }

// RemoteAnalyzing reports the advisory analyzing flag last broadcast by
// another surface. Rendering uses it to disable word clicks; it never
// drives the state machine.
func (s *Syncer) RemoteAnalyzing() bool { return s.remoteBusy }

// AfterLocalMutation publishes the local selection after an edit. The
// snapshot broadcast is best-effort; a non-owner surface additionally
// requests the canonical order from the owner, because its own last-known
// snapshot is not authoritative when two surfaces mutate concurrently.
func (s *Syncer) AfterLocalMutation(ctx context.Context) {
	s.broadcastSelection()
	if !s.IsOwner() {
		if err := s.Resync(ctx); err != nil {
			s.log.Warn("canonical resync failed", zap.Error(err))
		}
	}
}

// Resync fetches the owner's canonical Selection Order, applies it, and
// republishes it. Throttled: at most one in flight and no more than one
// per ResyncMinInterval; throttled calls are a silent no-op.
func (s *Syncer) Resync(ctx context.Context) error {
	now := s.now()
	if s.resyncInFlight || (!s.lastResync.IsZero() && now.Sub(s.lastResync) < s.cfg.ResyncMinInterval) {
		return nil
	}
	s.resyncInFlight = true
	s.lastResync = now
	defer func() { s.resyncInFlight = false }()

	raw, err := s.transport.Send(ctx, s.ownerID, ActionGetSnapshot, nil)
	if err != nil {
		return fmt.Errorf("resync from %s: %w", s.ownerID, err)
	}
	var msg SnapshotMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("resync decode: %w", err)
	}
	s.store.ApplySnapshot(msg.Snapshot)
	s.broadcastSelection()
	return nil
}

// BroadcastAnalyzing advertises this surface's analyzing state.
func (s *Syncer) BroadcastAnalyzing(active bool) {
	payload := encode(AnalyzingMessage{Origin: s.surfaceID, Active: active})
	if err := s.transport.Broadcast(s.surfaceID, ActionAnalyzingChanged, payload); err != nil {
		s.log.Warn("analyzing broadcast failed", zap.Error(err))
	}
}

func (s *Syncer) broadcastSelection() {
	payload := encode(SnapshotMessage{
		Snapshot: s.store.Snapshot(),
		Origin:   s.surfaceID,
		SentAt:   s.now(),
	})
	if err := s.transport.Broadcast(s.surfaceID, ActionSelectionChanged, payload); err != nil {
		// Broadcasts are advisory; unreachable peers are not an error.
		s.log.Warn("selection broadcast failed", zap.Error(err))
	}
}

// HandleRequest serves the request/response side of the protocol.
func (s *Syncer) HandleRequest(action string, payload []byte) ([]byte, error) {
	switch action {
	case ActionGetSnapshot:
		return encode(SnapshotMessage{
			Snapshot: s.store.Snapshot(),
			Origin:   s.surfaceID,
			SentAt:   s.now(),
		}), nil
	case ActionApplySnapshot:
		var msg SnapshotMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("apply decode: %w", err)
		}
		s.store.ApplySnapshot(msg.Snapshot)
		if s.OnRemoteChange != nil {
			s.OnRemoteChange()
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("surface: unknown action %q", action)
	}
}

// HandleBroadcast consumes fire-and-forget messages from other surfaces.
// A selection broadcast arriving just after a local manual edit is a
// remote echo of pre-edit state and is dropped, so a just-made local
// change is never clobbered.
func (s *Syncer) HandleBroadcast(action string, payload []byte) {
	switch action {
	case ActionSelectionChanged:
		var msg SnapshotMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn("selection broadcast decode failed", zap.Error(err))
			return
		}
		if msg.Origin == s.surfaceID {
			return
		}
		if edit := s.store.LastManualEdit(); !edit.IsZero() && s.now().Sub(edit) <= s.cfg.StalenessWindow {
			s.log.Debug("stale selection broadcast ignored",
				zap.String("origin", msg.Origin),
				zap.Time("local_edit", edit))
			return
		}
		s.store.ApplySnapshot(msg.Snapshot)
		if s.OnRemoteChange != nil {
			s.OnRemoteChange()
		}
	case ActionAnalyzingChanged:
		var msg AnalyzingMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return
		}
		if msg.Origin == s.surfaceID {
			return
		}
		s.remoteBusy = msg.Active
	}
}

var _ Handler = (*Syncer)(nil)
