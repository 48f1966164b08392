package surface

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/subgloss/subgloss/internal/selection"
)

type countingTransport struct {
	*InprocTransport
	sends int
}

func (c *countingTransport) Send(ctx context.Context, surfaceID, action string, payload []byte) ([]byte, error) {
	c.sends++
	return c.InprocTransport.Send(ctx, surfaceID, action, payload)
}

type syncFixture struct {
	transport *countingTransport

	overlayStore *selection.Store
	panelStore   *selection.Store
	overlay      *Syncer
	panel        *Syncer

	overlayNow time.Time
	panelNow   time.Time
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	f := &syncFixture{
		transport:  &countingTransport{InprocTransport: NewInprocTransport()},
		overlayNow: base,
		panelNow:   base,
	}

	f.overlayStore = selection.NewStore("es", "en", nil)
	f.overlayStore.SetClock(func() time.Time { return f.overlayNow })
	f.panelStore = selection.NewStore("es", "en", nil)
	f.panelStore.SetClock(func() time.Time { return f.panelNow })

	cfg := DefaultSyncConfig()
	f.overlay = NewSyncer("overlay", "overlay", f.overlayStore, f.transport, cfg, nil)
	f.overlay.SetClock(func() time.Time { return f.overlayNow })
	f.panel = NewSyncer("panel", "overlay", f.panelStore, f.transport, cfg, nil)
	f.panel.SetClock(func() time.Time { return f.panelNow })

	f.transport.Connect("overlay", f.overlay)
	f.transport.Connect("panel", f.panel)
	return f
}

func (f *syncFixture) advance(d time.Duration) {
	f.overlayNow = f.overlayNow.Add(d)
	f.panelNow = f.panelNow.Add(d)
}

func originalPos(idx int) selection.Position {
	return selection.Position{ContainerID: "cue-1", Subtitle: selection.SubtitleOriginal, Index: idx}
}

func TestOwnerBroadcastReachesPeer(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	_, err := f.overlayStore.Toggle("mal", originalPos(2))
	require.NoError(t, err)
	_, err = f.overlayStore.Toggle("bien", originalPos(5))
	require.NoError(t, err)

	// The panel's last edit is old enough that the broadcast applies.
	f.advance(time.Second)
	f.overlay.AfterLocalMutation(ctx)

	require.Equal(t, []string{"mal", "bien"}, f.panelStore.Words())
	require.True(t, f.overlay.IsOwner())
	require.False(t, f.panel.IsOwner())
}

func TestStalenessGuardProtectsFreshLocalEdit(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	_, err := f.panelStore.Toggle("casa", originalPos(1))
	require.NoError(t, err)

	// A broadcast landing 30ms after the panel's own edit is a pre-edit
	// echo and must not clobber it.
	_, err = f.overlayStore.Toggle("mal", originalPos(2))
	require.NoError(t, err)
	f.advance(30 * time.Millisecond)
	f.overlay.AfterLocalMutation(ctx)
	require.Equal(t, []string{"casa"}, f.panelStore.Words())

	// Past the window the same broadcast applies.
	f.advance(100 * time.Millisecond)
	f.overlay.AfterLocalMutation(ctx)
	require.Equal(t, []string{"mal"}, f.panelStore.Words())
}

func TestNonOwnerResyncsToCanonicalOrder(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	// Canonical order lives on the overlay.
	_, err := f.overlayStore.Toggle("la", originalPos(0))
	require.NoError(t, err)
	_, err = f.overlayStore.Toggle("esquina", originalPos(4))
	require.NoError(t, err)

	// The panel edits 10ms later; the overlay's staleness guard drops the
	// panel's broadcast, and the panel then pulls the canonical order back.
	f.advance(10 * time.Millisecond)
	f.panelStore.ToggleFallback("esquina")
	f.panel.AfterLocalMutation(ctx)

	require.Equal(t, []string{"la", "esquina"}, f.overlayStore.Words(), "owner keeps canonical order")
	require.Equal(t, []string{"la", "esquina"}, f.panelStore.Words(), "panel adopted canonical order")
}

func TestResyncThrottled(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	require.NoError(t, f.panel.Resync(ctx))
	sends := f.transport.sends
	require.Equal(t, 1, sends)

	// Inside the min interval: silent no-op, no request on the wire.
	f.advance(100 * time.Millisecond)
	require.NoError(t, f.panel.Resync(ctx))
	require.Equal(t, sends, f.transport.sends)

	f.advance(time.Second)
	require.NoError(t, f.panel.Resync(ctx))
	require.Equal(t, sends+1, f.transport.sends)
}

func TestAnalyzingAdvisoryFlag(t *testing.T) {
	f := newSyncFixture(t)

	f.overlay.BroadcastAnalyzing(true)
	require.True(t, f.panel.RemoteAnalyzing())
	require.False(t, f.overlay.RemoteAnalyzing(), "own broadcasts are skipped")

	f.overlay.BroadcastAnalyzing(false)
	require.False(t, f.panel.RemoteAnalyzing())
}

func TestHandleRequestApplySnapshotNotifies(t *testing.T) {
	f := newSyncFixture(t)

	notified := false
	f.panel.OnRemoteChange = func() { notified = true }

	payload := encode(SnapshotMessage{
		Snapshot: selection.Snapshot{Words: []string{"mal", "bien"}},
		Origin:   "overlay",
	})
	_, err := f.panel.HandleRequest(ActionApplySnapshot, payload)
	require.NoError(t, err)
	require.True(t, notified)
	require.Equal(t, []string{"mal", "bien"}, f.panelStore.Words())

	_, err = f.panel.HandleRequest("bogus.action", nil)
	require.Error(t, err)
}

func TestSendToDisconnectedSurface(t *testing.T) {
	f := newSyncFixture(t)
	f.transport.Disconnect("overlay")

	err := f.panel.Resync(context.Background())
	require.ErrorIs(t, err, ErrSurfaceUnreachable)
}

func TestBroadcastSkipsDisconnectedPeers(t *testing.T) {
	f := newSyncFixture(t)
	f.transport.Disconnect("panel")

	_, err := f.overlayStore.Toggle("mal", originalPos(2))
	require.NoError(t, err)
	f.overlay.AfterLocalMutation(context.Background())
	require.Empty(t, f.panelStore.Words())
}
