package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/glasses"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/repo/memory"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/pkg/types"
)

// fakeCaps is a test double for the device capability surface.
type fakeCaps struct {
	mu         sync.Mutex
	captures   int
	captureErr error
	delay      time.Duration
	spoken     []string
	displayed  []string
}

func (f *fakeCaps) RequestPhoto(ctx context.Context) (types.StoredPhoto, error) {
	f.mu.Lock()
	err := f.captureErr
	delay := f.delay
	var n int
	if err == nil {
		f.captures++
		n = f.captures
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.StoredPhoto{}, ctx.Err()
		}
	}
	if err != nil {
		return types.StoredPhoto{}, err
	}
	return types.StoredPhoto{
		RequestID: fmt.Sprintf("req-%d", n),
		Data:      []byte{0xff, 0xd8, byte(n)},
		MIMEType:  "image/jpeg",
		Filename:  "photo.jpg",
		Size:      3,
		Timestamp: time.Now(),
	}, nil
}

func (f *fakeCaps) Speak(_ context.Context, text string, _ *glasses.VoiceOpts) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeCaps) ShowTextWall(_ context.Context, text string) error {
	f.mu.Lock()
	f.displayed = append(f.displayed, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeCaps) captureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

func (f *fakeCaps) spokenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spoken)
}

func newTestManager(repo *memory.PhotoRepo, cfg Config) *Manager {
	return NewManager(repo, nil, nil, cfg, zap.NewNop().Sugar())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSessionStart_Welcome(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := newTestManager(repo, Config{Tick: time.Hour})
	caps := &fakeCaps{}

	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	if caps.spokenCount() != 1 {
		t.Errorf("spoken = %d, want welcome speech", caps.spokenCount())
	}
	if m.Streaming("u1") {
		t.Error("streaming must start false")
	}
}

func TestLongPress_TogglesStreaming(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := newTestManager(repo, Config{Tick: time.Hour})
	caps := &fakeCaps{}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	m.HandleButtonPress("u1", caps, glasses.ButtonPress{PressType: glasses.PressLong})
	if !m.Streaming("u1") {
		t.Fatal("streaming should be on after long press")
	}

	// Double toggle restores the original behavior.
	m.HandleButtonPress("u1", caps, glasses.ButtonPress{PressType: glasses.PressLong})
	if m.Streaming("u1") {
		t.Fatal("streaming should be off after second long press")
	}
}

func TestShortPress_CapturesAndCaches(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := newTestManager(repo, Config{Tick: time.Hour})
	caps := &fakeCaps{}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	m.HandleButtonPress("u1", caps, glasses.ButtonPress{PressType: glasses.PressShort})

	waitFor(t, time.Second, func() bool {
		_, ok := repo.Get("u1")
		return ok
	})
	p, _ := repo.Get("u1")
	if p.RequestID != "req-1" {
		t.Errorf("RequestID = %q", p.RequestID)
	}
}

func TestShortPress_FailureKeepsPriorPhoto(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := newTestManager(repo, Config{Tick: time.Hour})
	caps := &fakeCaps{captureErr: errors.New("camera busy")}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	repo.Store("u1", types.StoredPhoto{RequestID: "old"})
	m.HandleButtonPress("u1", caps, glasses.ButtonPress{PressType: glasses.PressShort})
	time.Sleep(30 * time.Millisecond)

	p, ok := repo.Get("u1")
	if !ok || p.RequestID != "old" {
		t.Errorf("prior photo must survive a failed capture, got %+v ok=%v", p, ok)
	}
}

func TestStreaming_PollCapturesAfterLongPress(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := newTestManager(repo, Config{Tick: 5 * time.Millisecond, Guard: 20 * time.Millisecond})
	caps := &fakeCaps{}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	m.HandleButtonPress("u1", caps, glasses.ButtonPress{PressType: glasses.PressLong})

	waitFor(t, time.Second, func() bool { return caps.captureCount() >= 1 })
	waitFor(t, time.Second, func() bool {
		p, ok := repo.Get("u1")
		return ok && p.RequestID != ""
	})
}

func TestStreaming_GuardPreventsOverlap(t *testing.T) {
	repo := memory.NewPhotoRepo()
	// While a slow capture is in flight the guard window holds, so ticks
	// arriving during it must not start a second capture.
	m := newTestManager(repo, Config{
		Tick:  5 * time.Millisecond,
		Guard: time.Hour,
	})
	caps := &fakeCaps{delay: 80 * time.Millisecond}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	m.HandleButtonPress("u1", caps, glasses.ButtonPress{PressType: glasses.PressLong})
	time.Sleep(60 * time.Millisecond)

	if got := caps.captureCount(); got != 1 {
		t.Errorf("captures = %d, want exactly 1 while first is in flight", got)
	}
}

func TestStreaming_CadenceFollowsCaptureLatency(t *testing.T) {
	repo := memory.NewPhotoRepo()
	// After a success the next-capture time resets to now, so even a long
	// guard does not delay the next capture once the previous one resolves.
	m := newTestManager(repo, Config{
		Tick:  5 * time.Millisecond,
		Guard: time.Hour,
	})
	caps := &fakeCaps{}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	m.HandleButtonPress("u1", caps, glasses.ButtonPress{PressType: glasses.PressLong})
	waitFor(t, time.Second, func() bool { return caps.captureCount() >= 2 })
}

func TestStop_WhileStreaming(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := newTestManager(repo, Config{Tick: 5 * time.Millisecond, Guard: 10 * time.Millisecond})
	caps := &fakeCaps{}
	m.OnSessionStart("u1", caps)

	m.HandleButtonPress("u1", caps, glasses.ButtonPress{PressType: glasses.PressLong})
	waitFor(t, time.Second, func() bool { return caps.captureCount() >= 1 })

	m.OnSessionStop("u1", caps)
	if m.Streaming("u1") {
		t.Error("streaming must be off after session stop")
	}
	time.Sleep(10 * time.Millisecond) // drain any tick already past the gate
	after := caps.captureCount()
	time.Sleep(60 * time.Millisecond)
	if got := caps.captureCount(); got != after {
		t.Errorf("captures after stop = %d, want %d", got, after)
	}

	// The cached photo survives the stop.
	if _, ok := repo.Get("u1"); !ok {
		t.Error("cached photo must survive session stop")
	}
}

func TestTranscription_FinalOnly(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := newTestManager(repo, Config{Tick: time.Hour})
	caps := &fakeCaps{}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)
	base := caps.spokenCount()

	m.HandleTranscription("u1", caps, glasses.Transcription{Text: "partial hyp", IsFinal: false})
	if caps.spokenCount() != base {
		t.Error("interim transcript must be ignored")
	}

	m.HandleTranscription("u1", caps, glasses.Transcription{Text: "hello glasses", IsFinal: true})
	if caps.spokenCount() != base+1 {
		t.Errorf("spoken = %d, want %d", caps.spokenCount(), base+1)
	}
}

type fakeNarrator struct{ text string }

func (f *fakeNarrator) Narrate(context.Context, types.StoredPhoto, string) (string, error) {
	return f.text, nil
}

func TestTranscription_GuideQueryNarrates(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := NewManager(repo, nil, &fakeNarrator{text: "An old lighthouse."}, Config{Tick: time.Hour}, zap.NewNop().Sugar())
	caps := &fakeCaps{}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	repo.Store("u1", types.StoredPhoto{RequestID: "r", Data: []byte{1}, MIMEType: "image/jpeg"})
	m.HandleTranscription("u1", caps, glasses.Transcription{Text: "What am I looking at?", IsFinal: true})

	waitFor(t, time.Second, func() bool {
		caps.mu.Lock()
		defer caps.mu.Unlock()
		for _, s := range caps.spoken {
			if s == "An old lighthouse." {
				return true
			}
		}
		return false
	})
}

type fakeGeocoder struct {
	addr string
	ok   bool
}

func (f *fakeGeocoder) ReverseGeocode(context.Context, float64, float64) (string, bool) {
	return f.addr, f.ok
}

func TestLocation_KeepsLastAddress(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := NewManager(repo, &fakeGeocoder{addr: "1 Pier Rd", ok: true}, nil, Config{Tick: time.Hour}, zap.NewNop().Sugar())
	caps := &fakeCaps{}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	m.HandleLocation("u1", glasses.Location{Lat: 1, Lng: 2})

	waitFor(t, time.Second, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		row, ok := m.rows["u1"]
		return ok && row.lastAddress == "1 Pier Rd"
	})
}

// slowGeocoder blocks until its delay elapses or the lookup is cancelled.
type slowGeocoder struct {
	delay time.Duration
	addr  string
}

func (g *slowGeocoder) ReverseGeocode(ctx context.Context, _, _ float64) (string, bool) {
	select {
	case <-time.After(g.delay):
		return g.addr, true
	case <-ctx.Done():
		return "", false
	}
}

func TestLocation_DoesNotBlockEventDelivery(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := NewManager(repo, &slowGeocoder{delay: 200 * time.Millisecond, addr: "1 Pier Rd"}, nil,
		Config{Tick: time.Hour}, zap.NewNop().Sugar())
	caps := &fakeCaps{}
	m.OnSessionStart("u1", caps)
	defer m.OnSessionStop("u1", caps)

	start := time.Now()
	m.HandleLocation("u1", glasses.Location{Lat: 1, Lng: 2})
	if took := time.Since(start); took > 50*time.Millisecond {
		t.Fatalf("HandleLocation blocked the event goroutine for %v", took)
	}

	waitFor(t, time.Second, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		row, ok := m.rows["u1"]
		return ok && row.lastAddress == "1 Pier Rd"
	})
}

func TestReconnect_StaleStopKeepsNewSession(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := newTestManager(repo, Config{Tick: 5 * time.Millisecond, Guard: 10 * time.Millisecond})
	capsOld := &fakeCaps{}
	capsNew := &fakeCaps{}

	m.OnSessionStart("u1", capsOld)
	m.OnSessionStart("u1", capsNew)
	defer m.OnSessionStop("u1", capsNew)

	// The old connection's teardown lands after the reconnect; it must not
	// clear the new session's row.
	m.OnSessionStop("u1", capsOld)

	m.HandleButtonPress("u1", capsNew, glasses.ButtonPress{PressType: glasses.PressLong})
	if !m.Streaming("u1") {
		t.Fatal("new session's row was destroyed by the old connection's stop")
	}
	waitFor(t, time.Second, func() bool { return capsNew.captureCount() >= 1 })
}

func TestStop_OwnerClearsOwnRow(t *testing.T) {
	repo := memory.NewPhotoRepo()
	m := newTestManager(repo, Config{Tick: time.Hour})
	caps := &fakeCaps{}

	m.OnSessionStart("u1", caps)
	m.OnSessionStop("u1", caps)

	m.mu.Lock()
	_, ok := m.rows["u1"]
	m.mu.Unlock()
	if ok {
		t.Error("owning session's stop must clear the row")
	}
}
