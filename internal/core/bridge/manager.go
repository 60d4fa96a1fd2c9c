package bridge

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/glasses"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/repo/memory"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/pkg/types"
)

const (
	defaultTick           = time.Second
	defaultGuard          = 30 * time.Second
	defaultCaptureTimeout = 15 * time.Second

	welcomeWall   = "AR Tour Guide ready.\nPress the camera button for a photo.\nLong press to start streaming."
	welcomeSpeech = "Welcome to your AR tour guide."
)

// Narrator produces a spoken description of a photo. Satisfied by
// guide.Engine; nil disables narration.
type Narrator interface {
	Narrate(ctx context.Context, photo types.StoredPhoto, address string) (string, error)
}

// Geocoder resolves coordinates to an address. Satisfied by geo.Client;
// nil disables geocoding.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, bool)
}

type Config struct {
	Tick           time.Duration
	Guard          time.Duration
	CaptureTimeout time.Duration
	Voice          *glasses.VoiceOpts
}

// userRow is the per-user state owned by one session. Each session
// exclusively owns its row; the manager mutex only orders row access between
// the event handlers and the poll goroutine. owner identifies the session the
// row belongs to, so a stale connection's stop cannot clear a reconnected
// session's row.
type userRow struct {
	owner         glasses.Capabilities
	streaming     bool
	nextCaptureAt time.Time
	lastAddress   string
	cancel        context.CancelFunc
}

// Manager wires device events to captures, speech, and the photo cache, and
// runs the per-session streaming poll loop.
type Manager struct {
	photos *memory.PhotoRepo
	geo    Geocoder
	guide  Narrator
	log    *zap.SugaredLogger

	tick           time.Duration
	guard          time.Duration
	captureTimeout time.Duration
	voice          *glasses.VoiceOpts

	mu   sync.Mutex
	rows map[string]*userRow
}

func NewManager(photos *memory.PhotoRepo, geo Geocoder, guide Narrator, cfg Config, log *zap.SugaredLogger) *Manager {
	if cfg.Tick == 0 {
		cfg.Tick = defaultTick
	}
	if cfg.Guard == 0 {
		cfg.Guard = defaultGuard
	}
	if cfg.CaptureTimeout == 0 {
		cfg.CaptureTimeout = defaultCaptureTimeout
	}
	return &Manager{
		photos:         photos,
		geo:            geo,
		guide:          guide,
		log:            log,
		tick:           cfg.Tick,
		guard:          cfg.Guard,
		captureTimeout: cfg.CaptureTimeout,
		voice:          cfg.Voice,
		rows:           make(map[string]*userRow),
	}
}

// OnSessionStart initializes the user's row and starts the poll loop. The
// welcome display and speech are best-effort.
func (m *Manager) OnSessionStart(userID string, caps glasses.Capabilities) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if old, ok := m.rows[userID]; ok && old.cancel != nil {
		old.cancel()
	}
	m.rows[userID] = &userRow{
		owner:         caps,
		streaming:     false,
		nextCaptureAt: time.Now(),
		cancel:        cancel,
	}
	m.mu.Unlock()

	if err := caps.ShowTextWall(ctx, welcomeWall); err != nil {
		m.log.Warnw("welcome display failed", "user", userID, "err", err)
	}
	if err := caps.Speak(ctx, welcomeSpeech, m.voice); err != nil {
		m.log.Warnw("welcome speech failed", "user", userID, "err", err)
	}

	m.log.Infow("session started", "user", userID)
	go m.pollLoop(ctx, userID, caps)
}

// OnSessionStop cancels the poll loop and drops the user's row, but only
// when the stopping session still owns it: on reconnect the old connection's
// teardown arrives after the new session started and must not clobber it.
// The cached photo is intentionally left in place for later HTTP reads.
func (m *Manager) OnSessionStop(userID string, caps glasses.Capabilities) {
	m.mu.Lock()
	row, ok := m.rows[userID]
	if ok && row.owner != caps {
		m.mu.Unlock()
		m.log.Debugw("stale session stop ignored", "user", userID)
		return
	}
	if ok {
		row.streaming = false
		if row.cancel != nil {
			row.cancel()
		}
		delete(m.rows, userID)
	}
	m.mu.Unlock()
	m.log.Infow("session stopped", "user", userID)
}

// HandleButtonPress toggles streaming on a long press; any other press takes
// a single photo. The capture runs off the event goroutine so the session
// read loop stays free to deliver the photo response.
func (m *Manager) HandleButtonPress(userID string, caps glasses.Capabilities, ev glasses.ButtonPress) {
	if ev.PressType == glasses.PressLong {
		m.mu.Lock()
		row, ok := m.rows[userID]
		var now bool
		if ok {
			row.streaming = !row.streaming
			now = row.streaming
		}
		m.mu.Unlock()
		if ok {
			m.log.Infow("streaming toggled", "user", userID, "streaming", now)
		}
		return
	}

	go func() {
		if _, err := m.capture(context.Background(), userID, caps); err != nil {
			m.log.Warnw("on-demand capture failed", "user", userID, "err", err)
		}
	}()
}

// HandleTranscription reacts to finalized transcripts only: the text is shown
// and spoken back, and guide-style questions additionally get a narration of
// the last captured photo.
func (m *Manager) HandleTranscription(userID string, caps glasses.Capabilities, ev glasses.Transcription) {
	if !ev.IsFinal {
		return
	}
	ctx := context.Background()
	if err := caps.ShowTextWall(ctx, ev.Text); err != nil {
		m.log.Warnw("transcript display failed", "user", userID, "err", err)
	}
	if err := caps.Speak(ctx, ev.Text, m.voice); err != nil {
		m.log.Warnw("transcript speech failed", "user", userID, "err", err)
	}

	if m.guide != nil && isGuideQuery(ev.Text) {
		go m.narrate(userID, caps)
	}
}

func (m *Manager) HandleBattery(userID string, ev glasses.Battery) {
	m.log.Infow("glasses battery", "user", userID, "level", ev.Level, "charging", ev.Charging)
}

// HandleLocation reverse-geocodes each update and logs the address. The
// resolved address is kept only as context for the guide. The lookup runs
// off the event goroutine so a slow geocode cannot stall frame delivery,
// same as the capture path.
func (m *Manager) HandleLocation(userID string, ev glasses.Location) {
	if m.geo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		addr, ok := m.geo.ReverseGeocode(ctx, ev.Lat, ev.Lng)
		if !ok {
			m.log.Debugw("no address for location", "user", userID, "lat", ev.Lat, "lng", ev.Lng)
			return
		}
		m.log.Infow("location resolved", "user", userID, "address", addr)

		m.mu.Lock()
		if row, ok := m.rows[userID]; ok {
			row.lastAddress = addr
		}
		m.mu.Unlock()
	}()
}

// Streaming reports whether the user's streaming flag is set.
func (m *Manager) Streaming(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	return ok && row.streaming
}

func (m *Manager) pollLoop(ctx context.Context, userID string, caps glasses.Capabilities) {
	t := time.NewTicker(m.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.pollTick(ctx, userID, caps)
		}
	}
}

// pollTick takes one streaming photo when due. The guard window is claimed
// before the capture so overlapping requests cannot start; after a success
// the next-capture time resets to now, so real cadence follows capture
// latency rather than the nominal guard. That quirk is intentional observed
// behavior (see DESIGN.md).
func (m *Manager) pollTick(ctx context.Context, userID string, caps glasses.Capabilities) {
	now := time.Now()
	m.mu.Lock()
	row, ok := m.rows[userID]
	if !ok || !row.streaming || now.Before(row.nextCaptureAt) {
		m.mu.Unlock()
		return
	}
	row.nextCaptureAt = now.Add(m.guard)
	m.mu.Unlock()

	if _, err := m.capture(ctx, userID, caps); err != nil {
		m.log.Warnw("streaming capture failed", "user", userID, "err", err)
		return
	}

	m.mu.Lock()
	if row, ok := m.rows[userID]; ok {
		row.nextCaptureAt = time.Now()
	}
	m.mu.Unlock()
}

func (m *Manager) capture(ctx context.Context, userID string, caps glasses.Capabilities) (types.StoredPhoto, error) {
	cctx, cancel := context.WithTimeout(ctx, m.captureTimeout)
	defer cancel()

	photo, err := caps.RequestPhoto(cctx)
	if err != nil {
		return types.StoredPhoto{}, err
	}
	m.photos.Store(userID, photo)
	m.log.Infow("photo cached", "user", userID, "request_id", photo.RequestID, "bytes", photo.Size)
	return photo, nil
}

func (m *Manager) narrate(userID string, caps glasses.Capabilities) {
	photo, ok := m.photos.Get(userID)
	if !ok {
		m.log.Debugw("narration skipped, no cached photo", "user", userID)
		return
	}
	m.mu.Lock()
	var addr string
	if row, ok := m.rows[userID]; ok {
		addr = row.lastAddress
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	text, err := m.guide.Narrate(ctx, photo, addr)
	if err != nil {
		m.log.Warnw("narration failed", "user", userID, "err", err)
		return
	}
	if err := caps.ShowTextWall(ctx, text); err != nil {
		m.log.Warnw("narration display failed", "user", userID, "err", err)
	}
	if err := caps.Speak(ctx, text, m.voice); err != nil {
		m.log.Warnw("narration speech failed", "user", userID, "err", err)
	}
}

func isGuideQuery(text string) bool {
	t := strings.ToLower(text)
	for _, q := range []string{"what am i looking at", "where am i", "tell me about", "what is this place"} {
		if strings.Contains(t, q) {
			return true
		}
	}
	return false
}
