package glasses

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/pkg/types"
)

// Capabilities is the slice of device operations the event bridge needs.
// A Session implements it over the live websocket; tests substitute a double.
type Capabilities interface {
	RequestPhoto(ctx context.Context) (types.StoredPhoto, error)
	Speak(ctx context.Context, text string, opts *VoiceOpts) error
	ShowTextWall(ctx context.Context, text string) error
}

var ErrSessionClosed = errors.New("glasses: session closed")

const (
	readLimit     = 8 << 20
	readDeadline  = 60 * time.Second
	writeDeadline = 5 * time.Second
)

type photoResult struct {
	photo types.StoredPhoto
	err   error
}

// Session is one live websocket connection to a pair of glasses. Event
// handlers must be registered before Run is called; writes from any goroutine
// are serialized internally.
type Session struct {
	userID string
	conn   *websocket.Conn
	log    *zap.SugaredLogger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan photoResult

	onButtonPress   func(ButtonPress)
	onTranscription func(Transcription)
	onBattery       func(Battery)
	onLocation      func(Location)

	closed    chan struct{}
	closeOnce sync.Once
}

func NewSession(userID string, conn *websocket.Conn, log *zap.SugaredLogger) *Session {
	return &Session{
		userID:  userID,
		conn:    conn,
		log:     log,
		pending: make(map[string]chan photoResult),
		closed:  make(chan struct{}),
	}
}

func (s *Session) OnButtonPress(fn func(ButtonPress))     { s.onButtonPress = fn }
func (s *Session) OnTranscription(fn func(Transcription)) { s.onTranscription = fn }
func (s *Session) OnGlassesBattery(fn func(Battery))      { s.onBattery = fn }
func (s *Session) OnLocation(fn func(Location))           { s.onLocation = fn }

// Run reads device frames until the connection drops, dispatching each to its
// registered handler. It always leaves the session closed.
func (s *Session) Run() {
	defer s.Close()

	s.conn.SetReadLimit(readLimit)
	s.conn.SetReadDeadline(time.Now().Add(readDeadline))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readDeadline))
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		s.log.Warnw("undecodable frame", "user", s.userID, "err", err)
		return
	}

	switch env.Type {
	case "button_press":
		var in inboundButtonPress
		if json.Unmarshal(msg, &in) == nil && s.onButtonPress != nil {
			s.onButtonPress(ButtonPress{ButtonID: in.ButtonID, PressType: in.PressType})
		}
	case "transcription":
		var in inboundTranscription
		if json.Unmarshal(msg, &in) == nil && s.onTranscription != nil {
			s.onTranscription(Transcription{Text: in.Text, IsFinal: in.IsFinal, Language: in.Language})
		}
	case "glasses_battery":
		var in inboundBattery
		if json.Unmarshal(msg, &in) == nil && s.onBattery != nil {
			s.onBattery(Battery{Level: in.Level, Charging: in.Charging})
		}
	case "location":
		var in inboundLocation
		if json.Unmarshal(msg, &in) == nil && s.onLocation != nil {
			s.onLocation(Location{Lat: in.Lat, Lng: in.Lng})
		}
	case "photo_response":
		var in inboundPhotoResponse
		if json.Unmarshal(msg, &in) == nil {
			s.resolvePhoto(in)
		}
	default:
		s.log.Debugw("unknown frame type", "user", s.userID, "type", env.Type)
	}
}

// RequestPhoto asks the device camera for one photo and waits for the
// matching response. The returned photo carries a fresh request id.
func (s *Session) RequestPhoto(ctx context.Context) (types.StoredPhoto, error) {
	id := uuid.NewString()
	ch := make(chan photoResult, 1)

	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.writeJSON(outboundPhotoRequest{Type: "photo_request", RequestID: id}); err != nil {
		return types.StoredPhoto{}, err
	}

	select {
	case res := <-ch:
		return res.photo, res.err
	case <-ctx.Done():
		return types.StoredPhoto{}, ctx.Err()
	case <-s.closed:
		return types.StoredPhoto{}, ErrSessionClosed
	}
}

func (s *Session) resolvePhoto(in inboundPhotoResponse) {
	s.pendingMu.Lock()
	ch, ok := s.pending[in.RequestID]
	if ok {
		delete(s.pending, in.RequestID)
	}
	s.pendingMu.Unlock()
	if !ok {
		s.log.Debugw("photo response with no waiter", "user", s.userID, "request_id", in.RequestID)
		return
	}

	if in.Error != "" {
		ch <- photoResult{err: errors.New(in.Error)}
		return
	}
	data, err := base64.StdEncoding.DecodeString(in.Data)
	if err != nil {
		ch <- photoResult{err: err}
		return
	}
	ch <- photoResult{photo: types.StoredPhoto{
		RequestID: in.RequestID,
		Data:      data,
		MIMEType:  in.MIMEType,
		Filename:  in.Filename,
		Size:      len(data),
		UserID:    s.userID,
		Timestamp: time.Now(),
	}}
}

// Speak forwards text to the device speech engine. Voice options pass
// through unvalidated.
func (s *Session) Speak(_ context.Context, text string, opts *VoiceOpts) error {
	return s.writeJSON(outboundSpeak{Type: "speak", Text: text, Voice: opts})
}

// ShowTextWall displays a block of text on the glasses.
func (s *Session) ShowTextWall(_ context.Context, text string) error {
	return s.writeJSON(outboundDisplayText{Type: "display_text", Text: text})
}

func (s *Session) writeJSON(v any) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return s.conn.WriteJSON(v)
}

// Close tears the connection down and fails any in-flight photo request.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)

		s.pendingMu.Lock()
		for id, ch := range s.pending {
			delete(s.pending, id)
			ch <- photoResult{err: ErrSessionClosed}
		}
		s.pendingMu.Unlock()

		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
	})
}
