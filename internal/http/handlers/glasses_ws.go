package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/core/bridge"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/glasses"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/pkg/ws"
)

// GlassesHandler is the websocket ingress for device connections. One
// connection is one session; its lifetime drives the bridge lifecycle.
type GlassesHandler struct {
	APIKey   string
	Hub      *ws.Hub
	Bridge   *bridge.Manager
	Log      *zap.SugaredLogger
	Upgrader websocket.Upgrader
}

func NewGlassesHandler(apiKey string, hub *ws.Hub, b *bridge.Manager, log *zap.SugaredLogger) *GlassesHandler {
	return &GlassesHandler{
		APIKey: apiKey,
		Hub:    hub,
		Bridge: b,
		Log:    log,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *GlassesHandler) Connect(c *gin.Context) {
	userID := c.Query("user")
	if userID == "" || c.Query("key") != h.APIKey {
		c.Status(http.StatusUnauthorized)
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sess := glasses.NewSession(userID, conn, h.Log)
	sess.OnButtonPress(func(ev glasses.ButtonPress) {
		h.Bridge.HandleButtonPress(userID, sess, ev)
	})
	sess.OnTranscription(func(ev glasses.Transcription) {
		h.Bridge.HandleTranscription(userID, sess, ev)
	})
	sess.OnGlassesBattery(func(ev glasses.Battery) {
		h.Bridge.HandleBattery(userID, ev)
	})
	sess.OnLocation(func(ev glasses.Location) {
		h.Bridge.HandleLocation(userID, ev)
	})

	// A reconnect replaces any lingering connection for the same user.
	if old, ok := h.Hub.Get(userID); ok {
		old.Close()
	}
	h.Hub.Add(userID, sess)
	h.Bridge.OnSessionStart(userID, sess)

	sess.Run()

	h.Bridge.OnSessionStop(userID, sess)
	h.Hub.Remove(userID, sess)
}
