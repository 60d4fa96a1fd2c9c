package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/config"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/core/bridge"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/core/geo"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/core/guide"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/http/handlers"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/repo/memory"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/pkg/ws"
)

func NewRouter(cfg config.Config, log *zap.SugaredLogger) *gin.Engine {
	repo := memory.NewPhotoRepo()
	hub := ws.NewHub()

	var geocoder bridge.Geocoder
	if cfg.GeocodeKey != "" {
		geocoder = geo.NewClient(cfg.GeocodeKey, log)
	} else {
		log.Info("geocoding disabled, GOOGLE_MAPS_API_KEY not set")
	}

	var narrator bridge.Narrator
	if cfg.GeminiKey != "" {
		eng, err := guide.New(cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			log.Warnw("guide narration disabled", "err", err)
		} else {
			narrator = eng
		}
	} else {
		log.Info("guide narration disabled, GEMINI_API_KEY not set")
	}

	mgr := bridge.NewManager(repo, geocoder, narrator, bridge.Config{}, log)

	ph := handlers.NewPhotosHandler(repo)
	wh := handlers.NewWebviewHandler()
	gh := handlers.NewGlassesHandler(cfg.APIKey, hub, mgr, log)

	r := gin.Default()
	r.SetHTMLTemplate(handlers.Templates())
	r.Use(handlers.Identity(cfg.APIKey))

	api := r.Group("/api")
	api.GET("/latest-photo", ph.Latest)
	api.GET("/photo/:requestId", ph.ByRequestID)
	r.GET("/webview", wh.Page)
	r.GET("/glasses/ws", gh.Connect)
	return r
}
