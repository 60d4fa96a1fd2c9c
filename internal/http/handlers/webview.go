package handlers

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Templates parses the embedded viewer template for the gin engine.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFiles, "templates/webview.html"))
}

type WebviewHandler struct {
	fallback []byte
}

func NewWebviewHandler() *WebviewHandler {
	fallback, err := fs.ReadFile(templateFiles, "templates/fallback.html")
	if err != nil {
		panic(err)
	}
	return &WebviewHandler{fallback: fallback}
}

// Page renders the photo viewer. Unauthenticated visitors get a static
// fallback page with a 401 instead of any cached data.
func (h *WebviewHandler) Page(c *gin.Context) {
	if c.GetString("userID") == "" {
		c.Data(http.StatusUnauthorized, "text/html; charset=utf-8", h.fallback)
		return
	}
	c.HTML(http.StatusOK, "webview.html", nil)
}
