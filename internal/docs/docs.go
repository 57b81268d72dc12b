// Package docs serves the OpenAPI document and a browsable reference page.
package docs

import (
	"bytes"
	_ "embed"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	SpecPath = "/api/docs/openapi.yaml"
	PagePath = "/api/docs"

	serverPlaceholder = "__BASE_URL__"

	pageCSP = "default-src 'self'; " +
		"script-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; " +
		"style-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; " +
		"font-src 'self' https://cdn.jsdelivr.net data:; " +
		"img-src 'self' data:; connect-src 'self'; frame-ancestors 'self';"
)

//go:embed openapi.yaml
var specTemplate []byte

// Handler serves the document with its servers entry pointing at baseURL.
type Handler struct {
	spec []byte
}

func New(baseURL string) *Handler {
	server := strings.TrimRight(baseURL, "/")
	if server == "" {
		server = "/"
	}
	return &Handler{spec: bytes.ReplaceAll(specTemplate, []byte(serverPlaceholder), []byte(server))}
}

func (h *Handler) Mount(r chi.Router) {
	r.Get(PagePath, h.handlePage)
	r.Get(SpecPath, h.handleSpec)
}

func (h *Handler) handleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.spec)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy", pageCSP)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(pageHTML))
}

const pageHTML = `<!DOCTYPE html>
<html><head>
  <title>CourseTrack API Reference</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
  <script id="api-reference" data-url="` + SpecPath + `"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body></html>`
