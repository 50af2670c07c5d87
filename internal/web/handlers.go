// Package web exposes compiled render pipelines over HTTP: execute a named
// render, list fonts, health. Routing is chi; responses carry the document
// bytes with a format-appropriate content type.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/frankdugan3/typstflow/internal/cache"
	"github.com/frankdugan3/typstflow/pkg/pipeline"
)

// Handler serves the render API.
type Handler struct {
	// Registry holds the compiled pipelines.
	Registry *pipeline.Registry

	// FontFamilies reports the engine's loaded fonts.
	FontFamilies func() []string

	// Cache memoizes successful documents. nil disables caching.
	Cache *cache.Cache

	// Logger receives request logging. nil means no logging.
	Logger *zap.Logger
}

// renderRequest is the POST /renders/{name} body.
type renderRequest struct {
	Args  map[string]any `json:"args"`
	Actor string         `json:"actor"`
	Scope string         `json:"scope"`
}

// NewRouter builds the chi router for h.
func NewRouter(h *Handler) http.Handler {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logRequests(h.Logger))

	r.Get("/healthz", h.health)
	r.Get("/fonts", h.fonts)
	r.Get("/renders", h.listRenders)
	r.Post("/renders/{name}", h.render)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fonts(w http.ResponseWriter, r *http.Request) {
	families := h.FontFamilies()
	if families == nil {
		families = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"families": families})
}

func (h *Handler) listRenders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"renders": h.Registry.Names()})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := h.Registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), nil)
		return
	}

	var req renderRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
			return
		}
	}

	var key string
	if h.Cache != nil {
		key = cache.Key(name, req.Actor, req.Scope, req.Args)
		doc, hit, err := h.Cache.Get(r.Context(), key)
		if err != nil {
			h.Logger.Warn("cache read failed", zap.String("render", name), zap.Error(err))
		} else if hit {
			writeDocument(w, doc)
			return
		}
	}

	doc, err := p.Run(r.Context(), pipeline.Invocation{
		Args:  req.Args,
		Actor: req.Actor,
		Scope: req.Scope,
	})
	if err != nil {
		h.writeRunError(w, r, name, err)
		return
	}

	if h.Cache != nil {
		if err := h.Cache.Set(r.Context(), key, doc); err != nil {
			h.Logger.Warn("cache write failed", zap.String("render", name), zap.Error(err))
		}
	}
	writeDocument(w, doc)
}

func (h *Handler) writeRunError(w http.ResponseWriter, r *http.Request, name string, err error) {
	var notFound *pipeline.NotFoundError
	var renderErr *pipeline.RenderError
	var ioErr *pipeline.IOError

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.As(err, &renderErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), renderErr.Diagnostics)
	case errors.As(err, &ioErr):
		h.Logger.Error("template read failed", zap.String("render", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
	default:
		h.Logger.Error("render failed", zap.String("render", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
	}
}

func writeDocument(w http.ResponseWriter, doc *pipeline.Document) {
	w.Header().Set("Content-Type", contentType(doc.Format))
	w.Header().Set("X-Page-Count", strconv.Itoa(doc.PageCount))
	w.Header().Set("X-Warning-Count", strconv.Itoa(len(doc.Warnings)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Data)
}

func contentType(f pipeline.Format) string {
	switch f {
	case pipeline.FormatPDF:
		return "application/pdf"
	case pipeline.FormatSVG:
		return "image/svg+xml"
	case pipeline.FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, diagnostics any) {
	body := map[string]any{"error": message}
	if diagnostics != nil {
		body["diagnostics"] = diagnostics
	}
	writeJSON(w, status, body)
}
