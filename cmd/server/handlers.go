package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/brunobiangulo/rdf2rest"
	"github.com/brunobiangulo/rdf2rest/rdf"
)

type handler struct {
	engine    rdf2rest.Engine
	publicURL string
}

func newHandler(e rdf2rest.Engine, publicURL string) *handler {
	if publicURL != "" && !strings.HasSuffix(publicURL, "/") {
		publicURL += "/"
	}
	return &handler{engine: e, publicURL: publicURL}
}

// GET /
func (h *handler) handleService(w http.ResponseWriter, r *http.Request) {
	g, err := h.engine.Service(r.Context(), h.baseURL(r))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeGraph(w, r, g)
}

// GET /{id...}
func (h *handler) handleResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, err := h.engine.Resource(r.Context(), h.baseURL(r), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeGraph(w, r, g)
}

// GET /status
func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"load":  h.engine.LoadStatus(),
		"store": stats,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// baseURL is the configured public URL, or scheme and host of the request.
func (h *handler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	return scheme + "://" + r.Host + "/"
}

func (h *handler) writeGraph(w http.ResponseWriter, r *http.Request, g *rdf.Graph) {
	format := negotiate(r.Header.Get("Accept"))
	w.Header().Set("Content-Type", rdf.FormatRegistry[format].MIMEType+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := rdf.Encode(w, g, format); err != nil {
		slog.Error("writing graph", "path", r.URL.Path, "error", err)
	}
}

func (h *handler) writeErr(w http.ResponseWriter, err error) {
	status := rdf2rest.StatusOf(err)
	var apiErr *rdf2rest.APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, status, apiErr.ToMap())
		return
	}
	if errors.Is(err, rdf2rest.ErrStoreClosed) {
		status = http.StatusServiceUnavailable
	}
	slog.Error("request failed", "error", err)
	writeError(w, status, http.StatusText(status))
}

// negotiate picks the first supported media type in an Accept header.
// Anything else, including wildcards, gets Turtle.
func negotiate(accept string) rdf.Format {
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		if f, ok := rdf.FormatForMIME(mt); ok {
			return f
		}
	}
	return rdf.FormatTurtle
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
