package dochttp

import (
	"net/http"

	"github.com/goliatone/go-schooldocs/adapters/docapi"
	"github.com/goliatone/go-schooldocs/docgen"
)

// Config configures the HTTP adapter.
type Config = docapi.Config

// Handler exposes document HTTP endpoints on net/http.
type Handler struct {
	controller *docapi.Controller
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: docapi.NewController(cfg)}
}

// RegisterRoutes registers handlers on a compatible router such as
// http.ServeMux.
func (h *Handler) RegisterRoutes(router any) {
	switch r := router.(type) {
	case interface{ Handle(string, http.Handler) }:
		r.Handle(h.basePath()+"/", h)
	case interface {
		HandleFunc(string, func(http.ResponseWriter, *http.Request))
	}:
		r.HandleFunc(h.basePath()+"/", h.ServeHTTP)
	}
}

// ServeHTTP routes document endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if w == nil || r == nil {
		return
	}
	if h == nil || h.controller == nil {
		docapi.WriteError(exchange{w: w, r: r}, docgen.NewError(docgen.KindInternal, "handler is nil", nil))
		return
	}
	x := exchange{w: w, r: r}
	h.controller.Serve(x, x)
}

func (h *Handler) basePath() string {
	if h == nil || h.controller == nil || h.controller.BasePath() == "" {
		return docapi.DefaultBasePath
	}
	return h.controller.BasePath()
}
