package docrouter

import (
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-schooldocs/adapters/docapi"
	"github.com/goliatone/go-schooldocs/docgen"
)

// Config configures the go-router adapter.
type Config = docapi.Config

// Handler exposes document routes for go-router.
type Handler struct {
	controller *docapi.Controller
}

// NewHandler creates a go-router handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: docapi.NewController(cfg)}
}

// RegisterRoutes registers routes on a compatible go-router router.
func (h *Handler) RegisterRoutes(router any) {
	r, ok := router.(routeRegistrar)
	if !ok {
		return
	}
	base := h.basePath()

	r.Get(base+"/templates", h.Handle)
	r.Get(base+"/documents/:type/schema", h.Handle)
	for _, action := range []string{
		docapi.ActionValidate,
		docapi.ActionValidateField,
		docapi.ActionProgress,
		docapi.ActionForm,
		docapi.ActionPreview,
		docapi.ActionExport,
		docapi.ActionSheet,
	} {
		r.Post(base+"/documents/:type/"+action, h.Handle)
	}
	r.Get(base+"/exports/:key", h.Handle)
	r.Delete(base+"/exports/:key", h.Handle)
	r.Get(base+"/artifacts/:key", h.Handle)
}

// Handle executes the shared document workflow.
func (h *Handler) Handle(c router.Context) error {
	if c == nil {
		return nil
	}
	if h == nil || h.controller == nil {
		docapi.WriteError(exchange{c: c}, docgen.NewError(docgen.KindInternal, "handler is nil", nil))
		return nil
	}
	x := exchange{c: c}
	h.controller.Serve(x, x)
	return nil
}

func (h *Handler) basePath() string {
	if h == nil || h.controller == nil || h.controller.BasePath() == "" {
		return docapi.DefaultBasePath
	}
	return h.controller.BasePath()
}

type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}
