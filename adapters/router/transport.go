package docrouter

import (
	"bytes"
	"context"
	"io"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-schooldocs/adapters/docapi"
)

// exchange serves as both request and response for one go-router call.
// Handle never builds one around a nil context.
type exchange struct {
	c router.Context
}

var (
	_ docapi.Request  = exchange{}
	_ docapi.Response = exchange{}
)

func (x exchange) Context() context.Context  { return x.c.Context() }
func (x exchange) Method() string            { return x.c.Method() }
func (x exchange) Path() string              { return x.c.Path() }
func (x exchange) Header(name string) string { return x.c.Header(name) }
func (x exchange) Query(name string) string  { return x.c.Query(name) }

// Body exposes the buffered body; fiber has already read it.
func (x exchange) Body() io.ReadCloser { return io.NopCloser(bytes.NewReader(x.c.Body())) }

func (x exchange) SetHeader(name, value string) { x.c.SetHeader(name, value) }

// DelHeader blanks the header; go-router has no delete.
func (x exchange) DelHeader(name string) { x.c.SetHeader(name, "") }

func (x exchange) WriteHeader(status int) { x.c.Status(status) }

func (x exchange) Write(data []byte) (int, error) {
	if err := x.c.Send(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (x exchange) WriteJSON(status int, payload any) error { return x.c.JSON(status, payload) }

// Writer streams only on net/http backed routers. Fiber responses are
// buffered by the controller instead.
func (x exchange) Writer() (io.Writer, bool) {
	httpCtx, ok := router.AsHTTPContext(x.c)
	if !ok || httpCtx.Response() == nil {
		return nil, false
	}
	return httpCtx.Response(), true
}
