package docrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-schooldocs/adapters/docapi"
	dochttp "github.com/goliatone/go-schooldocs/adapters/http"
	doctemplate "github.com/goliatone/go-schooldocs/adapters/template"
	"github.com/goliatone/go-schooldocs/docgen"
)

const admitBody = `{"model":{"studentName":"Rahim Uddin","rollNumber":"42","className":"9","year":2024}}`

func newTestConfig(t *testing.T) docapi.Config {
	t.Helper()
	pipeline := docgen.NewPipeline(
		docgen.CapturerFunc(func(ctx context.Context, req docgen.CaptureRequest) (docgen.Capture, error) {
			return docgen.Capture{Image: []byte("png"), Scale: req.Scale}, nil
		}),
		docgen.EncoderFunc(func(ctx context.Context, capture docgen.Capture, page docgen.PageSpec) ([]byte, error) {
			return []byte(fmt.Sprintf("%%PDF-1.7 %s", page.Orientation)), nil
		}),
	)
	var seq int
	pipeline.IDGenerator = func() string {
		seq++
		return fmt.Sprintf("doc-%d", seq)
	}
	svc, err := docgen.NewService(docgen.ServiceConfig{
		Renderer: doctemplate.NewRenderer(nil),
		Pipeline: pipeline,
		Now:      func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return docapi.Config{
		Service:       svc,
		ActorProvider: dochttp.StaticActorProvider{Actor: docgen.Actor{ID: "teacher-1"}},
	}
}

func assertErrorParity(t *testing.T, rec *httptest.ResponseRecorder, routerRec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != routerRec.Code {
		t.Fatalf("status mismatch: http=%d router=%d", rec.Code, routerRec.Code)
	}
	if rec.Header().Get("Content-Type") != routerRec.Header().Get("Content-Type") {
		t.Fatalf("content-type mismatch: http=%q router=%q", rec.Header().Get("Content-Type"), routerRec.Header().Get("Content-Type"))
	}
	var httpPayload docapi.ErrorResponse
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&httpPayload); err != nil {
		t.Fatalf("decode http response: %v", err)
	}
	var routerPayload docapi.ErrorResponse
	if err := json.NewDecoder(bytes.NewReader(routerRec.Body.Bytes())).Decode(&routerPayload); err != nil {
		t.Fatalf("decode router response: %v", err)
	}
	if httpPayload.Error.Message != routerPayload.Error.Message || httpPayload.Error.Code != routerPayload.Error.Code ||
		len(httpPayload.Error.Fields) != len(routerPayload.Error.Fields) {
		t.Fatalf("payload mismatch: http=%+v router=%+v", httpPayload, routerPayload)
	}
}

func TestTransportParity_Export(t *testing.T) {
	httpHandler := dochttp.NewHandler(newTestConfig(t))
	routerHandler := NewHandler(newTestConfig(t))
	path := "/api/docgen/documents/admit_card/export"

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(admitBody))
	rec := httptest.NewRecorder()
	httpHandler.ServeHTTP(rec, req)

	routerCtx := newTestHTTPContext(http.MethodPost, path, []byte(admitBody), nil, nil)
	if err := routerHandler.Handle(routerCtx); err != nil {
		t.Fatalf("router handle: %v", err)
	}

	if rec.Code != http.StatusOK || rec.Code != routerCtx.recorder.Code {
		t.Fatalf("status mismatch: http=%d router=%d", rec.Code, routerCtx.recorder.Code)
	}
	for _, header := range []string{"Content-Type", "Content-Disposition", "X-Artifact-Id", "X-Document-Key"} {
		if rec.Header().Get(header) != routerCtx.recorder.Header().Get(header) {
			t.Fatalf("%s mismatch: http=%q router=%q", header, rec.Header().Get(header), routerCtx.recorder.Header().Get(header))
		}
	}
	if rec.Body.String() != routerCtx.recorder.Body.String() {
		t.Fatalf("body mismatch: http=%q router=%q", rec.Body.String(), routerCtx.recorder.Body.String())
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("expected pdf content, got %q", rec.Body.String())
	}
}

func TestTransportParity_Download(t *testing.T) {
	cfg := newTestConfig(t)
	httpHandler := dochttp.NewHandler(cfg)
	routerHandler := NewHandler(cfg)

	exportCtx := newTestContext(http.MethodPost, "/api/docgen/documents/admit_card/export", []byte(admitBody), nil, nil)
	if err := routerHandler.Handle(exportCtx); err != nil {
		t.Fatalf("router export: %v", err)
	}
	if !exportCtx.sendCalled {
		t.Fatalf("expected buffered send without http writer")
	}
	id := exportCtx.recorder.Header().Get("X-Artifact-Id")
	if id == "" {
		t.Fatalf("expected artifact id header, got %d %s", exportCtx.recorder.Code, exportCtx.recorder.Body.String())
	}

	path := "/api/docgen/artifacts/" + id + ".pdf"
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	httpHandler.ServeHTTP(rec, req)

	routerCtx := newTestHTTPContext(http.MethodGet, path, nil, nil, nil)
	if err := routerHandler.Handle(routerCtx); err != nil {
		t.Fatalf("router handle: %v", err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != routerCtx.recorder.Body.String() {
		t.Fatalf("download mismatch: http=%d %q router=%q", rec.Code, rec.Body.String(), routerCtx.recorder.Body.String())
	}
	if routerCtx.sendCalled {
		t.Fatalf("expected streaming response, got buffered send")
	}
}

func TestTransportParity_Errors(t *testing.T) {
	cfg := newTestConfig(t)
	httpHandler := dochttp.NewHandler(cfg)
	routerHandler := NewHandler(cfg)

	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/docgen/documents/admit_card/export", `{"model":{"studentName":"Ra"}}`},
		{http.MethodPost, "/api/docgen/documents/admit_card/export", `{"model":{},"extra":true}`},
		{http.MethodGet, "/api/docgen/documents/unknown/schema", ""},
		{http.MethodGet, "/api/docgen/artifacts/missing.pdf", ""},
	}
	for _, tc := range cases {
		var body io.Reader = strings.NewReader(tc.body)
		req := httptest.NewRequest(tc.method, tc.path, body)
		rec := httptest.NewRecorder()
		httpHandler.ServeHTTP(rec, req)

		routerCtx := newTestHTTPContext(tc.method, tc.path, []byte(tc.body), nil, nil)
		if err := routerHandler.Handle(routerCtx); err != nil {
			t.Fatalf("router handle: %v", err)
		}
		assertErrorParity(t, rec, routerCtx.recorder)
	}
}

type recordingRegistrar struct {
	routes []string
}

func (r *recordingRegistrar) add(method, path string) router.RouteInfo {
	r.routes = append(r.routes, method+" "+path)
	return nil
}

func (r *recordingRegistrar) Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.add(http.MethodGet, path)
}

func (r *recordingRegistrar) Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.add(http.MethodPost, path)
}

func (r *recordingRegistrar) Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.add(http.MethodDelete, path)
}

func TestRegisterRoutes(t *testing.T) {
	reg := &recordingRegistrar{}
	NewHandler(newTestConfig(t)).RegisterRoutes(reg)
	want := map[string]bool{
		"GET /api/docgen/templates":                       true,
		"POST /api/docgen/documents/:type/export":         true,
		"POST /api/docgen/documents/:type/sheet":          true,
		"POST /api/docgen/documents/:type/form":           true,
		"DELETE /api/docgen/exports/:key":                 true,
		"GET /api/docgen/artifacts/:key":                  true,
		"GET /api/docgen/documents/:type/schema":          true,
		"POST /api/docgen/documents/:type/validate-field": true,
	}
	got := map[string]bool{}
	for _, route := range reg.routes {
		got[route] = true
	}
	for route := range want {
		if !got[route] {
			t.Fatalf("missing route %s in %v", route, reg.routes)
		}
	}
}

type testContext struct {
	method        string
	path          string
	body          []byte
	query         map[string]string
	headers       map[string]string
	params        map[string]string
	locals        map[any]any
	ctx           context.Context
	recorder      *httptest.ResponseRecorder
	statusWritten bool
	status        int
	sendCalled    bool
}

func newTestContext(method, path string, body []byte, headers map[string]string, query map[string]string) *testContext {
	if headers == nil {
		headers = make(map[string]string)
	}
	if query == nil {
		query = make(map[string]string)
	}
	return &testContext{
		method:   method,
		path:     path,
		body:     body,
		query:    query,
		headers:  headers,
		params:   make(map[string]string),
		locals:   make(map[any]any),
		ctx:      context.Background(),
		recorder: httptest.NewRecorder(),
	}
}

func (c *testContext) Bind(v any) error {
	if len(c.body) == 0 {
		return nil
	}
	return json.Unmarshal(c.body, v)
}

func (c *testContext) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *testContext) SetContext(ctx context.Context) {
	c.ctx = ctx
}

func (c *testContext) Next() error { return nil }

func (c *testContext) RouteName() string { return "" }

func (c *testContext) RouteParams() map[string]string { return c.params }

func (c *testContext) Method() string { return c.method }

func (c *testContext) Path() string { return c.path }

func (c *testContext) Param(name string, defaultValue ...string) string {
	if val, ok := c.params[name]; ok {
		return val
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *testContext) ParamsInt(key string, defaultValue int) int {
	val := c.Param(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func (c *testContext) Query(name string, defaultValue ...string) string {
	if val, ok := c.query[name]; ok {
		return val
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *testContext) QueryValues(name string) []string {
	if val, ok := c.query[name]; ok {
		return []string{val}
	}
	return nil
}

func (c *testContext) QueryInt(name string, defaultValue int) int {
	val := c.Query(name)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func (c *testContext) Queries() map[string]string { return c.query }

func (c *testContext) Body() []byte { return c.body }

func (c *testContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}

func (c *testContext) LocalsMerge(key any, value map[string]any) map[string]any {
	merged, _ := c.locals[key].(map[string]any)
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range value {
		merged[k] = v
	}
	c.locals[key] = merged
	return merged
}

func (c *testContext) Render(name string, bind any, layouts ...string) error {
	return nil
}

func (c *testContext) Cookie(cookie *router.Cookie) {}

func (c *testContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *testContext) CookieParser(out any) error { return nil }

func (c *testContext) Redirect(location string, status ...int) error {
	code := http.StatusFound
	if len(status) > 0 {
		code = status[0]
	}
	c.SetHeader("Location", location)
	c.writeHeader(code)
	return nil
}

func (c *testContext) RedirectToRoute(routeName string, params router.ViewContext, status ...int) error {
	return nil
}

func (c *testContext) RedirectBack(fallback string, status ...int) error {
	return nil
}

func (c *testContext) Header(name string) string {
	return c.headers[name]
}

func (c *testContext) Referer() string { return "" }

func (c *testContext) OriginalURL() string { return c.path }

func (c *testContext) FormFile(key string) (*multipart.FileHeader, error) {
	return nil, nil
}

func (c *testContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *testContext) IP() string { return "127.0.0.1" }

func (c *testContext) Status(code int) router.Context {
	c.writeHeader(code)
	return c
}

func (c *testContext) Send(body []byte) error {
	c.sendCalled = true
	if !c.statusWritten {
		c.writeHeader(http.StatusOK)
	}
	_, err := c.recorder.Write(body)
	return err
}

func (c *testContext) SendString(body string) error {
	return c.Send([]byte(body))
}

func (c *testContext) SendStatus(code int) error {
	c.writeHeader(code)
	return nil
}

func (c *testContext) JSON(code int, v any) error {
	c.recorder.Header().Set("Content-Type", "application/json")
	c.writeHeader(code)
	return json.NewEncoder(c.recorder).Encode(v)
}

func (c *testContext) SendStream(r io.Reader) error {
	if !c.statusWritten {
		c.writeHeader(http.StatusOK)
	}
	_, err := io.Copy(c.recorder, r)
	return err
}

func (c *testContext) NoContent(code int) error {
	c.writeHeader(code)
	return nil
}

func (c *testContext) SetHeader(key, val string) router.Context {
	c.recorder.Header().Set(key, val)
	return c
}

func (c *testContext) Set(key string, value any) {
	c.locals[key] = value
}

func (c *testContext) Get(key string, def any) any {
	if val, ok := c.locals[key]; ok {
		return val
	}
	return def
}

func (c *testContext) GetString(key string, def string) string {
	if val, ok := c.locals[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return def
}

func (c *testContext) GetInt(key string, def int) int {
	if val, ok := c.locals[key]; ok {
		if num, ok := val.(int); ok {
			return num
		}
	}
	return def
}

func (c *testContext) GetBool(key string, def bool) bool {
	if val, ok := c.locals[key]; ok {
		if flag, ok := val.(bool); ok {
			return flag
		}
	}
	return def
}

func (c *testContext) writeHeader(code int) {
	if c.statusWritten {
		c.status = code
		return
	}
	c.statusWritten = true
	c.status = code
	c.recorder.WriteHeader(code)
}

type testHTTPContext struct {
	*testContext
	req *http.Request
}

func newTestHTTPContext(method, path string, body []byte, headers map[string]string, query map[string]string) *testHTTPContext {
	base := newTestContext(method, path, body, headers, query)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
		base.headers[key] = value
	}
	base.ctx = req.Context()
	return &testHTTPContext{testContext: base, req: req}
}

func (c *testHTTPContext) Request() *http.Request { return c.req }

func (c *testHTTPContext) Response() http.ResponseWriter { return c.recorder }

var _ router.Context = (*testContext)(nil)
var _ router.Context = (*testHTTPContext)(nil)
var _ router.HTTPContext = (*testHTTPContext)(nil)
