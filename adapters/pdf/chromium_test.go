package docpdf

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-schooldocs/docgen"
)

func chromeBinaryPath(t *testing.T) string {
	t.Helper()

	chromePath := os.Getenv("CHROME_BIN")
	if chromePath == "" {
		for _, candidate := range []string{"google-chrome", "chromium", "chromium-browser"} {
			if path, err := exec.LookPath(candidate); err == nil {
				chromePath = path
				break
			}
		}
	}
	if chromePath == "" {
		t.Skip("chromium binary not found; set CHROME_BIN to run this test")
	}
	return chromePath
}

func testBrowser(t *testing.T) *Browser {
	t.Helper()
	browser := &Browser{
		BrowserPath: chromeBinaryPath(t),
		Headless:    true,
		Timeout:     15 * time.Second,
		Args:        []string{"--no-sandbox", "--disable-dev-shm-usage"},
	}
	t.Cleanup(func() { _ = browser.Close() })
	return browser
}

func landscapePage() docgen.PageSpec {
	return docgen.PageSpec{Size: "A4", Orientation: docgen.OrientationLandscape, WidthMM: 297, HeightMM: 210}
}

func TestParseLengthInches(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{input: "1in", want: 1},
		{input: "25.4mm", want: 1},
		{input: "2.54cm", want: 1},
		{input: "72pt", want: 1},
		{input: "96px", want: 1},
		{input: "2", want: 2},
	}
	for _, tc := range tests {
		got, err := parseLengthInches(tc.input)
		if err != nil {
			t.Fatalf("parseLengthInches(%q): %v", tc.input, err)
		}
		if diff := got - tc.want; diff > 0.0001 || diff < -0.0001 {
			t.Fatalf("parseLengthInches(%q): expected %f, got %f", tc.input, tc.want, got)
		}
	}
	if _, err := parseLengthInches("3em"); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected unsupported unit error, got %v", err)
	}
}

func TestBuildPrintToPDFParamsFollowsOrientation(t *testing.T) {
	params, err := buildPrintToPDFParams(landscapePage(), PrintOptions{MarginTop: "10mm", MarginRight: "0.5in"})
	if err != nil {
		t.Fatalf("build params: %v", err)
	}
	if !params.Landscape {
		t.Fatalf("expected landscape flag")
	}
	if params.PaperWidth >= params.PaperHeight {
		t.Fatalf("expected portrait paper with landscape flag, got %fx%f", params.PaperWidth, params.PaperHeight)
	}
	if diff := params.PaperWidth - 210/25.4; diff > 0.001 || diff < -0.001 {
		t.Fatalf("expected A4 width, got %f", params.PaperWidth)
	}
	if diff := params.MarginTop - 10/25.4; diff > 0.001 || diff < -0.001 || params.MarginLeft != 0 {
		t.Fatalf("unexpected margins top=%f left=%f", params.MarginTop, params.MarginLeft)
	}
	if params.MarginRight != 0.5 || params.MarginBottom != 0 {
		t.Fatalf("unexpected margins right=%f bottom=%f", params.MarginRight, params.MarginBottom)
	}
	if !params.PrintBackground {
		t.Fatalf("expected print background")
	}

	if _, err := buildPrintToPDFParams(landscapePage(), PrintOptions{Scale: 3}); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected scale validation, got %v", err)
	}
	if _, err := buildPrintToPDFParams(docgen.PageSpec{}, PrintOptions{}); err == nil {
		t.Fatalf("expected empty page to fail")
	}
}

func TestWKHTMLTOPDFArgs(t *testing.T) {
	args := strings.Join(wkhtmltopdfArgs(landscapePage(), []string{"--dpi", "300"}), " ")
	if !strings.Contains(args, "--orientation Landscape") || !strings.Contains(args, "--page-size A4") {
		t.Fatalf("unexpected args %q", args)
	}
	if !strings.HasSuffix(args, "--dpi 300 - -") {
		t.Fatalf("expected stdin/stdout after extra args, got %q", args)
	}
}

func TestBrowserRejectsEmptyAndOversizedHTML(t *testing.T) {
	browser := &Browser{MaxHTMLBytes: 8}
	if err := browser.run(context.Background(), nil, nil); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected empty html error, got %v", err)
	}
	if err := browser.run(context.Background(), []byte("<html>too big</html>"), nil); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestTargetRectScriptQuotesSelector(t *testing.T) {
	script := targetRectScript(`div[data-x="1"]`)
	if !strings.Contains(script, `"div[data-x=\"1\"]"`) {
		t.Fatalf("expected quoted selector, got %s", script)
	}
}

func TestCapturer_Smoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium smoke test in short mode")
	}
	capturer := NewCapturer(testBrowser(t))

	html := `<html><body style="margin:0"><div id="document-root" style="width:297mm;height:210mm;background:#fff">Admit Card</div></body></html>`
	capture, err := capturer.Capture(context.Background(), docgen.CaptureRequest{
		HTML:  []byte(html),
		Page:  landscapePage(),
		Scale: 2,
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if capture.PixelWidth <= capture.PixelHeight {
		t.Fatalf("expected landscape capture, got %dx%d", capture.PixelWidth, capture.PixelHeight)
	}
	w, _ := landscapePage().CSSPixels()
	if capture.PixelWidth < 2*w-4 {
		t.Fatalf("expected 2x capture width near %d, got %d", 2*w, capture.PixelWidth)
	}
	if _, err := png.Decode(bytes.NewReader(capture.Image)); err != nil {
		t.Fatalf("expected png output: %v", err)
	}
}

func TestCapturer_MissingTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium smoke test in short mode")
	}
	capturer := NewCapturer(testBrowser(t))
	_, err := capturer.Capture(context.Background(), docgen.CaptureRequest{
		HTML: []byte(`<html><body><p>no root</p></body></html>`),
		Page: landscapePage(),
	})
	if docgen.KindFromError(err) != docgen.KindExport {
		t.Fatalf("expected export error for missing target, got %v", err)
	}
}

func TestPrintEncoder_Smoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium smoke test in short mode")
	}
	encoder := &PrintEncoder{Browser: testBrowser(t)}
	pdf, err := encoder.Encode(context.Background(), docgen.Capture{
		HTML: []byte(`<html><body><div id="document-root">Office Order</div></body></html>`),
	}, landscapePage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(pdf) < 4 || string(pdf[:4]) != "%PDF" {
		t.Fatalf("expected pdf output")
	}
}

func TestBrowserBlocksExternalAssets(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium external asset test in short mode")
	}
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	encoder := &PrintEncoder{Browser: testBrowser(t)}
	html := `<html><body><div id="document-root"><img src="` + server.URL + `/photo.png"></div></body></html>`
	if _, err := encoder.Encode(context.Background(), docgen.Capture{HTML: []byte(html)}, landscapePage()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	time.Sleep(500 * time.Millisecond)
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected external assets to be blocked, got %d request(s)", hits)
	}
}

func TestExternalBlockPatterns(t *testing.T) {
	patterns := externalBlockPatterns()
	if len(patterns) != 2 {
		t.Fatalf("expected http and https patterns, got %d", len(patterns))
	}
	for i, want := range []string{"http://*", "https://*"} {
		if patterns[i].URLPattern != want || !patterns[i].Block {
			t.Fatalf("pattern %d = %+v, want blocking %q", i, patterns[i], want)
		}
	}
}
