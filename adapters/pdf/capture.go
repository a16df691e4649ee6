package docpdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"math"
	"strconv"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-schooldocs/docgen"
)

// DefaultTarget is the preview root rendered by the document templates.
const DefaultTarget = "#document-root"

const awaitImagesScript = `Promise.all(Array.from(document.images).map(function (img) {
  if (img.complete) { return true; }
  return new Promise(function (resolve) { img.onload = img.onerror = function () { resolve(true); }; });
})).then(function () { return document.fonts ? document.fonts.ready.then(function () { return true; }) : true; })`

type targetRect struct {
	Found  bool    `json:"found"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Capturer screenshots the preview root of rendered HTML.
type Capturer struct {
	Browser *Browser
}

var _ docgen.Capturer = (*Capturer)(nil)

// NewCapturer creates a capturer over browser.
func NewCapturer(browser *Browser) *Capturer {
	return &Capturer{Browser: browser}
}

// Capture rasterizes req.Target at req.Scale device pixels per CSS pixel.
func (c *Capturer) Capture(ctx context.Context, req docgen.CaptureRequest) (docgen.Capture, error) {
	if c == nil || c.Browser == nil {
		return docgen.Capture{}, docgen.NewError(docgen.KindInternal, "capturer browser is nil", nil)
	}
	scale := req.Scale
	if scale <= 0 {
		scale = docgen.DefaultCaptureScale
	}
	if scale > 4 {
		return docgen.Capture{}, docgen.NewError(docgen.KindValidation, "capture scale must be at most 4", nil)
	}
	target := req.Target
	if target == "" {
		target = DefaultTarget
	}
	width, height := req.Page.CSSPixels()
	if width <= 0 || height <= 0 {
		return docgen.Capture{}, docgen.NewError(docgen.KindValidation, "capture page size is required", nil)
	}

	var rect targetRect
	var shot []byte
	err := c.Browser.run(ctx, req.HTML,
		[]chromedp.Action{chromedp.EmulateViewport(int64(width), int64(height))},
		chromedp.Evaluate(awaitImagesScript, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.Evaluate(targetRectScript(target), &rect),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if !rect.Found || rect.Width <= 0 || rect.Height <= 0 {
				return docgen.NewError(docgen.KindExport, fmt.Sprintf("capture target %s not found", target), nil)
			}
			var err error
			shot, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithFromSurface(true).
				WithClip(clipFor(rect, scale)).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		if kind := docgen.KindFromError(err); kind != docgen.KindInternal {
			return docgen.Capture{}, err
		}
		return docgen.Capture{}, docgen.NewError(docgen.KindExport, "chromium capture failed", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(shot))
	if err != nil {
		return docgen.Capture{}, docgen.NewError(docgen.KindExport, "capture is not a png image", err)
	}
	return docgen.Capture{
		Image:       shot,
		PixelWidth:  cfg.Width,
		PixelHeight: cfg.Height,
		Scale:       scale,
		HTML:        req.HTML,
	}, nil
}

func clipFor(rect targetRect, scale float64) *page.Viewport {
	return &page.Viewport{
		X:      math.Floor(rect.X),
		Y:      math.Floor(rect.Y),
		Width:  math.Ceil(rect.Width),
		Height: math.Ceil(rect.Height),
		Scale:  scale,
	}
}

func targetRectScript(selector string) string {
	return `(function () {
  var el = document.querySelector(` + strconv.Quote(selector) + `);
  if (!el) { return {found: false}; }
  var r = el.getBoundingClientRect();
  return {
    found: true,
    x: r.left + window.scrollX,
    y: r.top + window.scrollY,
    width: Math.max(r.width, el.scrollWidth),
    height: Math.max(r.height, el.scrollHeight)
  };
})()`
}
