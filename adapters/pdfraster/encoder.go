// Package pdfraster embeds rasterized document captures into A4 PDFs with
// pdfcpu and reads page geometry back for verification.
package pdfraster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"runtime"

	"github.com/disintegration/imaging"
	"github.com/goliatone/go-schooldocs/docgen"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxPages bounds how many pages one capture may span.
const DefaultMaxPages = 20

// pageSlack tolerates rounding between the capture height and one page.
const pageSlack = 0.02

// Encoder slices a capture into page-sized images and fits each image onto
// one PDF page of the requested paper size.
type Encoder struct {
	Workers  int
	MaxPages int
	Config   *model.Configuration
}

var _ docgen.Encoder = (*Encoder)(nil)

// NewEncoder creates an encoder with relaxed pdfcpu validation.
func NewEncoder() *Encoder {
	return &Encoder{Config: defaultConfig()}
}

// Encode embeds capture.Image on pages matching spec.
func (e *Encoder) Encode(ctx context.Context, capture docgen.Capture, spec docgen.PageSpec) ([]byte, error) {
	if e == nil {
		return nil, docgen.NewError(docgen.KindInternal, "raster encoder is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(capture.Image) == 0 {
		return nil, docgen.NewError(docgen.KindValidation, "capture image is empty", nil)
	}
	if spec.WidthMM <= 0 || spec.HeightMM <= 0 {
		return nil, docgen.NewError(docgen.KindValidation, "page size is required", nil)
	}

	img, err := imaging.Decode(bytes.NewReader(capture.Image))
	if err != nil {
		return nil, docgen.NewError(docgen.KindExport, "decode capture", err)
	}

	maxPages := e.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	pages := Paginate(img, spec)
	if len(pages) > maxPages {
		return nil, docgen.NewError(docgen.KindExport, fmt.Sprintf("capture spans %d pages, limit is %d", len(pages), maxPages), nil)
	}

	encoded := make([][]byte, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i, pageImg := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, pageImg, imaging.PNG); err != nil {
				return docgen.NewError(docgen.KindExport, fmt.Sprintf("encode page %d", i+1), err)
			}
			encoded[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	imp, err := pdfcpu.ParseImportDetails(importDescription(spec), types.POINTS)
	if err != nil {
		return nil, docgen.NewError(docgen.KindExport, "pdf import settings", err)
	}

	readers := make([]io.Reader, 0, len(encoded))
	for _, data := range encoded {
		readers = append(readers, bytes.NewReader(data))
	}

	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, readers, imp, e.config()); err != nil {
		return nil, docgen.NewError(docgen.KindExport, "embed capture in pdf", err)
	}
	return out.Bytes(), nil
}

// Paginate cuts img into slices with the page aspect ratio. The last slice is
// padded with white so every page has identical pixel dimensions.
func Paginate(img image.Image, spec docgen.PageSpec) []image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}
	pageHeight := int(math.Round(float64(width) * spec.HeightMM / spec.WidthMM))
	if pageHeight <= 0 {
		pageHeight = height
	}

	count := 1
	if float64(height) > float64(pageHeight)*(1+pageSlack) {
		count = int(math.Ceil(float64(height) / float64(pageHeight)))
	}

	out := make([]image.Image, 0, count)
	for i := 0; i < count; i++ {
		top := bounds.Min.Y + i*pageHeight
		bottom := top + pageHeight
		if bottom > bounds.Max.Y {
			bottom = bounds.Max.Y
		}
		slice := imaging.Crop(img, image.Rect(bounds.Min.X, top, bounds.Max.X, bottom))
		if slice.Bounds().Dy() != pageHeight {
			canvas := imaging.New(width, pageHeight, color.White)
			slice = imaging.Paste(canvas, slice, image.Pt(0, 0))
		}
		out = append(out, slice)
	}
	return out
}

func importDescription(spec docgen.PageSpec) string {
	size := spec.Size
	if size == "" {
		size = docgen.PageSizeA4
	}
	if spec.Landscape() {
		size += "L"
	}
	// position:full would size the page to the image, so the slice is
	// centered and scaled to the paper instead.
	return "formsize:" + size + ", position:c, scalefactor:1.0 rel"
}

func (e *Encoder) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Encoder) config() *model.Configuration {
	if e.Config != nil {
		return e.Config
	}
	return defaultConfig()
}

func defaultConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
