package pdfraster

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/goliatone/go-schooldocs/docgen"
)

var (
	portraitA4  = docgen.PageSpec{Size: "A4", Orientation: docgen.OrientationPortrait, WidthMM: 210, HeightMM: 297}
	landscapeA4 = docgen.PageSpec{Size: "A4", Orientation: docgen.OrientationLandscape, WidthMM: 297, HeightMM: 210}
)

func testCapture(t *testing.T, width, height int) docgen.Capture {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 240, G: 240, B: 255, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return docgen.Capture{Image: buf.Bytes(), PixelWidth: width, PixelHeight: height, Scale: 2}
}

func TestPaginateSinglePage(t *testing.T) {
	img := imaging.New(420, 590, color.White)
	pages := Paginate(img, portraitA4)
	if len(pages) != 1 {
		t.Fatalf("expected one page, got %d", len(pages))
	}
	if got := pages[0].Bounds().Dy(); got != 594 {
		t.Fatalf("expected padded page height 594, got %d", got)
	}
}

func TestPaginateLongCapture(t *testing.T) {
	img := imaging.New(420, 1300, color.Black)
	pages := Paginate(img, portraitA4)
	if len(pages) != 3 {
		t.Fatalf("expected three pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Bounds().Dx() != 420 || p.Bounds().Dy() != 594 {
			t.Fatalf("page %d has size %v", i, p.Bounds())
		}
	}
	last := pages[2]
	r, g, b, _ := last.At(10, last.Bounds().Dy()-1).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Fatalf("expected white padding on last page")
	}
	if empty := Paginate(image.NewNRGBA(image.Rect(0, 0, 0, 0)), portraitA4); empty != nil {
		t.Fatalf("expected no pages for empty image")
	}
}

func TestEncoderLandscapeGeometry(t *testing.T) {
	ctx := context.Background()
	pdf, err := NewEncoder().Encode(ctx, testCapture(t, 594, 420), landscapeA4)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("expected pdf header")
	}

	geometry, err := Inspector{}.Inspect(ctx, pdf)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if geometry.Pages != 1 {
		t.Fatalf("expected one page, got %d", geometry.Pages)
	}
	if !geometry.Landscape() {
		t.Fatalf("expected landscape page, got %.1fx%.1f", geometry.Width, geometry.Height)
	}
	assertPageSize(t, geometry, 842, 595)
}

func TestEncoderPortraitMultiPage(t *testing.T) {
	ctx := context.Background()
	pdf, err := (&Encoder{Workers: 2}).Encode(ctx, testCapture(t, 420, 1200), portraitA4)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	geometry, err := Inspector{}.Inspect(ctx, pdf)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if geometry.Pages != 3 || geometry.Landscape() {
		t.Fatalf("unexpected geometry %+v", geometry)
	}
	assertPageSize(t, geometry, 595, 842)
}

// A capture far larger than the page still lands on an A4 sheet.
func TestEncoderFitsLargeCaptureOnA4(t *testing.T) {
	ctx := context.Background()
	pdf, err := NewEncoder().Encode(ctx, testCapture(t, 1588, 2246), portraitA4)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	geometry, err := Inspector{}.Inspect(ctx, pdf)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if geometry.Pages != 1 {
		t.Fatalf("expected one page, got %d", geometry.Pages)
	}
	assertPageSize(t, geometry, 595, 842)
}

func assertPageSize(t *testing.T, geometry docgen.PageGeometry, width, height float64) {
	t.Helper()
	if math.Abs(geometry.Width-width) > 2 || math.Abs(geometry.Height-height) > 2 {
		t.Fatalf("expected page %.0fx%.0f pt, got %.1fx%.1f", width, height, geometry.Width, geometry.Height)
	}
}

func TestEncoderValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewEncoder().Encode(ctx, docgen.Capture{}, portraitA4); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected empty capture to fail validation, got %v", err)
	}
	if _, err := NewEncoder().Encode(ctx, docgen.Capture{Image: []byte("not png")}, portraitA4); docgen.KindFromError(err) != docgen.KindExport {
		t.Fatalf("expected decode failure, got %v", err)
	}
	if _, err := (&Encoder{MaxPages: 1}).Encode(ctx, testCapture(t, 100, 1000), portraitA4); docgen.KindFromError(err) != docgen.KindExport {
		t.Fatalf("expected page limit failure, got %v", err)
	}
	if _, err := (Inspector{}).Inspect(ctx, []byte("garbage")); docgen.KindFromError(err) != docgen.KindExport {
		t.Fatalf("expected inspect failure, got %v", err)
	}
}

func TestImportDescription(t *testing.T) {
	if got := importDescription(landscapeA4); got != "formsize:A4L, position:c, scalefactor:1.0 rel" {
		t.Fatalf("unexpected description %q", got)
	}
	if got := importDescription(portraitA4); got != "formsize:A4, position:c, scalefactor:1.0 rel" {
		t.Fatalf("unexpected description %q", got)
	}
}
