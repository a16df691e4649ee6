package docassets

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/goliatone/go-schooldocs/docgen"
)

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 3), B: uint8(x ^ y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func decodeURI(t *testing.T, uri string) []byte {
	t.Helper()
	_, body, ok := strings.Cut(uri, ",")
	if !ok {
		t.Fatalf("malformed uri %q", uri)
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return data
}

func TestResolverFitsPhotoAsJPEG(t *testing.T) {
	resolved, err := NewResolver().Resolve(context.Background(), docgen.ImagePhoto, pngDataURI(t, 600, 760))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(resolved.DataURI, "data:image/jpeg;base64,") {
		t.Fatalf("expected jpeg data uri, got %q", resolved.DataURI[:32])
	}
	if resolved.Width != 300 || resolved.Height != 380 {
		t.Fatalf("expected fit to 300x380, got %dx%d", resolved.Width, resolved.Height)
	}
	dims, err := Dimensions(decodeURI(t, resolved.DataURI))
	if err != nil {
		t.Fatalf("dimensions: %v", err)
	}
	if dims != image.Pt(300, 380) {
		t.Fatalf("unexpected encoded size %v", dims)
	}
}

func TestResolverKeepsSmallSignatureAsPNG(t *testing.T) {
	raw := strings.TrimPrefix(pngDataURI(t, 40, 20), "data:image/png;base64,")
	resolved, err := NewResolver().Resolve(context.Background(), docgen.ImageSignature, raw)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(resolved.DataURI, "data:image/png;base64,") {
		t.Fatalf("expected png data uri")
	}
	if resolved.Width != 40 || resolved.Height != 20 {
		t.Fatalf("expected original size, got %dx%d", resolved.Width, resolved.Height)
	}
}

func TestResolverRejectsInvalidReferences(t *testing.T) {
	r := NewResolver()
	r.MaxBytes = 64
	cases := map[string]docgen.ErrorKind{
		"":                                docgen.KindValidation,
		"https://example.com/photo.png":   docgen.KindValidation,
		"data:text/plain;base64,aGVsbG8=": docgen.KindValidation,
		"data:image/png,notbase64":        docgen.KindValidation,
		"!!!":                             docgen.KindValidation,
		base64.StdEncoding.EncodeToString([]byte("not an image")): docgen.KindRender,
		pngDataURI(t, 300, 300):                                   docgen.KindValidation,
	}
	for ref, want := range cases {
		_, err := r.Resolve(context.Background(), docgen.ImageLogo, ref)
		if got := docgen.KindFromError(err); got != want {
			t.Fatalf("ref %.40q: expected %s, got %s (%v)", ref, want, got, err)
		}
	}
}
