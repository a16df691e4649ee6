// Package assets normalizes uploaded images into inline data URIs sized for
// their template slot.
package docassets

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/goliatone/go-schooldocs/docgen"
)

// DefaultMaxBytes bounds a decoded image payload.
const DefaultMaxBytes = 5 * 1024 * 1024

// Box is the pixel box an image kind is fitted into.
type Box struct {
	Width  int
	Height int
}

// DefaultBoxes fit images at 2x the printed slot size.
var DefaultBoxes = map[docgen.ImageKind]Box{
	docgen.ImagePhoto:     {Width: 300, Height: 380},
	docgen.ImageSignature: {Width: 480, Height: 160},
	docgen.ImageLogo:      {Width: 240, Height: 240},
}

// Resolver decodes data URIs or raw base64 images and re-encodes them
// downscaled. Photos are JPEG; signatures and logos keep transparency as PNG.
type Resolver struct {
	Boxes       map[docgen.ImageKind]Box
	MaxBytes    int
	JPEGQuality int
}

var _ docgen.AssetResolver = (*Resolver)(nil)

// NewResolver creates a resolver with default boxes.
func NewResolver() *Resolver {
	return &Resolver{Boxes: DefaultBoxes, MaxBytes: DefaultMaxBytes, JPEGQuality: 85}
}

// Resolve implements docgen.AssetResolver.
func (r *Resolver) Resolve(ctx context.Context, kind docgen.ImageKind, ref string) (docgen.ResolvedImage, error) {
	_ = ctx
	if r == nil {
		return docgen.ResolvedImage{}, docgen.NewError(docgen.KindInternal, "asset resolver is nil", nil)
	}
	data, err := decodeRef(ref, r.maxBytes())
	if err != nil {
		return docgen.ResolvedImage{}, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return docgen.ResolvedImage{}, docgen.NewError(docgen.KindRender, "unsupported image data", err)
	}

	box := r.box(kind)
	bounds := img.Bounds()
	if bounds.Dx() > box.Width || bounds.Dy() > box.Height {
		img = imaging.Fit(img, box.Width, box.Height, imaging.Lanczos)
	}

	var buf bytes.Buffer
	mime := "image/png"
	if kind == docgen.ImagePhoto {
		mime = "image/jpeg"
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(r.quality()))
	} else {
		err = imaging.Encode(&buf, img, imaging.PNG)
	}
	if err != nil {
		return docgen.ResolvedImage{}, docgen.NewError(docgen.KindRender, "encode image", err)
	}

	size := img.Bounds().Size()
	return docgen.ResolvedImage{
		DataURI: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   size.X,
		Height:  size.Y,
	}, nil
}

func decodeRef(ref string, maxBytes int) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, docgen.NewError(docgen.KindValidation, "image reference is empty", nil)
	}
	payload := ref
	if strings.HasPrefix(ref, "data:") {
		header, body, ok := strings.Cut(ref, ",")
		if !ok {
			return nil, docgen.NewError(docgen.KindValidation, "malformed data uri", nil)
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, docgen.NewError(docgen.KindValidation, "data uri must be base64 encoded", nil)
		}
		if !strings.HasPrefix(header, "data:image/") {
			return nil, docgen.NewError(docgen.KindValidation, fmt.Sprintf("unsupported media type %q", strings.TrimPrefix(header, "data:")), nil)
		}
		payload = body
	} else if strings.Contains(ref, "://") {
		return nil, docgen.NewError(docgen.KindValidation, "remote image references are not supported", nil)
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes {
		return nil, docgen.NewError(docgen.KindValidation, "image exceeds size limit", nil)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, docgen.NewError(docgen.KindValidation, "image is not valid base64", err)
		}
	}
	return data, nil
}

// Dimensions reports the pixel size of encoded image data.
func Dimensions(data []byte) (image.Point, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}

func (r *Resolver) box(kind docgen.ImageKind) Box {
	if box, ok := r.Boxes[kind]; ok && box.Width > 0 && box.Height > 0 {
		return box
	}
	if box, ok := DefaultBoxes[kind]; ok {
		return box
	}
	return DefaultBoxes[docgen.ImagePhoto]
}

func (r *Resolver) maxBytes() int {
	if r.MaxBytes > 0 {
		return r.MaxBytes
	}
	return DefaultMaxBytes
}

func (r *Resolver) quality() int {
	if r.JPEGQuality > 0 && r.JPEGQuality <= 100 {
		return r.JPEGQuality
	}
	return 85
}
