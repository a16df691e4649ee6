package pdfraster

import (
	"bytes"
	"context"

	"github.com/goliatone/go-schooldocs/docgen"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Inspector reads first-page geometry from PDF bytes.
type Inspector struct {
	Config *model.Configuration
}

var _ docgen.Inspector = Inspector{}

// Inspect returns the page count and first page size in points.
func (i Inspector) Inspect(ctx context.Context, pdf []byte) (docgen.PageGeometry, error) {
	_ = ctx
	if len(pdf) == 0 {
		return docgen.PageGeometry{}, docgen.NewError(docgen.KindValidation, "pdf is empty", nil)
	}
	conf := i.Config
	if conf == nil {
		conf = defaultConfig()
	}
	dims, err := api.PageDims(bytes.NewReader(pdf), conf)
	if err != nil {
		return docgen.PageGeometry{}, docgen.NewError(docgen.KindExport, "read pdf page geometry", err)
	}
	if len(dims) == 0 {
		return docgen.PageGeometry{}, docgen.NewError(docgen.KindExport, "pdf has no pages", nil)
	}
	return docgen.PageGeometry{
		Pages:  len(dims),
		Width:  dims[0].Width,
		Height: dims[0].Height,
	}, nil
}
