package doctemplate

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/goliatone/go-schooldocs/docgen"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed layout.html
var layoutFS embed.FS

// DefaultTemplateName is the entry template executed for every document.
const DefaultTemplateName = "document"

// Renderer renders document models into a self-contained HTML page.
type Renderer struct {
	Assets       docgen.AssetResolver
	Templates    *template.Template
	TemplateName string
	Policy       *bluemonday.Policy
	Logger       docgen.Logger

	once    sync.Once
	initErr error
}

var _ docgen.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer using the embedded layout.
func NewRenderer(assets docgen.AssetResolver) *Renderer {
	return &Renderer{Assets: assets}
}

// Render implements docgen.Renderer.
func (r *Renderer) Render(ctx context.Context, in docgen.RenderInput) (docgen.RenderedPreview, error) {
	if r == nil {
		return docgen.RenderedPreview{}, docgen.NewError(docgen.KindInternal, "template renderer is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return docgen.RenderedPreview{}, err
	}
	if err := r.init(); err != nil {
		return docgen.RenderedPreview{}, err
	}

	desc := in.Descriptor
	if desc.DocumentType != "" && in.Schema.Type != "" && desc.DocumentType != in.Schema.Type {
		return docgen.RenderedPreview{}, docgen.NewError(docgen.KindValidation,
			fmt.Sprintf("template %q is for %s, not %s", desc.ID, desc.DocumentType, in.Schema.Type), nil)
	}
	page, err := docgen.PageFor(desc)
	if err != nil {
		return docgen.RenderedPreview{}, err
	}

	b := &builder{
		ctx:    ctx,
		in:     in,
		assets: r.Assets,
		policy: r.Policy,
		styles: newStyleSet(desc),
	}
	view := b.document()

	var buf bytes.Buffer
	if err := r.Templates.ExecuteTemplate(&buf, r.templateName(), view); err != nil {
		return docgen.RenderedPreview{}, docgen.NewError(docgen.KindRender, "execute document template", err)
	}

	for _, w := range b.warnings {
		r.logger().Debugf("render warning doc_type=%s template=%s field=%s: %s", in.Schema.Type, desc.ID, w.Field, w.Message)
	}

	return docgen.RenderedPreview{
		HTML:       buf.Bytes(),
		Target:     "#" + RootID,
		Page:       page,
		Descriptor: desc,
		Warnings:   b.warnings,
	}, nil
}

func (r *Renderer) init() error {
	r.once.Do(func() {
		if r.Policy == nil {
			r.Policy = bluemonday.UGCPolicy()
		}
		if r.Templates != nil {
			return
		}
		tmpl, err := template.New("layout").ParseFS(layoutFS, "layout.html")
		if err != nil {
			r.initErr = docgen.NewError(docgen.KindInternal, "parse document layout", err)
			return
		}
		r.Templates = tmpl
	})
	return r.initErr
}

func (r *Renderer) templateName() string {
	if name := strings.TrimSpace(r.TemplateName); name != "" {
		return name
	}
	return DefaultTemplateName
}

func (r *Renderer) logger() docgen.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return docgen.NopLogger{}
}
