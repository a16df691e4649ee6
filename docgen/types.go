package docgen

import (
	"context"
	"errors"
	"io"
	"math"
	"time"
)

// DocumentType identifies a document generator.
type DocumentType string

const (
	TypeAdmitCard    DocumentType = "admit_card"
	TypeMarksheet    DocumentType = "marksheet"
	TypeExpenseSheet DocumentType = "expense_sheet"
	TypeOfficeOrder  DocumentType = "office_order"
	TypeResultSheet  DocumentType = "result_sheet"
)

// DocumentTypes lists the built-in document types in display order.
var DocumentTypes = []DocumentType{
	TypeAdmitCard,
	TypeMarksheet,
	TypeExpenseSheet,
	TypeOfficeOrder,
	TypeResultSheet,
}

// Orientation describes the physical page orientation.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Layout identifies a visual layout variant.
type Layout string

const (
	LayoutPortraitSingle  Layout = "portrait_single"
	LayoutPortraitCompact Layout = "portrait_compact"
	LayoutLandscapeDual   Layout = "landscape_dual"
)

// Orientation returns the page orientation implied by the layout.
func (l Layout) Orientation() Orientation {
	switch l {
	case LayoutLandscapeDual:
		return OrientationLandscape
	default:
		return OrientationPortrait
	}
}

// Copies returns how many side-by-side copies the layout prints.
func (l Layout) Copies() int {
	if l == LayoutLandscapeDual {
		return 2
	}
	return 1
}

// PageSizeA4 is the only supported page format.
const PageSizeA4 = "A4"

// TemplateStyle holds style parameters for a template.
type TemplateStyle struct {
	PrimaryColor    string  `json:"primary_color,omitempty" yaml:"primary_color" validate:"omitempty,hexcolor"`
	AccentColor     string  `json:"accent_color,omitempty" yaml:"accent_color" validate:"omitempty,hexcolor"`
	TextColor       string  `json:"text_color,omitempty" yaml:"text_color" validate:"omitempty,hexcolor"`
	BackgroundColor string  `json:"background_color,omitempty" yaml:"background_color" validate:"omitempty,hexcolor"`
	HeadingFont     string  `json:"heading_font,omitempty" yaml:"heading_font" validate:"omitempty,max=128"`
	BodyFont        string  `json:"body_font,omitempty" yaml:"body_font" validate:"omitempty,max=128"`
	BaseFontSize    float64 `json:"base_font_size,omitempty" yaml:"base_font_size" validate:"omitempty,gte=6,lte=32"`
}

// TemplateToggles controls optional decorative elements.
type TemplateToggles struct {
	Logo       bool `json:"logo" yaml:"logo"`
	Watermark  bool `json:"watermark" yaml:"watermark"`
	QR         bool `json:"qr" yaml:"qr"`
	Signatures bool `json:"signatures" yaml:"signatures"`
}

// TemplateDescriptor configures how a document model is rendered.
type TemplateDescriptor struct {
	ID              string          `json:"id" yaml:"id" validate:"required,max=128"`
	Version         string          `json:"version,omitempty" yaml:"version" validate:"omitempty,max=32"`
	DocumentType    DocumentType    `json:"document_type" yaml:"document_type" validate:"required,oneof=admit_card marksheet expense_sheet office_order result_sheet"`
	Name            string          `json:"name,omitempty" yaml:"name"`
	Layout          Layout          `json:"layout" yaml:"layout" validate:"required,oneof=portrait_single portrait_compact landscape_dual"`
	Orientation     Orientation     `json:"orientation,omitempty" yaml:"orientation" validate:"omitempty,oneof=portrait landscape"`
	PageSize        string          `json:"page_size,omitempty" yaml:"page_size" validate:"omitempty,eq=A4"`
	Style           TemplateStyle   `json:"style" yaml:"style"`
	Toggles         TemplateToggles `json:"toggles" yaml:"toggles"`
	SchoolName      string          `json:"school_name,omitempty" yaml:"school_name"`
	SchoolAddress   string          `json:"school_address,omitempty" yaml:"school_address"`
	Logo            string          `json:"logo,omitempty" yaml:"logo"`
	WatermarkText   string          `json:"watermark_text,omitempty" yaml:"watermark_text"`
	SignatureLabels []string        `json:"signature_labels,omitempty" yaml:"signature_labels" validate:"max=4"`
	CopyLabels      []string        `json:"copy_labels,omitempty" yaml:"copy_labels" validate:"max=2"`
	Origin          string          `json:"origin,omitempty" yaml:"-"`
}

// DocumentModel is the in-memory structured data for one document.
type DocumentModel map[string]any

// DocumentInput bundles a model with the template selection for it.
type DocumentInput struct {
	Type       DocumentType        `json:"type"`
	Key        string              `json:"key,omitempty"`
	Model      DocumentModel       `json:"model"`
	TemplateID string              `json:"template_id,omitempty"`
	Descriptor *TemplateDescriptor `json:"descriptor,omitempty"`
	Locale     string              `json:"locale,omitempty"`
}

// PageSpec describes the physical page used for capture and encoding.
type PageSpec struct {
	Size        string      `json:"size"`
	Orientation Orientation `json:"orientation"`
	WidthMM     float64     `json:"width_mm"`
	HeightMM    float64     `json:"height_mm"`
}

// Landscape reports whether the page is wider than tall.
func (p PageSpec) Landscape() bool {
	return p.Orientation == OrientationLandscape
}

// CSSPixels returns the page size in CSS pixels at 96 dpi.
func (p PageSpec) CSSPixels() (int, int) {
	const pxPerMM = 96.0 / 25.4
	return int(p.WidthMM*pxPerMM + 0.5), int(p.HeightMM*pxPerMM + 0.5)
}

// WidthPoints returns the page width in PDF points.
func (p PageSpec) WidthPoints() float64 {
	return p.WidthMM * 72 / 25.4
}

// HeightPoints returns the page height in PDF points.
func (p PageSpec) HeightPoints() float64 {
	return p.HeightMM * 72 / 25.4
}

// PageTolerance is how far, in points, an encoded page may drift from the
// requested paper size.
const PageTolerance = 2.0

// Matches reports whether g has the page size and orientation of p.
func (p PageSpec) Matches(g PageGeometry) bool {
	if g.Landscape() != p.Landscape() {
		return false
	}
	return math.Abs(g.Width-p.WidthPoints()) <= PageTolerance &&
		math.Abs(g.Height-p.HeightPoints()) <= PageTolerance
}

// RenderWarning records a locally recovered render problem.
type RenderWarning struct {
	Field   string `json:"field,omitempty"`
	Element string `json:"element,omitempty"`
	Message string `json:"message"`
}

// RenderedPreview is the derived output of rendering a model with a descriptor.
type RenderedPreview struct {
	HTML       []byte             `json:"-"`
	Target     string             `json:"target"`
	Page       PageSpec           `json:"page"`
	Descriptor TemplateDescriptor `json:"descriptor"`
	Warnings   []RenderWarning    `json:"warnings,omitempty"`
}

// RenderInput is passed to the template renderer.
type RenderInput struct {
	Schema     Schema
	Model      DocumentModel
	Descriptor TemplateDescriptor
	Locale     string
}

// Renderer maps a model and descriptor onto a visual tree.
type Renderer interface {
	Render(ctx context.Context, in RenderInput) (RenderedPreview, error)
}

// ImageKind distinguishes image slots for normalization.
type ImageKind string

const (
	ImagePhoto     ImageKind = "photo"
	ImageSignature ImageKind = "signature"
	ImageLogo      ImageKind = "logo"
)

// ResolvedImage is an image ready to inline into a template.
type ResolvedImage struct {
	DataURI string
	Width   int
	Height  int
}

// AssetResolver turns raw image references into inline images.
type AssetResolver interface {
	Resolve(ctx context.Context, kind ImageKind, ref string) (ResolvedImage, error)
}

// CaptureRequest describes the preview subtree to rasterize.
type CaptureRequest struct {
	HTML   []byte
	Target string
	Page   PageSpec
	Scale  float64
}

// Capture is a rasterized preview.
type Capture struct {
	Image       []byte
	PixelWidth  int
	PixelHeight int
	Scale       float64
	HTML        []byte
}

// Capturer rasterizes a rendered preview.
type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (Capture, error)
}

// CapturerFunc adapts a function to a Capturer.
type CapturerFunc func(ctx context.Context, req CaptureRequest) (Capture, error)

func (f CapturerFunc) Capture(ctx context.Context, req CaptureRequest) (Capture, error) {
	if f == nil {
		return Capture{}, NewError(KindInternal, "capturer func is nil", nil)
	}
	return f(ctx, req)
}

// Encoder embeds a capture into a PDF document.
type Encoder interface {
	Encode(ctx context.Context, capture Capture, page PageSpec) ([]byte, error)
}

// EncoderFunc adapts a function to an Encoder.
type EncoderFunc func(ctx context.Context, capture Capture, page PageSpec) ([]byte, error)

func (f EncoderFunc) Encode(ctx context.Context, capture Capture, page PageSpec) ([]byte, error) {
	if f == nil {
		return nil, NewError(KindInternal, "encoder func is nil", nil)
	}
	return f(ctx, capture, page)
}

// PageGeometry describes an encoded PDF. Sizes are in PDF points.
type PageGeometry struct {
	Pages  int     `json:"pages"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Landscape reports whether the first page is wider than tall.
func (g PageGeometry) Landscape() bool {
	return g.Width > g.Height
}

// Inspector reads page geometry from encoded PDF bytes.
type Inspector interface {
	Inspect(ctx context.Context, pdf []byte) (PageGeometry, error)
}

// ArtifactMeta describes stored artifact metadata.
type ArtifactMeta struct {
	Filename    string    `json:"filename,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// ArtifactRef references a stored artifact.
type ArtifactRef struct {
	Key  string
	Meta ArtifactMeta
}

// ArtifactStore persists exported artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
	Delete(ctx context.Context, key string) error
}

// Artifact is one exported PDF.
type Artifact struct {
	ID          string       `json:"id"`
	Key         string       `json:"key"`
	Filename    string       `json:"filename"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
	Page        PageSpec     `json:"page"`
	Geometry    PageGeometry `json:"geometry"`
	CreatedAt   time.Time    `json:"created_at"`
	Bytes       []byte       `json:"-"`
}

// Actor identifies who triggered an action.
type Actor struct {
	ID       string `json:"id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	OrgID    string `json:"org_id,omitempty"`
}

// GeneratedRecord is submitted to the persistence collaborator after export.
type GeneratedRecord struct {
	ArtifactID      string            `json:"artifact_id"`
	DocumentType    DocumentType      `json:"document_type"`
	DocumentKey     string            `json:"document_key"`
	TemplateID      string            `json:"template_id"`
	TemplateVersion string            `json:"template_version,omitempty"`
	Filename        string            `json:"filename"`
	Size            int64             `json:"size"`
	Orientation     Orientation       `json:"orientation"`
	Pages           int               `json:"pages,omitempty"`
	Actor           Actor             `json:"actor"`
	Identity        map[string]string `json:"identity,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// TemplateSource lists template descriptors.
type TemplateSource interface {
	ListTemplates(ctx context.Context) ([]TemplateDescriptor, error)
}

// RecordSink accepts generated-document records.
type RecordSink interface {
	SubmitRecord(ctx context.Context, record GeneratedRecord) error
}

// Backend is the persistence collaborator.
type Backend interface {
	TemplateSource
	RecordSink
}

// Logger provides structured logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// ChangeEvent describes export lifecycle events.
type ChangeEvent struct {
	Name         string
	ArtifactID   string
	DocumentKey  string
	DocumentType DocumentType
	TemplateID   string
	Actor        Actor
	Timestamp    time.Time
	Metadata     map[string]any
}

// ChangeEmitter emits lifecycle events.
type ChangeEmitter interface {
	Emit(ctx context.Context, evt ChangeEvent) error
}

// ChangeEmitters fans one event out to every emitter. All emitters run;
// their errors are joined.
type ChangeEmitters []ChangeEmitter

func (e ChangeEmitters) Emit(ctx context.Context, evt ChangeEvent) error {
	var errs []error
	for _, emitter := range e {
		if emitter == nil {
			continue
		}
		if err := emitter.Emit(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
