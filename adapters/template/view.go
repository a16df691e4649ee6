package doctemplate

import (
	"context"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-schooldocs/docgen"
	"github.com/microcosm-cc/bluemonday"
)

// RootID is the id of the element captured on export.
const RootID = "document-root"

// LayoutField names the model field that selects the layout variant. It steers
// rendering and is not printed.
const LayoutField = "templateType"

const missingGlyph = "✕"

var totalLabels = docgen.LocalizedText{"en": "Total", "bn": "মোট"}

type documentView struct {
	Lang         string
	Title        string
	DocumentType string
	TemplateID   string
	Layout       string
	Orientation  string
	Styles       map[string]template.CSS
	Copies       []copyView
}

type copyView struct {
	Index int
	Label string
	Page  *pageView
}

type pageView struct {
	styles styleSet

	Title         string
	SchoolName    string
	SchoolAddress string
	Logo          *imageView
	Watermark     string
	QR            string
	Signatures    []string
	Footer        string
	Sections      []sectionView
}

// Style returns the inline style of a named element.
func (p *pageView) Style(name string) template.CSS {
	return p.styles.get(docgen.Element(name))
}

type sectionView struct {
	Name   string
	Label  string
	Blocks []blockView
}

type blockView struct {
	Path       string
	Label      string
	Value      string
	Empty      bool
	LabelStyle template.CSS
	ValueStyle template.CSS
	RichText   template.HTML
	Image      *imageView
	Table      *tableView
}

type imageView struct {
	Kind  string
	Path  string
	Alt   string
	Src   template.URL
	Style template.CSS
	Empty bool
	Glyph string
}

type tableView struct {
	Columns     []string
	Rows        [][]cellView
	Totals      []string
	Style       template.CSS
	HeaderStyle template.CSS
	CellStyle   template.CSS
}

type cellView struct {
	Path  string
	Value string
	Empty bool
}

type styleSet struct {
	desc  docgen.TemplateDescriptor
	cache map[docgen.Element]template.CSS
}

func newStyleSet(desc docgen.TemplateDescriptor) styleSet {
	return styleSet{desc: desc, cache: map[docgen.Element]template.CSS{}}
}

func (s styleSet) get(el docgen.Element) template.CSS {
	if css, ok := s.cache[el]; ok {
		return css
	}
	// Declarations come from the style resolver, never from model data.
	css := template.CSS(docgen.ResolveStyle(s.desc, el).String())
	s.cache[el] = css
	return css
}

func (s styleSet) with(el docgen.Element, prop, value string) template.CSS {
	decl := docgen.ResolveStyle(s.desc, el)
	decl[prop] = value
	return template.CSS(decl.String())
}

type builder struct {
	ctx      context.Context
	in       docgen.RenderInput
	assets   docgen.AssetResolver
	policy   *bluemonday.Policy
	styles   styleSet
	warnings []docgen.RenderWarning
}

func (b *builder) document() documentView {
	desc := b.in.Descriptor
	schema := b.in.Schema
	locale := b.in.Locale

	page := &pageView{
		styles:        b.styles,
		Title:         schema.Title.Get(locale),
		SchoolName:    desc.SchoolName,
		SchoolAddress: desc.SchoolAddress,
		Footer:        footerText(desc),
	}
	if page.Title == "" {
		page.Title = string(schema.Type)
	}
	if desc.Toggles.Logo {
		page.Logo = b.image(docgen.ImageLogo, "logo", desc.Logo, desc.SchoolName, docgen.ElementLogo)
	}
	if desc.Toggles.Watermark {
		page.Watermark = strings.TrimSpace(desc.WatermarkText)
		if page.Watermark == "" {
			page.Watermark = strings.ToUpper(page.Title)
		}
	}
	if desc.Toggles.QR {
		page.QR = qrPayload(schema, b.in.Model)
	}
	if desc.Toggles.Signatures {
		page.Signatures = desc.SignatureLabels
		if len(page.Signatures) == 0 {
			page.Signatures = []string{"Signature"}
		}
	}
	page.Sections = b.sections()

	count := desc.Layout.Copies()
	copies := make([]copyView, 0, count)
	for i := 0; i < count; i++ {
		cv := copyView{Index: i + 1, Page: page}
		if count > 1 {
			cv.Label = fmt.Sprintf("Copy %d", i+1)
			if i < len(desc.CopyLabels) && strings.TrimSpace(desc.CopyLabels[i]) != "" {
				cv.Label = desc.CopyLabels[i]
			}
		}
		copies = append(copies, cv)
	}

	lang := strings.TrimSpace(locale)
	if lang == "" {
		lang = docgen.DefaultLocale
	}
	return documentView{
		Lang:         lang,
		Title:        page.Title,
		DocumentType: string(schema.Type),
		TemplateID:   desc.ID,
		Layout:       string(desc.Layout),
		Orientation:  string(desc.Layout.Orientation()),
		Styles:       map[string]template.CSS{"page": b.styles.get(docgen.ElementPage)},
		Copies:       copies,
	}
}

func (b *builder) sections() []sectionView {
	schema := b.in.Schema
	locale := b.in.Locale

	known := make(map[string]int, len(schema.Sections))
	out := make([]sectionView, 0, len(schema.Sections)+1)
	for _, section := range schema.Sections {
		known[section.Name] = len(out)
		out = append(out, sectionView{Name: section.Name, Label: section.Label.Get(locale)})
	}

	var loose []blockView
	for _, field := range schema.Fields {
		if field.Name == LayoutField {
			continue
		}
		block := b.block(field, field.Name)
		if idx, ok := known[field.Section]; ok {
			out[idx].Blocks = append(out[idx].Blocks, block)
			continue
		}
		loose = append(loose, block)
	}
	if len(loose) > 0 {
		out = append(out, sectionView{Name: "other", Blocks: loose})
	}

	filtered := out[:0]
	for _, section := range out {
		if len(section.Blocks) > 0 {
			filtered = append(filtered, section)
		}
	}
	return filtered
}

func (b *builder) block(field docgen.FieldSpec, path string) blockView {
	model := b.in.Model
	block := blockView{
		Path:       path,
		Label:      fieldLabel(field, b.in.Locale),
		LabelStyle: b.styles.get(docgen.ElementLabel),
		ValueStyle: b.styles.get(docgen.ElementValue),
	}

	switch field.Kind {
	case docgen.KindList:
		block.Table = b.table(field, path)
	case docgen.KindImage:
		block.Image = b.image(field.Image, path, model.String(path), block.Label, docgen.ElementImage)
	case docgen.KindRichText:
		raw := model.String(path)
		clean := strings.TrimSpace(b.policy.Sanitize(raw))
		if clean == "" {
			block.Empty = true
			break
		}
		block.RichText = template.HTML(clean)
		block.ValueStyle = b.styles.get(docgen.ElementRichText)
	case docgen.KindText:
		block.Value = model.String(path)
		block.ValueStyle = b.styles.with(docgen.ElementValue, "white-space", "pre-line")
	case docgen.KindEnum:
		if value := model.String(path); value != "" {
			block.Value = field.EnumLabel(value, b.in.Locale)
		}
	default:
		block.Value = model.String(path)
	}
	if block.Table == nil && block.Image == nil && block.RichText == "" && block.Value == "" {
		block.Empty = true
		block.ValueStyle = b.styles.get(docgen.ElementPlaceholder)
	}
	return block
}

func (b *builder) table(field docgen.FieldSpec, path string) *tableView {
	locale := b.in.Locale
	tv := &tableView{
		Style:       b.styles.get(docgen.ElementTable),
		HeaderStyle: b.styles.get(docgen.ElementTableHeader),
		CellStyle:   b.styles.get(docgen.ElementTableCell),
	}
	hasSum := false
	for _, item := range field.Fields {
		tv.Columns = append(tv.Columns, fieldLabel(item, locale))
		if item.Sum {
			hasSum = true
		}
	}

	sums := make([]float64, len(field.Fields))
	for i, record := range b.in.Model.Items(path) {
		row := make([]cellView, 0, len(field.Fields))
		for col, item := range field.Fields {
			cellPath := fmt.Sprintf("%s.%d.%s", path, i, item.Name)
			value := record.String(item.Name)
			if item.Kind == docgen.KindEnum && value != "" {
				value = item.EnumLabel(value, locale)
			}
			if item.Sum {
				if n, err := strconv.ParseFloat(record.String(item.Name), 64); err == nil {
					sums[col] += n
				}
			}
			row = append(row, cellView{Path: cellPath, Value: value, Empty: value == ""})
		}
		tv.Rows = append(tv.Rows, row)
	}

	if hasSum {
		tv.Totals = make([]string, len(field.Fields))
		for col, item := range field.Fields {
			if item.Sum {
				tv.Totals[col] = docgen.FormatValue(math.Round(sums[col]*100) / 100)
			}
		}
		if !field.Fields[0].Sum {
			tv.Totals[0] = totalLabels.Get(locale)
		}
	}
	return tv
}

func (b *builder) image(kind docgen.ImageKind, path, ref, alt string, el docgen.Element) *imageView {
	view := &imageView{Kind: string(kind), Path: path, Alt: alt, Style: b.styles.get(el)}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		view.Empty = true
		return view
	}

	if b.assets == nil {
		if strings.HasPrefix(ref, "data:image/") {
			view.Src = template.URL(ref)
			return view
		}
		b.warn(path, el, "no asset resolver for image reference")
		return b.glyph(view)
	}

	img, err := b.assets.Resolve(b.ctx, kind, ref)
	if err != nil || img.DataURI == "" {
		msg := "image could not be decoded"
		if err != nil {
			msg = err.Error()
		}
		b.warn(path, el, msg)
		return b.glyph(view)
	}
	view.Src = template.URL(img.DataURI)
	return view
}

func (b *builder) glyph(view *imageView) *imageView {
	view.Glyph = missingGlyph
	view.Style = b.styles.get(docgen.ElementGlyph)
	return view
}

func (b *builder) warn(field string, el docgen.Element, msg string) {
	b.warnings = append(b.warnings, docgen.RenderWarning{Field: field, Element: string(el), Message: msg})
}

func fieldLabel(field docgen.FieldSpec, locale string) string {
	if label := field.Label.Get(locale); label != "" {
		return label
	}
	return field.Name
}

func qrPayload(schema docgen.Schema, model docgen.DocumentModel) string {
	parts := []string{string(schema.Type)}
	for _, name := range schema.IdentityFields() {
		if value := model.String(name); value != "" {
			parts = append(parts, name+"="+value)
		}
	}
	return strings.Join(parts, "|")
}

func footerText(desc docgen.TemplateDescriptor) string {
	if desc.ID == "" {
		return ""
	}
	if desc.Version == "" {
		return desc.ID
	}
	return desc.ID + " v" + desc.Version
}
