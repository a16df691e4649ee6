package docgen

import (
	"sort"
	"strconv"
	"strings"
)

// Element names a styled part of a rendered document.
type Element string

const (
	ElementPage           Element = "page"
	ElementCopy           Element = "copy"
	ElementHeader         Element = "header"
	ElementTitle          Element = "title"
	ElementSchool         Element = "school"
	ElementSectionHeading Element = "section_heading"
	ElementLabel          Element = "label"
	ElementValue          Element = "value"
	ElementPlaceholder    Element = "placeholder"
	ElementTable          Element = "table"
	ElementTableHeader    Element = "table_header"
	ElementTableCell      Element = "table_cell"
	ElementWatermark      Element = "watermark"
	ElementSignatures     Element = "signatures"
	ElementSignature      Element = "signature"
	ElementFooter         Element = "footer"
	ElementImage          Element = "image"
	ElementLogo           Element = "logo"
	ElementGlyph          Element = "glyph"
	ElementQR             Element = "qr"
	ElementRichText       Element = "richtext"
)

const (
	defaultPrimaryColor    = "#1f4e79"
	defaultAccentColor     = "#c00000"
	defaultTextColor       = "#1a1a1a"
	defaultBackgroundColor = "#ffffff"
	defaultBodyFont        = "Noto Sans Bengali, Arial, sans-serif"
	defaultBaseFontSize    = 12.0
	mutedColor             = "#5f6368"
	ruleColor              = "#b0b7bf"
)

// Declarations is a set of CSS property values.
type Declarations map[string]string

// String renders declarations as an inline style with sorted properties.
func (d Declarations) String() string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(d[key])
		b.WriteByte(';')
	}
	return b.String()
}

// Palette is the effective style after defaults are applied.
type Palette struct {
	Primary     string
	Accent      string
	Text        string
	Background  string
	HeadingFont string
	BodyFont    string
	FontSize    float64
}

// ResolvePalette merges descriptor style values over layout defaults.
func ResolvePalette(desc TemplateDescriptor) Palette {
	p := Palette{
		Primary:    defaultPrimaryColor,
		Accent:     defaultAccentColor,
		Text:       defaultTextColor,
		Background: defaultBackgroundColor,
		BodyFont:   defaultBodyFont,
		FontSize:   defaultBaseFontSize,
	}
	style := desc.Style
	if style.PrimaryColor != "" {
		p.Primary = style.PrimaryColor
	}
	if style.AccentColor != "" {
		p.Accent = style.AccentColor
	}
	if style.TextColor != "" {
		p.Text = style.TextColor
	}
	if style.BackgroundColor != "" {
		p.Background = style.BackgroundColor
	}
	if style.BodyFont != "" {
		p.BodyFont = style.BodyFont
	}
	p.HeadingFont = p.BodyFont
	if style.HeadingFont != "" {
		p.HeadingFont = style.HeadingFont
	}
	if style.BaseFontSize > 0 {
		p.FontSize = style.BaseFontSize
	}
	switch desc.Layout {
	case LayoutPortraitCompact:
		p.FontSize *= 0.9
	case LayoutLandscapeDual:
		p.FontSize *= 0.92
	}
	return p
}

// ResolveStyle returns the inline declarations for one element.
func ResolveStyle(desc TemplateDescriptor, element Element) Declarations {
	p := ResolvePalette(desc)
	size := func(scale float64) string {
		return strconv.FormatFloat(roundTenth(p.FontSize*scale), 'f', -1, 64) + "px"
	}
	dual := desc.Layout == LayoutLandscapeDual

	switch element {
	case ElementPage:
		page, _ := PageFor(desc)
		padding := "12mm"
		if desc.Layout == LayoutPortraitCompact {
			padding = "8mm"
		}
		if dual {
			padding = "8mm"
		}
		d := Declarations{
			"background":     p.Background,
			"box-sizing":     "border-box",
			"color":          p.Text,
			"font-family":    p.BodyFont,
			"font-size":      size(1),
			"min-height":     formatMM(page.HeightMM),
			"padding":        padding,
			"position":       "relative",
			"width":          formatMM(page.WidthMM),
			"display":        "flex",
			"flex-direction": "column",
		}
		if dual {
			d["flex-direction"] = "row"
			d["gap"] = "6mm"
		}
		return d
	case ElementCopy:
		d := Declarations{
			"box-sizing":     "border-box",
			"display":        "flex",
			"flex":           "1 1 0",
			"flex-direction": "column",
			"position":       "relative",
		}
		if dual {
			d["border-right"] = "1px dashed " + ruleColor
			d["padding-right"] = "3mm"
		}
		return d
	case ElementHeader:
		return Declarations{
			"border-bottom":  "2px solid " + p.Primary,
			"margin-bottom":  "4mm",
			"padding-bottom": "2mm",
			"text-align":     "center",
		}
	case ElementTitle:
		return Declarations{
			"color":          p.Primary,
			"font-family":    p.HeadingFont,
			"font-size":      size(1.6),
			"font-weight":    "700",
			"letter-spacing": "0.04em",
			"margin":         "1mm 0",
			"text-transform": "uppercase",
		}
	case ElementSchool:
		return Declarations{
			"color":       p.Text,
			"font-family": p.HeadingFont,
			"font-size":   size(1.25),
			"font-weight": "600",
		}
	case ElementSectionHeading:
		return Declarations{
			"border-bottom": "1px solid " + p.Accent,
			"color":         p.Accent,
			"font-size":     size(1.1),
			"font-weight":   "600",
			"margin":        "3mm 0 1.5mm",
		}
	case ElementLabel:
		return Declarations{
			"color":       mutedColor,
			"font-weight": "600",
			"padding":     "1mm 2mm 1mm 0",
			"width":       "38%",
		}
	case ElementValue:
		return Declarations{
			"border-bottom": "1px dotted " + ruleColor,
			"color":         p.Text,
			"min-height":    "1.2em",
			"padding":       "1mm 0",
		}
	case ElementPlaceholder:
		return Declarations{
			"display":    "inline-block",
			"min-height": "1em",
			"min-width":  "3em",
		}
	case ElementTable:
		return Declarations{
			"border-collapse": "collapse",
			"font-size":       size(0.95),
			"margin-top":      "2mm",
			"width":           "100%",
		}
	case ElementTableHeader:
		return Declarations{
			"background":  p.Primary,
			"border":      "1px solid " + p.Primary,
			"color":       "#ffffff",
			"font-weight": "600",
			"padding":     "1.5mm 2mm",
			"text-align":  "left",
		}
	case ElementTableCell:
		return Declarations{
			"border":  "1px solid " + ruleColor,
			"padding": "1.2mm 2mm",
		}
	case ElementWatermark:
		return Declarations{
			"color":          p.Primary,
			"font-size":      size(5),
			"font-weight":    "700",
			"left":           "0",
			"opacity":        "0.08",
			"pointer-events": "none",
			"position":       "absolute",
			"text-align":     "center",
			"top":            "42%",
			"transform":      "rotate(-30deg)",
			"width":          "100%",
		}
	case ElementSignatures:
		return Declarations{
			"display":         "flex",
			"gap":             "8mm",
			"justify-content": "space-between",
			"margin-top":      "auto",
			"padding-top":     "14mm",
		}
	case ElementSignature:
		return Declarations{
			"border-top":  "1px solid " + p.Text,
			"flex":        "1 1 0",
			"font-size":   size(0.9),
			"padding-top": "1mm",
			"text-align":  "center",
		}
	case ElementFooter:
		return Declarations{
			"color":      mutedColor,
			"font-size":  size(0.8),
			"margin-top": "3mm",
			"text-align": "center",
		}
	case ElementImage:
		return Declarations{
			"border":     "1px solid " + ruleColor,
			"height":     "38mm",
			"object-fit": "cover",
			"width":      "30mm",
		}
	case ElementLogo:
		return Declarations{
			"height":     "18mm",
			"object-fit": "contain",
			"width":      "18mm",
		}
	case ElementGlyph:
		return Declarations{
			"align-items":     "center",
			"border":          "1px dashed " + ruleColor,
			"color":           ruleColor,
			"display":         "inline-flex",
			"font-size":       size(2),
			"justify-content": "center",
			"min-height":      "18mm",
			"min-width":       "18mm",
		}
	case ElementQR:
		return Declarations{
			"align-items":     "center",
			"border":          "1px solid " + p.Text,
			"display":         "inline-flex",
			"font-size":       size(0.7),
			"height":          "22mm",
			"justify-content": "center",
			"width":           "22mm",
		}
	case ElementRichText:
		return Declarations{
			"line-height": "1.6",
			"text-align":  "justify",
		}
	default:
		return Declarations{}
	}
}

func formatMM(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + "mm"
}

func roundTenth(value float64) float64 {
	return float64(int(value*10+0.5)) / 10
}
