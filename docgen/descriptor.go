package docgen

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// A4 dimensions in millimetres, portrait.
const (
	a4WidthMM  = 210.0
	a4HeightMM = 297.0
)

var (
	structValidateOnce sync.Once
	structValidate     *validator.Validate
	structTranslator   ut.Translator
)

func descriptorValidator() (*validator.Validate, ut.Translator) {
	structValidateOnce.Do(func() {
		structValidate = validator.New()
		english := en.New()
		uni := ut.New(english, english)
		structTranslator, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(structValidate, structTranslator)

		structValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return structValidate, structTranslator
}

// ValidateStruct validates a tagged struct and returns a validation error
// listing each failing field.
func ValidateStruct(value any) error {
	validate, trans := descriptorValidator()
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError(KindValidation, "invalid value", err)
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fe.Translate(trans))
	}
	sort.Strings(messages)
	return NewError(KindValidation, strings.Join(messages, "; "), err)
}

// NormalizeDescriptor fills derived descriptor fields and validates it.
func NormalizeDescriptor(desc TemplateDescriptor) (TemplateDescriptor, error) {
	desc.ID = strings.TrimSpace(desc.ID)
	if desc.PageSize == "" {
		desc.PageSize = PageSizeA4
	}
	desc.PageSize = strings.ToUpper(desc.PageSize)
	if desc.Orientation == "" {
		desc.Orientation = desc.Layout.Orientation()
	}
	if desc.Version == "" {
		desc.Version = "1"
	}
	if err := ValidateStruct(desc); err != nil {
		return TemplateDescriptor{}, err
	}
	if desc.Orientation != desc.Layout.Orientation() {
		return TemplateDescriptor{}, NewError(KindValidation,
			fmt.Sprintf("layout %s requires %s orientation", desc.Layout, desc.Layout.Orientation()), nil)
	}
	return desc, nil
}

// WithLayout returns a copy of desc switched to layout, adjusting orientation.
func (d TemplateDescriptor) WithLayout(layout Layout) TemplateDescriptor {
	d.Layout = layout
	d.Orientation = layout.Orientation()
	return d
}

// PageFor returns the physical page for a descriptor.
func PageFor(desc TemplateDescriptor) (PageSpec, error) {
	size := strings.ToUpper(strings.TrimSpace(desc.PageSize))
	if size == "" {
		size = PageSizeA4
	}
	if size != PageSizeA4 {
		return PageSpec{}, NewError(KindExport, fmt.Sprintf("unsupported page format: %s", desc.PageSize), nil)
	}
	orientation := desc.Orientation
	if orientation == "" {
		orientation = desc.Layout.Orientation()
	}
	switch orientation {
	case OrientationPortrait:
		return PageSpec{Size: size, Orientation: orientation, WidthMM: a4WidthMM, HeightMM: a4HeightMM}, nil
	case OrientationLandscape:
		return PageSpec{Size: size, Orientation: orientation, WidthMM: a4HeightMM, HeightMM: a4WidthMM}, nil
	default:
		return PageSpec{}, NewError(KindExport, fmt.Sprintf("unsupported orientation: %s", orientation), nil)
	}
}
