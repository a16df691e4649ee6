package docgen

import (
	"fmt"
	"strings"
)

// Translator resolves localized messages.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// Message keys used by validation.
const (
	MsgRequired  = "validation.required"
	MsgMinLength = "validation.min_length"
	MsgMaxLength = "validation.max_length"
	MsgMin       = "validation.min"
	MsgMax       = "validation.max"
	MsgNumber    = "validation.number"
	MsgInteger   = "validation.integer"
	MsgEnum      = "validation.enum"
	MsgDate      = "validation.date"
	MsgPattern   = "validation.pattern"
	MsgMinItems  = "validation.min_items"
	MsgList      = "validation.list"
)

// StaticTranslator serves messages from in-memory catalogs keyed by locale.
// Messages use fmt verbs; args are applied in order.
type StaticTranslator struct {
	Catalogs      map[string]map[string]string
	DefaultLocale string
}

// DefaultTranslator returns the built-in English and Bangla catalogs.
func DefaultTranslator() StaticTranslator {
	return StaticTranslator{
		DefaultLocale: DefaultLocale,
		Catalogs: map[string]map[string]string{
			"en": {
				MsgRequired:  "%s is required",
				MsgMinLength: "%s must be at least %v characters",
				MsgMaxLength: "%s must be at most %v characters",
				MsgMin:       "%s must be at least %v",
				MsgMax:       "%s must be at most %v",
				MsgNumber:    "%s must be a number",
				MsgInteger:   "%s must be a whole number",
				MsgEnum:      "%s must be one of: %v",
				MsgDate:      "%s must be a date (YYYY-MM-DD)",
				MsgPattern:   "%s has an invalid format",
				MsgMinItems:  "%s needs at least %v entries",
				MsgList:      "%s must be a list",
			},
			"bn": {
				MsgRequired:  "%s আবশ্যক",
				MsgMinLength: "%s কমপক্ষে %v অক্ষরের হতে হবে",
				MsgMaxLength: "%s সর্বোচ্চ %v অক্ষরের হতে পারে",
				MsgMin:       "%s কমপক্ষে %v হতে হবে",
				MsgMax:       "%s সর্বোচ্চ %v হতে পারে",
				MsgNumber:    "%s একটি সংখ্যা হতে হবে",
				MsgInteger:   "%s একটি পূর্ণসংখ্যা হতে হবে",
				MsgEnum:      "%s এর মান হতে হবে: %v",
				MsgDate:      "%s একটি তারিখ হতে হবে (YYYY-MM-DD)",
				MsgPattern:   "%s এর বিন্যাস সঠিক নয়",
				MsgMinItems:  "%s এ কমপক্ষে %vটি তথ্য দিতে হবে",
				MsgList:      "%s একটি তালিকা হতে হবে",
			},
		},
	}
}

// Translate implements Translator.
func (t StaticTranslator) Translate(locale, key string, args ...any) (string, error) {
	catalog, ok := t.Catalogs[normalizeLocale(locale)]
	if !ok || catalog[key] == "" {
		fallback := t.DefaultLocale
		if fallback == "" {
			fallback = DefaultLocale
		}
		catalog = t.Catalogs[fallback]
	}
	format := catalog[key]
	if format == "" {
		return "", NewError(KindNotFound, fmt.Sprintf("message %q not found", key), nil)
	}
	if len(args) == 0 {
		return format, nil
	}
	return fmt.Sprintf(format, args...), nil
}

func translate(t Translator, locale, key string, args ...any) string {
	if t != nil {
		if msg, err := t.Translate(locale, key, args...); err == nil && msg != "" {
			return msg
		}
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, key)
	for _, arg := range args {
		parts = append(parts, fmt.Sprint(arg))
	}
	return strings.Join(parts, " ")
}
