package docgen

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	repeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// Filename derives the artifact filename from the identifying fields of a
// model. The same model and clock always yield the same name.
func Filename(schema Schema, model DocumentModel, ext string, now time.Time) (string, error) {
	pattern := schema.Filename
	if pattern == "" {
		pattern = "{{.Type}}_{{.Date}}"
	}

	data := map[string]string{
		"Type":      string(schema.Type),
		"Date":      now.UTC().Format("20060102"),
		"Timestamp": now.UTC().Format("20060102T150405Z"),
	}
	for _, field := range schema.Fields {
		if field.Kind == KindList || field.Kind == KindImage || field.Kind == KindRichText {
			continue
		}
		data[field.Name] = model.String(field.Name)
	}
	if data["year"] == "" {
		data["year"] = strconv.Itoa(now.UTC().Year())
	}

	tmpl, err := template.New("filename").Option("missingkey=zero").Parse(pattern)
	if err != nil {
		return "", NewError(KindValidation, "invalid filename pattern", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewError(KindValidation, "filename pattern failed", err)
	}

	result := sanitizeFilename(buf.String())
	if result == "" {
		return "", NewError(KindValidation, "empty filename", nil)
	}

	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext != "" && !strings.HasSuffix(strings.ToLower(result), "."+ext) {
		result = result + "." + ext
	}
	return result, nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = repeatedUnderscores.ReplaceAllString(name, "_")
	return strings.Trim(name, "_.-")
}

// IdentityOf returns the identifying field values of a model.
func IdentityOf(schema Schema, model DocumentModel) map[string]string {
	out := map[string]string{}
	for _, name := range schema.IdentityFields() {
		if value := model.String(name); value != "" {
			out[name] = value
		}
	}
	return out
}

// DocumentKey derives the key that export status and sessions are tracked
// under. An explicit key wins; otherwise type and identity fields are
// joined. Two different models may share a key.
func DocumentKey(schema Schema, input DocumentInput) string {
	if key := strings.TrimSpace(input.Key); key != "" {
		return key
	}
	parts := []string{string(schema.Type)}
	for _, name := range schema.IdentityFields() {
		parts = append(parts, name+"="+input.Model.String(name))
	}
	return strings.Join(parts, ":")
}

// InputFingerprint hashes the full content of input: type, model, locale,
// template ID and the normalized inline descriptor. The explicit key is left
// out so the same content under two keys hashes alike.
func InputFingerprint(input DocumentInput) (string, error) {
	var desc *TemplateDescriptor
	if input.Descriptor != nil {
		normalized, err := NormalizeDescriptor(*input.Descriptor)
		if err != nil {
			normalized = *input.Descriptor
		}
		desc = &normalized
	}
	payload, err := json.Marshal(struct {
		Type       DocumentType        `json:"type"`
		Model      DocumentModel       `json:"model"`
		TemplateID string              `json:"template_id,omitempty"`
		Descriptor *TemplateDescriptor `json:"descriptor,omitempty"`
		Locale     string              `json:"locale,omitempty"`
	}{input.Type, input.Model, strings.TrimSpace(input.TemplateID), desc, input.Locale})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
