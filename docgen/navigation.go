package docgen

import "fmt"

// StepStatus is the derived state of one form step.
type StepStatus struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Index    int      `json:"index"`
	Complete bool     `json:"complete"`
	Current  bool     `json:"current"`
	Missing  []string `json:"missing,omitempty"`
	Invalid  []string `json:"invalid,omitempty"`
}

// Progress summarizes the guided form for one model.
type Progress struct {
	Current         string       `json:"current"`
	Steps           []StepStatus `json:"steps"`
	Percent         int          `json:"percent"`
	FirstIncomplete string       `json:"first_incomplete,omitempty"`
	CanExport       bool         `json:"can_export"`
}

// Navigator derives step state from a schema. It holds no form state.
type Navigator struct {
	Schema    Schema
	Validator Validator
}

// NewNavigator creates a navigator for a schema.
func NewNavigator(schema Schema) Navigator {
	return Navigator{Schema: schema, Validator: NewValidator()}
}

// Progress derives per-step completion for model. When current is empty the
// first step is current.
func (n Navigator) Progress(model DocumentModel, current, locale string) (Progress, error) {
	steps := n.Schema.Steps
	if len(steps) == 0 {
		return Progress{}, NewError(KindValidation, fmt.Sprintf("schema %q defines no steps", n.Schema.Type), nil)
	}
	if current == "" {
		current = steps[0].Name
	}
	if _, err := n.index(current); err != nil {
		return Progress{}, err
	}

	result := n.Validator.Validate(n.Schema, model, locale)
	out := Progress{Current: current, CanExport: result.CanExport}
	complete := 0
	for i, step := range steps {
		status := StepStatus{
			Name:    step.Name,
			Label:   step.Label.Get(locale),
			Index:   i,
			Current: step.Name == current,
		}
		if status.Label == "" {
			status.Label = step.Name
		}
		if len(step.Fields) == 0 {
			status.Complete = result.CanExport
		} else {
			for _, name := range step.Fields {
				field, _ := n.Schema.Field(name)
				if !result.HasError(name) {
					continue
				}
				value, ok := model.Lookup(name)
				if field.Required && (!ok || isBlank(value)) {
					status.Missing = append(status.Missing, name)
				} else {
					status.Invalid = append(status.Invalid, name)
				}
			}
			status.Complete = len(status.Missing) == 0 && len(status.Invalid) == 0
		}
		if status.Complete {
			complete++
		} else if out.FirstIncomplete == "" {
			out.FirstIncomplete = step.Name
		}
		out.Steps = append(out.Steps, status)
	}
	out.Percent = complete * 100 / len(steps)
	return out, nil
}

// Goto returns target when it names a known step. Navigation is never gated.
func (n Navigator) Goto(target string) (string, error) {
	if _, err := n.index(target); err != nil {
		return "", err
	}
	return target, nil
}

// Next returns the step after current, or current when it is last.
func (n Navigator) Next(current string) (string, error) {
	idx, err := n.index(current)
	if err != nil {
		return "", err
	}
	if idx+1 < len(n.Schema.Steps) {
		return n.Schema.Steps[idx+1].Name, nil
	}
	return current, nil
}

// Prev returns the step before current, or current when it is first.
func (n Navigator) Prev(current string) (string, error) {
	idx, err := n.index(current)
	if err != nil {
		return "", err
	}
	if idx > 0 {
		return n.Schema.Steps[idx-1].Name, nil
	}
	return current, nil
}

func (n Navigator) index(name string) (int, error) {
	for i, step := range n.Schema.Steps {
		if step.Name == name {
			return i, nil
		}
	}
	return -1, NewError(KindValidation, fmt.Sprintf("unknown step %q", name), nil)
}
