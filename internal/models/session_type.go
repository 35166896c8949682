package models

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// SessionType identifies what kind of workout a session was: its category
// and, when the session was started from a template, that template's name.
type SessionType struct {
	Category     Category `json:"category"`
	TemplateName string   `json:"template_name,omitempty"`
}

// Label flattens the type to the display string shown in history lists,
// e.g. "Strength - Overkropp" or "Endurance".
func (t SessionType) Label() string {
	if t.TemplateName == "" {
		return t.Category.DisplayName()
	}
	return t.Category.DisplayName() + " - " + t.TemplateName
}

// legacyParenRe matches labels of the form "Other training (Climbing)".
var legacyParenRe = regexp.MustCompile(`^(.+?)\s*\((.+)\)$`)

// ParseSessionType reads a flattened label back into a SessionType.
// It accepts "Category - Template", "Category (Template)" and "Category".
func ParseSessionType(label string) (SessionType, error) {
	label = strings.TrimSpace(label)

	if head, tail, ok := strings.Cut(label, " - "); ok {
		c, err := ParseCategory(head)
		if err != nil {
			return SessionType{}, err
		}
		return SessionType{Category: c, TemplateName: strings.TrimSpace(tail)}, nil
	}

	if m := legacyParenRe.FindStringSubmatch(label); m != nil {
		if c, err := ParseCategory(m[1]); err == nil {
			name := strings.TrimSpace(m[2])
			// "(Basic)" style suffixes describe a layout, not a template.
			if _, err := ParseLayout(name); err == nil {
				name = ""
			}
			return SessionType{Category: c, TemplateName: name}, nil
		}
	}

	c, err := ParseCategory(label)
	if err != nil {
		return SessionType{}, err
	}
	return SessionType{Category: c}, nil
}

// UnmarshalJSON accepts the object form and, from older exports, a
// flattened label string.
func (t *SessionType) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		parsed, err := ParseSessionType(label)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}

	type plain SessionType
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = SessionType(p)
	return nil
}
