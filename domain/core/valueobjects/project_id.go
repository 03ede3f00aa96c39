package valueobjects

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonWordRun    = regexp.MustCompile(`[^\w-]+`)
)

// ProjectID is the normalized slug that identifies one tree.
type ProjectID struct {
	value string
}

// NewProjectID derives the slug for a human-readable project name:
// lowercased, whitespace runs become a hyphen, anything that is not a word
// character or hyphen is dropped.
func NewProjectID(name string) (ProjectID, error) {
	slug := Slugify(name)
	if slug == "" {
		return ProjectID{}, errors.New("project ID cannot be empty")
	}
	return ProjectID{value: slug}, nil
}

// Slugify applies the project-id normalization without validating the result.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	return nonWordRun.ReplaceAllString(slug, "")
}

// String returns the slug
func (p ProjectID) String() string {
	return p.value
}

// IsZero checks if the ProjectID is the zero value
func (p ProjectID) IsZero() bool {
	return p.value == ""
}

// Equals checks if two ProjectIDs are equal
func (p ProjectID) Equals(other ProjectID) bool {
	return p.value == other.value
}

// DisplayName turns a slug back into a title ("my-car" -> "My Car").
func (p ProjectID) DisplayName() string {
	parts := strings.FieldsFunc(p.value, func(r rune) bool { return r == '-' || r == '_' })
	for i, part := range parts {
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}

// MarshalJSON implements json.Marshaler
func (p ProjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}

// UnmarshalJSON implements json.Unmarshaler, normalizing the input
func (p *ProjectID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("ProjectID must be a string")
	}
	p.value = Slugify(s)
	return nil
}
