package domain

import "strings"

// CollectionSuffix is appended to normalised model names.
const CollectionSuffix = "_chunks"

// NormalizeName lowercases s and replaces every non-alphanumeric byte with '_'.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ModelKey identifies one per-model collection.
type ModelKey struct {
	Company string
	Model   string
}

// Namespace returns the storage namespace for the company.
func (k ModelKey) Namespace() string {
	return NormalizeName(k.Company)
}

// Collection returns the storage collection for the model.
func (k ModelKey) Collection() string {
	return NormalizeName(k.Model) + CollectionSuffix
}

// String returns "namespace/collection".
func (k ModelKey) String() string {
	return k.Namespace() + "/" + k.Collection()
}

// Validate checks both parts are present.
func (k ModelKey) Validate() error {
	if k.Namespace() == "" || NormalizeName(k.Model) == "" {
		return ErrInvalidInput
	}
	return nil
}
