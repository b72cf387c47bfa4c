package domain

import "strings"

// Catalog is the static list of sources plus the lookup tables that
// normalise them.
type Catalog struct {
	// Sources in declaration order.
	Sources []SourceDescriptor

	// Aliases maps a variant model name to its canonical name.
	Aliases map[string]string

	// Categories maps a policy category tag to a display label.
	Categories map[string]string
}

// CanonicalModel resolves a model name through the alias table.
// Lookups ignore case and punctuation.
func (c *Catalog) CanonicalModel(model string) string {
	if c == nil || len(c.Aliases) == 0 {
		return model
	}
	key := NormalizeName(model)
	for alias, canonical := range c.Aliases {
		if NormalizeName(alias) == key {
			return canonical
		}
	}
	return model
}

// CategoryLabel returns the display label for a category tag.
func (c *Catalog) CategoryLabel(tag string) string {
	if c != nil {
		if label, ok := c.Categories[strings.ToLower(tag)]; ok {
			return label
		}
	}
	return tag
}

// Models lists distinct (company, model) pairs in first-seen order.
func (c *Catalog) Models() []ModelKey {
	seen := make(map[string]bool)
	var out []ModelKey
	for _, s := range c.Sources {
		k := ModelKey{Company: s.Company, Model: s.Model}
		if seen[k.String()] {
			continue
		}
		seen[k.String()] = true
		out = append(out, k)
	}
	return out
}
