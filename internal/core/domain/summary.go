package domain

import (
	"sort"
	"strings"
	"time"
)

// ComplianceSummary aggregates one model's stored chunks.
type ComplianceSummary struct {
	Company        string         `json:"company"`
	Model          string         `json:"model"`
	TotalChunks    int            `json:"totalChunks"`
	ByCategory     map[string]int `json:"byCategory"`
	ByDocumentType map[string]int `json:"byDocumentType"`
	ByFormat       map[string]int `json:"byFormat"`
	Sources        int            `json:"sources"`
	WithEmbeddings int            `json:"withEmbeddings"`
	LastUpdated    time.Time      `json:"lastUpdated"`
}

// Summarize builds a summary from a model's records.
func Summarize(company, model string, records []StoredRecord) ComplianceSummary {
	s := ComplianceSummary{
		Company:        company,
		Model:          model,
		TotalChunks:    len(records),
		ByCategory:     make(map[string]int),
		ByDocumentType: make(map[string]int),
		ByFormat:       make(map[string]int),
	}
	sources := make(map[string]struct{})
	for i := range records {
		m := &records[i].Metadata
		seen := make(map[string]bool, len(m.PolicyCategories))
		for _, cat := range m.PolicyCategories {
			cat = strings.ToLower(strings.TrimSpace(cat))
			if cat == "" || seen[cat] {
				continue
			}
			seen[cat] = true
			s.ByCategory[cat]++
		}
		s.ByDocumentType[m.DocumentType]++
		s.ByFormat[string(m.Format)]++
		sources[m.SourceID] = struct{}{}
		if records[i].HasEmbedding() {
			s.WithEmbeddings++
		}
		if records[i].StoredAt.After(s.LastUpdated) {
			s.LastUpdated = records[i].StoredAt
		}
	}
	s.Sources = len(sources)
	return s
}

// CollectionStats counts the records in one collection.
type CollectionStats struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// NamespaceStats lists the collections of one company.
type NamespaceStats struct {
	Namespace   string            `json:"namespace"`
	Collections []CollectionStats `json:"collections"`
	Total       int               `json:"total"`
}

// StoreStats enumerates every namespace and collection.
type StoreStats struct {
	Namespaces []NamespaceStats `json:"namespaces"`
	Total      int              `json:"total"`
}

// BuildStats groups flat (namespace, collection, count) rows, sorted by name.
func BuildStats(rows map[string]map[string]int) StoreStats {
	var stats StoreStats
	names := make([]string, 0, len(rows))
	for ns := range rows {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		nsStats := NamespaceStats{Namespace: ns}
		cols := make([]string, 0, len(rows[ns]))
		for c := range rows[ns] {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			n := rows[ns][c]
			nsStats.Collections = append(nsStats.Collections, CollectionStats{Collection: c, Count: n})
			nsStats.Total += n
		}
		stats.Namespaces = append(stats.Namespaces, nsStats)
		stats.Total += nsStats.Total
	}
	return stats
}

// CategoryCount is a category with its chunk count.
type CategoryCount struct {
	Category string
	Count    int
}

// SortedCategories returns categories by descending count then name.
func (s *ComplianceSummary) SortedCategories() []CategoryCount {
	out := make([]CategoryCount, 0, len(s.ByCategory))
	for k, v := range s.ByCategory {
		out = append(out, CategoryCount{Category: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}
