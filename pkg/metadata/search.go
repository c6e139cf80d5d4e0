package metadata

import (
	"fmt"
	"iter"
	"sort"
	"strings"
)

// Relevance weights for search scoring. A name hit outranks any combination
// of description hits on a single record.
const (
	weightName        = 3
	weightTags        = 2
	weightNamespace   = 1
	weightDescription = 1
)

// Search returns up to limit records matching the free-text query, most
// relevant first. Matching is case-insensitive token/substring match across
// name, namespace, description and tags; ties rank the newest record first.
//
// The result is a single-use sequence: ranging over it a second time yields
// nothing.
func (s *Store) Search(query string, limit int) (iter.Seq[PathRecord], error) {
	if limit <= 0 {
		limit = DefaultPerPage
	}

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return emptySeq(), nil
	}

	// Pull candidates with a broad LIKE so scoring stays in Go but the
	// database prunes clearly unrelated rows.
	db := s.db.Model(&PathRecord{})
	for _, tok := range tokens {
		// LOWER keeps matching case-insensitive across dialects.
		pattern := "%" + escapeLike(tok) + "%"
		db = db.Or(
			s.db.Where("LOWER(name) LIKE ? ESCAPE '\\'", pattern).
				Or("LOWER(namespace) LIKE ? ESCAPE '\\'", pattern).
				Or("LOWER(description) LIKE ? ESCAPE '\\'", pattern).
				Or("LOWER(tags) LIKE ? ESCAPE '\\'", pattern),
		)
	}

	var candidates []PathRecord
	if err := db.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	type scored struct {
		rec   PathRecord
		score int
	}
	ranked := make([]scored, 0, len(candidates))
	for _, rec := range candidates {
		if sc := scoreRecord(&rec, tokens); sc > 0 {
			ranked = append(ranked, scored{rec: rec, score: sc})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].rec.CreatedAt.After(ranked[j].rec.CreatedAt)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	consumed := false
	return func(yield func(PathRecord) bool) {
		if consumed {
			return
		}
		consumed = true
		for _, sc := range ranked {
			if !yield(sc.rec) {
				return
			}
		}
	}, nil
}

func scoreRecord(rec *PathRecord, tokens []string) int {
	name := strings.ToLower(rec.Name)
	namespace := strings.ToLower(rec.Namespace)
	description := strings.ToLower(rec.Description)
	tags := make([]string, len(rec.Tags))
	for i, t := range rec.Tags {
		tags[i] = strings.ToLower(t)
	}

	score := 0
	for _, tok := range tokens {
		if strings.Contains(name, tok) {
			score += weightName
		}
		if strings.Contains(namespace, tok) {
			score += weightNamespace
		}
		if strings.Contains(description, tok) {
			score += weightDescription
		}
		for _, tag := range tags {
			if strings.Contains(tag, tok) {
				score += weightTags
				break
			}
		}
	}
	return score
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	tokens := fields[:0]
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func emptySeq() iter.Seq[PathRecord] {
	return func(func(PathRecord) bool) {}
}
