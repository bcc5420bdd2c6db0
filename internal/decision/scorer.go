package decision

import (
	"math"
	"strings"
	"time"

	"github.com/hferret/shelfarr/internal/models"
)

// Query carries the search intent a candidate release is scored against.
type Query struct {
	Title  string
	Author string
	ISBN   string
}

// ScoringStrategy scores a candidate release against a query and the
// supplying indexer. Implementations must be pure and deterministic.
type ScoringStrategy interface {
	Score(release *models.ReleaseInfo, query Query, preferredFormats []string, indexer *models.Indexer) float64
}

// ReleaseScorer delegates to whichever strategy is configured, so scoring
// logic can be swapped without touching call sites.
type ReleaseScorer struct {
	strategy ScoringStrategy
}

// NewReleaseScorer returns a scorer using the given strategy, defaulting
// to DefaultScoringStrategy when nil.
func NewReleaseScorer(strategy ScoringStrategy) *ReleaseScorer {
	if strategy == nil {
		strategy = &DefaultScoringStrategy{}
	}
	return &ReleaseScorer{strategy: strategy}
}

// Score scores a release, clamped to [0, 1].
func (s *ReleaseScorer) Score(release *models.ReleaseInfo, query Query, preferredFormats []string, indexer *models.Indexer) float64 {
	return clamp01(s.strategy.Score(release, query, preferredFormats, indexer))
}

// Scoring weights. Matching is case-insensitive; a partial title/author
// match means at least one non-trivial query token appears in the field.
const (
	weightTitleFull     = 0.40
	weightTitlePartial  = 0.20
	weightAuthorFull    = 0.30
	weightAuthorPartial = 0.15
	weightISBN          = 0.20
	weightFormat        = 0.10
	weightSeedersMax    = 0.10
	weightIndexerMax    = 0.05

	seederSaturation = 50
)

// DefaultScoringStrategy is the built-in weighted-sum scorer.
type DefaultScoringStrategy struct{}

// Score implements ScoringStrategy.
func (DefaultScoringStrategy) Score(release *models.ReleaseInfo, query Query, preferredFormats []string, indexer *models.Indexer) float64 {
	score := 0.0
	title := strings.ToLower(release.Title)

	if q := strings.ToLower(strings.TrimSpace(query.Title)); q != "" {
		if strings.Contains(title, q) {
			score += weightTitleFull
		} else if anyTokenMatches(title, q) {
			score += weightTitlePartial
		}
	}

	if q := strings.ToLower(strings.TrimSpace(query.Author)); q != "" {
		candidate := title
		if release.Author != nil {
			candidate = strings.ToLower(*release.Author)
		}
		if strings.Contains(candidate, q) {
			score += weightAuthorFull
		} else if anyTokenMatches(candidate, q) {
			score += weightAuthorPartial
		}
	}

	if query.ISBN != "" && release.ISBN != nil && normalizeISBN(*release.ISBN) == normalizeISBN(query.ISBN) {
		score += weightISBN
	}

	if release.Quality != nil {
		for _, format := range preferredFormats {
			if strings.EqualFold(format, *release.Quality) {
				score += weightFormat
				break
			}
		}
	}

	if release.Seeders != nil && *release.Seeders > 0 {
		ratio := float64(*release.Seeders) / seederSaturation
		score += weightSeedersMax * math.Min(ratio, 1.0)
	}

	score += recencyBonus(release.PublishDate)

	if indexer != nil && indexer.Priority > 0 {
		score += weightIndexerMax / float64(indexer.Priority)
	}

	return clamp01(score)
}

// recencyBonus rewards freshly published releases: 0.05 within a week,
// 0.03 within a month, 0.01 within 90 days, nothing beyond.
func recencyBonus(publishDate *time.Time) float64 {
	if publishDate == nil {
		return 0
	}
	age := time.Since(*publishDate)
	switch {
	case age < 0:
		return 0
	case age <= 7*24*time.Hour:
		return 0.05
	case age <= 30*24*time.Hour:
		return 0.03
	case age <= 90*24*time.Hour:
		return 0.01
	}
	return 0
}

// anyTokenMatches reports whether any non-trivial token of query appears
// in candidate. Tokens of one or two characters are ignored.
func anyTokenMatches(candidate, query string) bool {
	for _, token := range strings.Fields(query) {
		if len(token) < 3 {
			continue
		}
		if strings.Contains(candidate, token) {
			return true
		}
	}
	return false
}

func normalizeISBN(isbn string) string {
	var b strings.Builder
	for _, r := range isbn {
		if (r >= '0' && r <= '9') || r == 'x' || r == 'X' {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
