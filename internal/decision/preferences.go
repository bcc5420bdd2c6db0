package decision

import (
	"github.com/hferret/shelfarr/internal/models"
)

// Preferences is the effective, request-scoped policy for evaluating one
// search. It is built by layering, in order of increasing precedence:
// system-wide defaults, per-book overrides, then runtime-only context
// (blocklist, indexer allowlist) that has no persisted default layer.
type Preferences struct {
	PreferredFormats   []string
	ExcludeKeywords    []string
	RequireKeywords    []string
	MinSizeBytes       *int64
	MaxSizeBytes       *int64
	MinSeeders         *int
	MinAgeDays         *int
	MaxAgeDays         *int
	RequireTitleMatch  bool
	RequireAuthorMatch bool
	RequireISBNMatch   bool

	// Runtime-only layers
	BlocklistedURLs   map[string]struct{}
	AllowedIndexerIDs map[int64]struct{} // nil means unrestricted
}

// FromDefaults builds Preferences from the persisted default layer. A nil
// defaults row yields an open policy. Keyword lists always resolve to a
// non-nil slice so downstream matching never special-cases nil.
func FromDefaults(defaults *models.DownloadDecisionDefaults) *Preferences {
	p := &Preferences{
		PreferredFormats: []string{},
		ExcludeKeywords:  []string{},
		RequireKeywords:  []string{},
		BlocklistedURLs:  map[string]struct{}{},
	}
	if defaults == nil {
		return p
	}

	p.PreferredFormats = append(p.PreferredFormats, defaults.PreferredFormats...)
	p.ExcludeKeywords = append(p.ExcludeKeywords, defaults.ExcludeKeywords...)
	p.RequireKeywords = append(p.RequireKeywords, defaults.RequireKeywords...)
	p.MinSizeBytes = defaults.MinSizeBytes
	p.MaxSizeBytes = defaults.MaxSizeBytes
	p.MinSeeders = defaults.MinSeeders
	p.MinAgeDays = defaults.MinAgeDays
	p.MaxAgeDays = defaults.MaxAgeDays
	p.RequireTitleMatch = defaults.RequireTitleMatch
	p.RequireAuthorMatch = defaults.RequireAuthorMatch
	p.RequireISBNMatch = defaults.RequireISBNMatch
	return p
}

// ApplyTrackedBookOverrides layers a book's acquisition policy on top of
// the current preferences. Only fields the book explicitly sets override:
// a nil list means "inherit", while an empty list is itself a meaningful
// override and replaces the default.
func (p *Preferences) ApplyTrackedBookOverrides(book *models.TrackedBook) {
	if book == nil {
		return
	}
	if book.PreferredFormats != nil {
		p.PreferredFormats = append([]string{}, book.PreferredFormats...)
	}
	if book.ExcludeKeywords != nil {
		p.ExcludeKeywords = append([]string{}, book.ExcludeKeywords...)
	}
	if book.IncludeKeywords != nil {
		p.RequireKeywords = append([]string{}, book.IncludeKeywords...)
	}
	if book.RequireTitleMatch != nil {
		p.RequireTitleMatch = *book.RequireTitleMatch
	}
	if book.RequireAuthorMatch != nil {
		p.RequireAuthorMatch = *book.RequireAuthorMatch
	}
	if book.RequireISBNMatch != nil {
		p.RequireISBNMatch = *book.RequireISBNMatch
	}
}

// FromModels composes all three layers in one call for callers that do not
// need the intermediate object. allowedIndexerIDs nil means unrestricted.
func FromModels(defaults *models.DownloadDecisionDefaults, book *models.TrackedBook, blocklistedURLs []string, allowedIndexerIDs []int64) *Preferences {
	p := FromDefaults(defaults)
	p.ApplyTrackedBookOverrides(book)

	for _, u := range blocklistedURLs {
		p.BlocklistedURLs[u] = struct{}{}
	}
	if allowedIndexerIDs != nil {
		p.AllowedIndexerIDs = make(map[int64]struct{}, len(allowedIndexerIDs))
		for _, id := range allowedIndexerIDs {
			p.AllowedIndexerIDs[id] = struct{}{}
		}
	}
	return p
}

// IndexerAllowed reports whether the allowlist (when set) admits the id.
func (p *Preferences) IndexerAllowed(indexerID int64) bool {
	if p.AllowedIndexerIDs == nil {
		return true
	}
	_, ok := p.AllowedIndexerIDs[indexerID]
	return ok
}
