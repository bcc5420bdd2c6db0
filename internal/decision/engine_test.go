package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hferret/shelfarr/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }
func i64Ptr(v int64) *int64   { return &v }

func openPrefs() *Preferences {
	return FromDefaults(nil)
}

func TestEvaluate_ApprovesCleanRelease(t *testing.T) {
	e := NewEngine(nil)
	release := &models.ReleaseInfo{
		Title:       "Dune by Frank Herbert",
		DownloadURL: "http://indexer/dune.torrent",
		Quality:     strPtr("epub"),
		Seeders:     intPtr(25),
	}

	d := e.Evaluate(release, openPrefs(), Query{Title: "Dune", Author: "Frank Herbert"}, nil)
	assert.True(t, d.Approved)
	assert.Empty(t, d.Rejections)
	assert.Greater(t, d.Score, 0.0)
}

func TestEvaluate_RejectionsAccumulate(t *testing.T) {
	e := NewEngine(nil)
	prefs := openPrefs()
	prefs.PreferredFormats = []string{"epub"}
	prefs.MinSizeBytes = i64Ptr(1 << 20)

	release := &models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: "http://indexer/dune.pdf",
		Quality:     strPtr("pdf"),
		SizeBytes:   i64Ptr(1000),
	}

	d := e.Evaluate(release, prefs, Query{Title: "Dune"}, nil)
	require.False(t, d.Approved)
	require.Len(t, d.Rejections, 2)

	reasons := map[RejectionReason]RejectionType{}
	for _, r := range d.Rejections {
		reasons[r.Reason] = r.Type
	}
	assert.Equal(t, RejectionPermanent, reasons[ReasonWrongFormat])
	assert.Equal(t, RejectionPermanent, reasons[ReasonBelowMinimumSize])
	assert.True(t, d.PermanentlyRejected())
	assert.Zero(t, d.Score)
}

func TestEvaluate_BlocklistedURL(t *testing.T) {
	e := NewEngine(nil)
	prefs := openPrefs()
	prefs.BlocklistedURLs["http://indexer/bad.torrent"] = struct{}{}

	d := e.Evaluate(&models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: "http://indexer/bad.torrent",
	}, prefs, Query{}, nil)

	require.False(t, d.Approved)
	assert.Equal(t, ReasonBlocklisted, d.Rejections[0].Reason)
	assert.True(t, d.PermanentlyRejected())
}

func TestEvaluate_SeedersRejectionIsTemporary(t *testing.T) {
	e := NewEngine(nil)
	prefs := openPrefs()
	prefs.MinSeeders = intPtr(5)

	d := e.Evaluate(&models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: "http://indexer/dune.torrent",
		Seeders:     intPtr(1),
	}, prefs, Query{}, nil)

	require.False(t, d.Approved)
	assert.True(t, d.TemporarilyRejected())
	assert.False(t, d.PermanentlyRejected())
}

func TestEvaluate_MissingFieldsSkipChecks(t *testing.T) {
	e := NewEngine(nil)
	prefs := openPrefs()
	prefs.MinSizeBytes = i64Ptr(1 << 20)
	prefs.MinSeeders = intPtr(5)
	prefs.MaxAgeDays = intPtr(30)

	// No size, seeders or publish date: those criteria cannot be evaluated
	// and must not reject.
	d := e.Evaluate(&models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: "http://indexer/dune.torrent",
	}, prefs, Query{}, nil)

	assert.True(t, d.Approved)
}

func TestEvaluate_FormatCheckSkippedWithoutQuality(t *testing.T) {
	e := NewEngine(nil)
	prefs := openPrefs()
	prefs.PreferredFormats = []string{"epub"}

	d := e.Evaluate(&models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: "http://indexer/dune.torrent",
	}, prefs, Query{}, nil)

	assert.True(t, d.Approved)
}

func TestEvaluate_IndexerAllowlist(t *testing.T) {
	e := NewEngine(nil)
	prefs := openPrefs()
	prefs.AllowedIndexerIDs = map[int64]struct{}{1: {}}

	allowed := e.Evaluate(&models.ReleaseInfo{
		Title: "Dune", DownloadURL: "u1", IndexerID: 1,
	}, prefs, Query{}, nil)
	blocked := e.Evaluate(&models.ReleaseInfo{
		Title: "Dune", DownloadURL: "u2", IndexerID: 2,
	}, prefs, Query{}, nil)

	assert.True(t, allowed.Approved)
	require.False(t, blocked.Approved)
	assert.Equal(t, ReasonIndexerDisabled, blocked.Rejections[0].Reason)
}

func TestEvaluate_RequiredMetadataMatches(t *testing.T) {
	e := NewEngine(nil)
	prefs := openPrefs()
	prefs.RequireISBNMatch = true

	query := Query{ISBN: "978-0-441-17271-9"}

	match := e.Evaluate(&models.ReleaseInfo{
		Title: "Dune", DownloadURL: "u1", ISBN: strPtr("9780441172719"),
	}, prefs, query, nil)
	assert.True(t, match.Approved, "hyphenation differences must not matter")

	missing := e.Evaluate(&models.ReleaseInfo{
		Title: "Dune", DownloadURL: "u2",
	}, prefs, query, nil)
	require.False(t, missing.Approved)
	assert.Equal(t, ReasonMissingMetadata, missing.Rejections[0].Reason)
}

func TestEvaluate_ExcludedKeyword(t *testing.T) {
	e := NewEngine(nil)
	prefs := openPrefs()
	prefs.ExcludeKeywords = []string{"abridged"}

	d := e.Evaluate(&models.ReleaseInfo{
		Title:       "Dune [ABRIDGED]",
		DownloadURL: "u1",
	}, prefs, Query{}, nil)

	require.False(t, d.Approved)
	assert.Equal(t, ReasonExcludedKeyword, d.Rejections[0].Reason)
}

func TestPickBest_OrdersByScore(t *testing.T) {
	e := NewEngine(nil)
	prefs := openPrefs()
	prefs.PreferredFormats = []string{"epub"}
	query := Query{Title: "Dune", Author: "Frank Herbert"}

	weak := &models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: "u1",
	}
	strong := &models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: "u2",
		Author:      strPtr("Frank Herbert"),
		Quality:     strPtr("epub"),
		Seeders:     intPtr(100),
	}
	bad := &models.ReleaseInfo{
		Title:       "Dune",
		DownloadURL: "u3",
		Quality:     strPtr("mobi"),
	}

	approved, rejected := e.PickBest([]*models.ReleaseInfo{weak, bad, strong}, prefs, query, nil)
	require.Len(t, approved, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, "u2", approved[0].Release.DownloadURL)
	assert.Equal(t, "u1", approved[1].Release.DownloadURL)
	assert.Equal(t, "u3", rejected[0].Release.DownloadURL)
}

func TestScore_ClampedToUnitInterval(t *testing.T) {
	scorer := NewReleaseScorer(nil)
	now := time.Now()

	release := &models.ReleaseInfo{
		Title:       "Dune by Frank Herbert",
		Author:      strPtr("Frank Herbert"),
		ISBN:        strPtr("9780441172719"),
		Quality:     strPtr("epub"),
		Seeders:     intPtr(1000),
		PublishDate: &now,
	}
	indexer := &models.Indexer{ID: 1, Priority: 1}
	query := Query{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441172719"}

	score := scorer.Score(release, query, []string{"epub"}, indexer)
	assert.LessOrEqual(t, score, 1.0)
	assert.Greater(t, score, 0.9)
}

func TestScore_MonotonicInSeeders(t *testing.T) {
	scorer := NewReleaseScorer(nil)
	query := Query{Title: "Dune"}

	base := &models.ReleaseInfo{Title: "Dune", Seeders: intPtr(1)}
	better := &models.ReleaseInfo{Title: "Dune", Seeders: intPtr(40)}
	saturated := &models.ReleaseInfo{Title: "Dune", Seeders: intPtr(5000)}

	s1 := scorer.Score(base, query, nil, nil)
	s2 := scorer.Score(better, query, nil, nil)
	s3 := scorer.Score(saturated, query, nil, nil)

	assert.Less(t, s1, s2)
	assert.LessOrEqual(t, s2, s3)
}

func TestPreferences_BookOverrides(t *testing.T) {
	defaults := &models.DownloadDecisionDefaults{
		PreferredFormats: models.StringList{"epub"},
		ExcludeKeywords:  models.StringList{"sample"},
	}
	book := &models.TrackedBook{
		PreferredFormats: models.StringList{"pdf", "mobi"},
		// ExcludeKeywords nil: inherit the default
		IncludeKeywords: models.StringList{},
	}

	p := FromModels(defaults, book, []string{"http://bad"}, nil)

	assert.Equal(t, []string{"pdf", "mobi"}, p.PreferredFormats)
	assert.Equal(t, []string{"sample"}, p.ExcludeKeywords)
	// An explicitly empty list is an override, not inheritance.
	assert.Empty(t, p.RequireKeywords)
	_, blocked := p.BlocklistedURLs["http://bad"]
	assert.True(t, blocked)
	assert.True(t, p.IndexerAllowed(42))
}
