package decision

import (
	"sort"
	"strings"
	"time"

	"github.com/hferret/shelfarr/internal/models"
)

// RejectionType distinguishes rejections that can never resolve themselves
// from those that a later evaluation might clear.
type RejectionType string

const (
	RejectionPermanent RejectionType = "permanent"
	RejectionTemporary RejectionType = "temporary"
)

// RejectionReason identifies why a release was refused
type RejectionReason string

const (
	ReasonBlocklisted            RejectionReason = "blocklisted"
	ReasonIndexerDisabled        RejectionReason = "indexer_disabled"
	ReasonWrongFormat            RejectionReason = "wrong_format"
	ReasonBelowMinimumSize       RejectionReason = "below_minimum_size"
	ReasonAboveMaximumSize       RejectionReason = "above_maximum_size"
	ReasonInsufficientSeeders    RejectionReason = "insufficient_seeders"
	ReasonTooOld                 RejectionReason = "too_old"
	ReasonTooNew                 RejectionReason = "too_new"
	ReasonExcludedKeyword        RejectionReason = "excluded_keyword"
	ReasonMissingRequiredKeyword RejectionReason = "missing_required_keyword"
	ReasonMissingMetadata        RejectionReason = "missing_metadata"
)

// Rejection is one reason a release was refused
type Rejection struct {
	Reason  RejectionReason `json:"reason"`
	Message string          `json:"message"`
	Type    RejectionType   `json:"type"`
}

// Decision is the engine's verdict on one release. Rejections are
// cumulative: every applicable reason is recorded so a caller can present
// a full explanation.
type Decision struct {
	Release    *models.ReleaseInfo `json:"release"`
	Approved   bool                `json:"approved"`
	Score      float64             `json:"score"`
	Rejections []Rejection         `json:"rejections,omitempty"`
}

// PermanentlyRejected reports whether any rejection can never resolve.
func (d *Decision) PermanentlyRejected() bool {
	if d.Approved {
		return false
	}
	for _, r := range d.Rejections {
		if r.Type == RejectionPermanent {
			return true
		}
	}
	return false
}

// TemporarilyRejected reports whether the release was refused only for
// reasons that may clear on a later evaluation.
func (d *Decision) TemporarilyRejected() bool {
	return !d.Approved && len(d.Rejections) > 0 && !d.PermanentlyRejected()
}

// decisionBuilder accumulates rejections and is finalized exactly once;
// Approved is derived from the collected list, never flipped as a side
// effect along the way.
type decisionBuilder struct {
	release    *models.ReleaseInfo
	rejections []Rejection
}

func (b *decisionBuilder) reject(reason RejectionReason, rtype RejectionType, message string) {
	b.rejections = append(b.rejections, Rejection{Reason: reason, Message: message, Type: rtype})
}

func (b *decisionBuilder) finalize(score float64) *Decision {
	d := &Decision{
		Release:    b.release,
		Approved:   len(b.rejections) == 0,
		Rejections: b.rejections,
	}
	if d.Approved {
		d.Score = score
	}
	return d
}

// Engine evaluates candidate releases against effective preferences.
type Engine struct {
	scorer *ReleaseScorer
	now    func() time.Time
}

// NewEngine returns an engine using the given scorer, defaulting to the
// built-in strategy when nil.
func NewEngine(scorer *ReleaseScorer) *Engine {
	if scorer == nil {
		scorer = NewReleaseScorer(nil)
	}
	return &Engine{scorer: scorer, now: time.Now}
}

// Evaluate applies the preference checks to one release. Missing optional
// release fields mean "cannot evaluate this criterion" and are skipped,
// never treated as an error.
func (e *Engine) Evaluate(release *models.ReleaseInfo, prefs *Preferences, query Query, indexer *models.Indexer) *Decision {
	b := &decisionBuilder{release: release}

	if _, blocked := prefs.BlocklistedURLs[release.DownloadURL]; blocked {
		b.reject(ReasonBlocklisted, RejectionPermanent, "release URL is blocklisted")
	}

	if !prefs.IndexerAllowed(release.IndexerID) {
		b.reject(ReasonIndexerDisabled, RejectionPermanent, "supplying indexer is not enabled for this search")
	}

	if len(prefs.PreferredFormats) > 0 && release.Quality != nil {
		matched := false
		for _, format := range prefs.PreferredFormats {
			if strings.EqualFold(format, *release.Quality) {
				matched = true
				break
			}
		}
		if !matched {
			b.reject(ReasonWrongFormat, RejectionPermanent,
				"format "+*release.Quality+" is not in the preferred format list")
		}
	}

	if release.SizeBytes != nil {
		if prefs.MinSizeBytes != nil && *release.SizeBytes < *prefs.MinSizeBytes {
			b.reject(ReasonBelowMinimumSize, RejectionPermanent, "release is smaller than the configured minimum size")
		}
		if prefs.MaxSizeBytes != nil && *release.SizeBytes > *prefs.MaxSizeBytes {
			b.reject(ReasonAboveMaximumSize, RejectionPermanent, "release is larger than the configured maximum size")
		}
	}

	if prefs.MinSeeders != nil && release.Seeders != nil && *release.Seeders < *prefs.MinSeeders {
		// May resolve itself as more peers join.
		b.reject(ReasonInsufficientSeeders, RejectionTemporary, "release has too few seeders")
	}

	if release.PublishDate != nil {
		ageDays := int(e.now().Sub(*release.PublishDate).Hours() / 24)
		if prefs.MaxAgeDays != nil && ageDays > *prefs.MaxAgeDays {
			b.reject(ReasonTooOld, RejectionPermanent, "release is older than the configured maximum age")
		}
		if prefs.MinAgeDays != nil && ageDays < *prefs.MinAgeDays {
			// An embargo that expires.
			b.reject(ReasonTooNew, RejectionTemporary, "release is newer than the configured minimum age")
		}
	}

	haystack := strings.ToLower(release.Title)
	if release.Description != nil {
		haystack += " " + strings.ToLower(*release.Description)
	}

	for _, keyword := range prefs.ExcludeKeywords {
		if keyword != "" && strings.Contains(haystack, strings.ToLower(keyword)) {
			b.reject(ReasonExcludedKeyword, RejectionPermanent, "release contains excluded keyword: "+keyword)
		}
	}

	if len(prefs.RequireKeywords) > 0 {
		found := false
		for _, keyword := range prefs.RequireKeywords {
			if keyword != "" && strings.Contains(haystack, strings.ToLower(keyword)) {
				found = true
				break
			}
		}
		if !found {
			b.reject(ReasonMissingRequiredKeyword, RejectionPermanent, "release contains none of the required keywords")
		}
	}

	e.checkMetadataRequirements(b, release, prefs, query)

	score := 0.0
	if len(b.rejections) == 0 {
		score = e.scorer.Score(release, query, prefs.PreferredFormats, indexer)
	}
	return b.finalize(score)
}

func (e *Engine) checkMetadataRequirements(b *decisionBuilder, release *models.ReleaseInfo, prefs *Preferences, query Query) {
	if prefs.RequireTitleMatch && query.Title != "" {
		title := strings.ToLower(release.Title)
		if !strings.Contains(title, strings.ToLower(query.Title)) && !anyTokenMatches(title, strings.ToLower(query.Title)) {
			b.reject(ReasonMissingMetadata, RejectionPermanent, "release title does not match the search title")
		}
	}
	if prefs.RequireAuthorMatch && query.Author != "" {
		candidate := strings.ToLower(release.Title)
		if release.Author != nil {
			candidate = strings.ToLower(*release.Author)
		}
		if !strings.Contains(candidate, strings.ToLower(query.Author)) && !anyTokenMatches(candidate, strings.ToLower(query.Author)) {
			b.reject(ReasonMissingMetadata, RejectionPermanent, "release author does not match the search author")
		}
	}
	if prefs.RequireISBNMatch && query.ISBN != "" {
		if release.ISBN == nil || normalizeISBN(*release.ISBN) != normalizeISBN(query.ISBN) {
			b.reject(ReasonMissingMetadata, RejectionPermanent, "release ISBN is absent or does not match")
		}
	}
}

// PickBest evaluates all candidates and returns the approved decisions
// ordered by descending score. Rejected decisions are returned separately
// so callers can explain what was filtered and blocklist-feed permanent
// rejections.
func (e *Engine) PickBest(releases []*models.ReleaseInfo, prefs *Preferences, query Query, indexers map[int64]*models.Indexer) (approved, rejected []*Decision) {
	for _, release := range releases {
		decision := e.Evaluate(release, prefs, query, indexers[release.IndexerID])
		if decision.Approved {
			approved = append(approved, decision)
		} else {
			rejected = append(rejected, decision)
		}
	}
	sort.SliceStable(approved, func(i, j int) bool {
		return approved[i].Score > approved[j].Score
	})
	return approved, rejected
}
