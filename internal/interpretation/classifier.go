package interpretation

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/moka-guys/negneg/internal/domain"
)

// CaseSource is the upstream interpretation API as seen by the pipeline.
// pkg/cipapi provides the production implementation; tests use fakes.
type CaseSource interface {
	// ListCases returns the case descriptors for one lifecycle status and
	// sample type.
	ListCases(ctx context.Context, status, sampleType string) ([]domain.Case, error)
	// CaseDetail returns every provider's interpreted genome for a case plus
	// the case-level tags.
	CaseDetail(ctx context.Context, requestID string, version int) (*domain.CaseDetail, error)
	// InterpretedGenome returns one provider's detailed interpretation
	// payload, used by the rare-event filters.
	InterpretedGenome(ctx context.Context, requestID string, version int, provider string) (*domain.InterpretedGenome, error)
}

// Engine computes the negative-negative determination for one case.
type Engine struct {
	source            CaseSource
	filters           RareEventFilters
	primaryProvider   string
	excludedProviders map[string]bool
	log               *logrus.Logger
}

// NewEngine creates a classification engine. primaryProvider is the service
// whose tier assignments are authoritative; excludedProviders are left out of
// the third-party candidate count (the primary tiering provider and, by
// policy, the secondary prioritizer).
func NewEngine(source CaseSource, filters RareEventFilters, primaryProvider string, excludedProviders []string, logger *logrus.Logger) *Engine {
	excluded := make(map[string]bool, len(excludedProviders))
	for _, p := range excludedProviders {
		excluded[strings.ToLower(p)] = true
	}
	return &Engine{
		source:            source,
		filters:           filters,
		primaryProvider:   strings.ToLower(primaryProvider),
		excludedProviders: excluded,
		log:               logger,
	}
}

// Classify fetches a case's interpretation payload and decides whether it is
// negative-negative. The case is negative-negative if and only if every
// contributor is zero: primary-provider tier 1, tier 2 and other-tier counts,
// third-party candidate count, rare tier-A structural variants, tiered short
// tandem repeats and case tags. Any nonzero contributor, including a
// free-text tag regardless of content, disqualifies automated negative
// reporting.
func (e *Engine) Classify(ctx context.Context, c domain.Case) (*domain.ClassificationResult, error) {
	// A cancelled run must stop, not flood the error bucket with the
	// remaining cases.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detail, err := e.source.CaseDetail(ctx, c.RequestID, c.Version)
	if err != nil {
		return nil, &domain.FetchError{Op: "case detail", RequestID: c.FullRequestID(), Err: err}
	}

	byProvider, err := GroupByProvider(detail.Genomes)
	if err != nil {
		return nil, err
	}

	// Latest version wins when the primary provider submitted more than one
	// interpreted genome. No entry at all is a data error, never a zero.
	latest, ok := byProvider.LatestVersion(e.primaryProvider)
	if !ok {
		return nil, &domain.MissingPrimaryProviderError{Provider: e.primaryProvider}
	}
	tiers := GroupByTier(byProvider[e.primaryProvider][latest])

	// The rare-event filters need the primary provider's full payload, which
	// the case detail does not carry.
	genome, err := e.source.InterpretedGenome(ctx, c.RequestID, c.Version, e.primaryProvider)
	if err != nil {
		return nil, &domain.FetchError{Op: "interpreted genome", RequestID: c.FullRequestID(), Err: err}
	}
	rareSVs, err := e.filters.RareTierASVs(genome)
	if err != nil {
		return nil, err
	}
	tieredSTRs, err := e.filters.TieredSTRs(genome)
	if err != nil {
		return nil, err
	}

	result := &domain.ClassificationResult{
		Tier1Count:              len(tiers.Tier1),
		Tier2Count:              len(tiers.Tier2),
		OtherTierCount:          len(tiers.Other),
		OtherProviderCandidates: e.candidateCount(byProvider),
		RareTierASVCount:        len(rareSVs),
		TieredSTRCount:          len(tieredSTRs),
		TagCount:                len(detail.Tags),
	}
	sum := result.Tier1Count + result.Tier2Count + result.OtherTierCount +
		result.OtherProviderCandidates + result.RareTierASVCount +
		result.TieredSTRCount + result.TagCount
	result.NegNeg = sum == 0

	e.log.WithFields(logrus.Fields{
		"request_id":       c.FullRequestID(),
		"participant_id":   c.ParticipantID,
		"negneg":           result.NegNeg,
		"tier1":            result.Tier1Count,
		"tier2":            result.Tier2Count,
		"other":            result.OtherTierCount,
		"other_candidates": result.OtherProviderCandidates,
		"rare_tiera_svs":   result.RareTierASVCount,
		"tiered_strs":      result.TieredSTRCount,
		"tags":             result.TagCount,
	}).Debug("Case classified")

	return result, nil
}

// candidateCount sums the latest-version variant counts across every
// provider outside the exclusion policy.
func (e *Engine) candidateCount(byProvider VariantsByProvider) int {
	count := 0
	for provider := range byProvider {
		if e.excludedProviders[provider] {
			continue
		}
		latest, ok := byProvider.LatestVersion(provider)
		if !ok {
			continue
		}
		count += len(byProvider[provider][latest])
	}
	return count
}
