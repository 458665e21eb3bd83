// Package interpretation implements the decision pipeline that classifies an
// interpretation request as negative-negative: aggregation of per-provider
// variant evidence, the rare-event filters, the classification engine and the
// case grouper.
package interpretation

import (
	"strings"

	"github.com/moka-guys/negneg/internal/domain"
)

// VariantsByProvider maps a case-normalized provider name to the variant
// list of each interpreted-genome version that provider submitted. An empty
// variant list is preserved: it means the provider participated and found
// nothing, which is distinct from the provider being absent.
type VariantsByProvider map[string]map[int][]domain.Variant

// GroupByProvider buckets a case's interpreted genomes by provider and
// version. A duplicate (provider, version) pair is a data-integrity error
// that aborts classification of the case.
func GroupByProvider(genomes []domain.InterpretedGenome) (VariantsByProvider, error) {
	grouped := VariantsByProvider{}
	for _, g := range genomes {
		provider := strings.ToLower(g.Provider)
		versions, ok := grouped[provider]
		if !ok {
			versions = map[int][]domain.Variant{}
			grouped[provider] = versions
		}
		if _, exists := versions[g.Version]; exists {
			return nil, &domain.DuplicateVersionError{Provider: provider, Version: g.Version}
		}
		if g.Variants != nil {
			versions[g.Version] = g.Variants
		} else {
			versions[g.Version] = []domain.Variant{}
		}
	}
	return grouped, nil
}

// LatestVersion returns the highest interpreted-genome version present for a
// provider, or false if the provider is absent.
func (v VariantsByProvider) LatestVersion(provider string) (int, bool) {
	versions, ok := v[provider]
	if !ok || len(versions) == 0 {
		return 0, false
	}
	latest := 0
	first := true
	for version := range versions {
		if first || version > latest {
			latest = version
			first = false
		}
	}
	return latest, true
}

// TierGroups holds a provider's variants bucketed by their effective tier.
type TierGroups struct {
	Tier1 []domain.Variant
	Tier2 []domain.Variant
	Tier3 []domain.Variant
	Other []domain.Variant
}

// GroupByTier buckets variants by the highest-ranked tier across each
// variant's report events. Variants without any TIER1-3 event land in Other.
func GroupByTier(variants []domain.Variant) TierGroups {
	groups := TierGroups{}
	for _, v := range variants {
		switch v.TopRank() {
		case 1:
			groups.Tier1 = append(groups.Tier1, v)
		case 2:
			groups.Tier2 = append(groups.Tier2, v)
		case 3:
			groups.Tier3 = append(groups.Tier3, v)
		default:
			groups.Other = append(groups.Other, v)
		}
	}
	return groups
}
