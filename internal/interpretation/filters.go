package interpretation

import (
	"github.com/moka-guys/negneg/internal/domain"
)

const (
	// tieringSoftwareKey is the softwareVersions entry that records which
	// tiering release produced an interpreted genome.
	tieringSoftwareKey = "gel-tiering"

	// DefaultMinTieringVersion is the first tiering release that reported
	// structural variants and short tandem repeats reliably. Earlier runs
	// are treated as "no data", not "zero findings".
	DefaultMinTieringVersion = "1.0.14"

	// DefaultMaxSVFrequency is the inclusive allele-frequency ceiling for a
	// tier-A structural variant to count as rare.
	DefaultMaxSVFrequency = 0.01
)

// RareEventFilters selects reportable high-priority structural variants and
// short tandem repeats from a tiering interpreted genome, subject to the
// software-version gate.
type RareEventFilters struct {
	MinTieringVersion string
	MaxSVFrequency    float64
}

// NewRareEventFilters returns filters with the production gates.
func NewRareEventFilters() RareEventFilters {
	return RareEventFilters{
		MinTieringVersion: DefaultMinTieringVersion,
		MaxSVFrequency:    DefaultMaxSVFrequency,
	}
}

// versionGate reports whether the genome was produced by a tiering release
// recent enough for its rare-event data to be trusted. A parseable version
// below the minimum fails the gate quietly: old runs mean "no data". A
// missing or malformed stamp is a data error — rare events can be neither
// trusted nor ruled out, so the case must not classify at all.
func (f RareEventFilters) versionGate(g *domain.InterpretedGenome) (bool, error) {
	version, ok := g.SoftwareVersions[tieringSoftwareKey]
	if !ok {
		return false, &domain.TieringVersionError{}
	}
	cmp, err := CompareVersions(version, f.MinTieringVersion)
	if err != nil {
		return false, &domain.TieringVersionError{Stamp: version, Err: err}
	}
	return cmp >= 0, nil
}

// RareTierASVs returns the structural variants tagged TIERA whose maximum
// reported allele frequency is at or below the rarity ceiling. A variant
// with no frequency data cannot be excluded (frequencies are not reported
// for sex chromosomes) and is always selected. Each variant is selected at
// most once however many TIERA events it carries.
func (f RareEventFilters) RareTierASVs(g *domain.InterpretedGenome) ([]domain.StructuralVariant, error) {
	passes, err := f.versionGate(g)
	if err != nil {
		return nil, err
	}
	var selected []domain.StructuralVariant
	if !passes {
		return selected, nil
	}
	for _, sv := range g.StructuralVariants {
		added := false
		for _, event := range sv.ReportEvents {
			if event.Tier != domain.TierA || added {
				continue
			}
			if len(sv.AlleleFrequencies) == 0 {
				selected = append(selected, sv)
				added = true
				continue
			}
			if maxFrequency(sv.AlleleFrequencies) <= f.MaxSVFrequency {
				selected = append(selected, sv)
				added = true
			}
		}
	}
	return selected, nil
}

// TieredSTRs returns the short tandem repeats with at least one TIER1 or
// TIER2 event, each selected at most once.
func (f RareEventFilters) TieredSTRs(g *domain.InterpretedGenome) ([]domain.ShortTandemRepeat, error) {
	passes, err := f.versionGate(g)
	if err != nil {
		return nil, err
	}
	var selected []domain.ShortTandemRepeat
	if !passes {
		return selected, nil
	}
	for _, repeat := range g.ShortTandemRepeats {
		added := false
		for _, event := range repeat.ReportEvents {
			if (event.Tier == domain.Tier1 || event.Tier == domain.Tier2) && !added {
				selected = append(selected, repeat)
				added = true
			}
		}
	}
	return selected, nil
}

func maxFrequency(frequencies []domain.AlleleFrequency) float64 {
	max := frequencies[0].AlternateFrequency
	for _, f := range frequencies[1:] {
		if f.AlternateFrequency > max {
			max = f.AlternateFrequency
		}
	}
	return max
}
