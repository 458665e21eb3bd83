package cipapi

import (
	"github.com/moka-guys/negneg/internal/domain"
)

// Wire representations of the report-model v6 payloads returned by the
// interpretation API. Only the fields the classification pipeline reads are
// mapped; everything else in the payload is ignored on decode.

type interpretationRequestResponse struct {
	InterpretedGenomes []interpretedGenomeEnvelope `json:"interpreted_genome"`
	Tags               []string                    `json:"tags"`
}

type interpretedGenomeEnvelope struct {
	CIPVersion int                   `json:"cip_version"`
	Data       interpretedGenomeData `json:"interpreted_genome_data"`
}

type interpretedGenomeData struct {
	InterpretationService string                  `json:"interpretationService"`
	SoftwareVersions      map[string]string       `json:"softwareVersions"`
	Variants              []wireVariant           `json:"variants"`
	StructuralVariants    []wireStructuralVariant `json:"structuralVariants"`
	ShortTandemRepeats    []wireShortTandemRepeat `json:"shortTandemRepeats"`
}

type wireReportEvent struct {
	Tier string `json:"tier"`
}

type wireVariant struct {
	ReportEvents []wireReportEvent `json:"reportEvents"`
}

type wireAlleleFrequency struct {
	Study              string  `json:"study"`
	Population         string  `json:"population"`
	AlternateFrequency float64 `json:"alternateFrequency"`
}

type wireStructuralVariant struct {
	ReportEvents      []wireReportEvent `json:"reportEvents"`
	VariantAttributes struct {
		AlleleFrequencies []wireAlleleFrequency `json:"alleleFrequencies"`
	} `json:"variantAttributes"`
}

type wireShortTandemRepeat struct {
	ReportEvents []wireReportEvent `json:"reportEvents"`
}

// toDomain converts a wire envelope into the typed domain entity.
func (e interpretedGenomeEnvelope) toDomain() domain.InterpretedGenome {
	g := domain.InterpretedGenome{
		Provider:         e.Data.InterpretationService,
		Version:          e.CIPVersion,
		SoftwareVersions: e.Data.SoftwareVersions,
	}
	// A nil variant list is preserved as nil so the aggregator can tell
	// "provider found nothing" apart at normalization time.
	if e.Data.Variants != nil {
		g.Variants = make([]domain.Variant, 0, len(e.Data.Variants))
		for _, v := range e.Data.Variants {
			g.Variants = append(g.Variants, domain.Variant{ReportEvents: convertEvents(v.ReportEvents)})
		}
	}
	for _, sv := range e.Data.StructuralVariants {
		converted := domain.StructuralVariant{ReportEvents: convertEvents(sv.ReportEvents)}
		for _, f := range sv.VariantAttributes.AlleleFrequencies {
			converted.AlleleFrequencies = append(converted.AlleleFrequencies, domain.AlleleFrequency{
				Study:              f.Study,
				Population:         f.Population,
				AlternateFrequency: f.AlternateFrequency,
			})
		}
		g.StructuralVariants = append(g.StructuralVariants, converted)
	}
	for _, str := range e.Data.ShortTandemRepeats {
		g.ShortTandemRepeats = append(g.ShortTandemRepeats, domain.ShortTandemRepeat{
			ReportEvents: convertEvents(str.ReportEvents),
		})
	}
	return g
}

func convertEvents(events []wireReportEvent) []domain.ReportEvent {
	converted := make([]domain.ReportEvent, 0, len(events))
	for _, ev := range events {
		converted = append(converted, domain.ReportEvent{Tier: domain.Tier(ev.Tier)})
	}
	return converted
}
