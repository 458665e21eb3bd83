// Package domain contains the core entities for negative-negative case
// classification and booking of 100k interpretation requests.
//
// The types here are explicit, tagged versions of the loosely structured
// payloads returned by the interpretation API (GeL report models v6) and of
// the rows the laboratory record system (Moka) exposes to the booking gate.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tier is the clinical priority label a provider attaches to a report event.
// TIER1/TIER2 findings are actionable, TIER3 is background, TIERA/TIERB apply
// to structural variants. Anything else (TIER4, TIER5, NONE, absent) has no
// clinical priority for short variants.
type Tier string

const (
	TierNone Tier = "NONE"
	Tier1    Tier = "TIER1"
	Tier2    Tier = "TIER2"
	Tier3    Tier = "TIER3"
	Tier4    Tier = "TIER4"
	Tier5    Tier = "TIER5"
	TierA    Tier = "TIERA"
	TierB    Tier = "TIERB"
)

// otherTierRank is the sentinel rank for events without a TIER1-3 label.
// It sorts below TIER3 so that a variant whose best event is untiered,
// TIER4/5 or TIERA/B lands in the OTHER group.
const otherTierRank = 4

// Rank returns the numeric rank of the tier, where a lower number is a
// higher clinical priority. Non-numeric tiers map to the OTHER sentinel.
func (t Tier) Rank() int {
	switch Tier(strings.ToUpper(string(t))) {
	case Tier1:
		return 1
	case Tier2:
		return 2
	case Tier3:
		return 3
	default:
		return otherTierRank
	}
}

// Case is one interpretation request as described by the case-list endpoint.
// It is an immutable snapshot taken at poll time.
type Case struct {
	ParticipantID string   `json:"participant_id"`
	RequestID     string   `json:"request_id"`
	Version       int      `json:"version"`
	Assembly      string   `json:"assembly"`
	Sites         []string `json:"sites"`
	Tags          []string `json:"tags"`
	Status        string   `json:"status"`
}

// FullRequestID returns the combined <id>-<version> identifier used by the
// interpretation API and recorded against the external test record.
func (c Case) FullRequestID() string {
	return fmt.Sprintf("%s-%d", c.RequestID, c.Version)
}

// ParseRequestID splits a combined <id>-<version> identifier.
func ParseRequestID(full string) (id string, version int, err error) {
	parts := strings.SplitN(full, "-", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed interpretation request id %q", full)
	}
	version, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("malformed interpretation request version in %q", full)
	}
	return parts[0], version, nil
}

// ReportEvent is a single provider-reported event against a variant.
type ReportEvent struct {
	Tier Tier `json:"tier"`
}

// Variant is one candidate short-variant finding with its report events.
type Variant struct {
	ReportEvents []ReportEvent `json:"reportEvents"`
}

// TopRank returns the best (numerically lowest) tier rank across the
// variant's report events. A variant with no events ranks as OTHER.
func (v Variant) TopRank() int {
	top := otherTierRank
	for _, ev := range v.ReportEvents {
		if r := ev.Tier.Rank(); r < top {
			top = r
		}
	}
	return top
}

// AlleleFrequency is a population frequency observation for a structural
// variant. Frequencies are not reported for sex chromosomes, so a structural
// variant may carry none at all.
type AlleleFrequency struct {
	Study              string  `json:"study"`
	Population         string  `json:"population"`
	AlternateFrequency float64 `json:"alternateFrequency"`
}

// StructuralVariant is one candidate structural-variant finding.
type StructuralVariant struct {
	ReportEvents      []ReportEvent     `json:"reportEvents"`
	AlleleFrequencies []AlleleFrequency `json:"alleleFrequencies"`
}

// ShortTandemRepeat is one candidate repeat-expansion finding. Repeats in the
// pathogenic range are reported as TIER1 and intermediate repeats as TIER2;
// normal-range repeats are not reported at all.
type ShortTandemRepeat struct {
	ReportEvents []ReportEvent `json:"reportEvents"`
}

// InterpretedGenome is one provider-submitted interpretation of a case.
type InterpretedGenome struct {
	Provider           string              `json:"provider"`
	Version            int                 `json:"version"`
	Variants           []Variant           `json:"variants"`
	StructuralVariants []StructuralVariant `json:"structuralVariants"`
	ShortTandemRepeats []ShortTandemRepeat `json:"shortTandemRepeats"`
	SoftwareVersions   map[string]string   `json:"softwareVersions"`
}

// CaseDetail is the full interpretation payload for one case: every
// provider's interpreted genome plus the case-level flags.
type CaseDetail struct {
	Genomes []InterpretedGenome `json:"interpreted_genomes"`
	Tags    []string            `json:"tags"`
}

// ClassificationResult is the outcome of the negative-negative decision for
// one case, with the evidence counts that produced it. It is recomputed per
// run and never persisted.
type ClassificationResult struct {
	NegNeg bool `json:"negneg"`

	Tier1Count              int `json:"tier1"`
	Tier2Count              int `json:"tier2"`
	OtherTierCount          int `json:"other"`
	OtherProviderCandidates int `json:"other_provider_candidates"`
	RareTierASVCount        int `json:"rare_tiera_svs"`
	TieredSTRCount          int `json:"tiered_strs"`
	TagCount                int `json:"tags"`
}

// Bucket is the terminal classification group for a case. Every case lands
// in exactly one bucket.
type Bucket string

const (
	// BucketNegNegSingle holds negative-negative cases whose participant has
	// no other live or reported request. Only these are candidates for
	// automated booking.
	BucketNegNegSingle Bucket = "negnegs_one_request"
	// BucketNegNegMultiple holds negative-negative cases whose participant
	// has coexisting requests, which may carry different results and so need
	// manual review.
	BucketNegNegMultiple Bucket = "negnegs_multiple_requests"
	// BucketError holds cases whose payload could not be fetched or parsed.
	// Some early pilot cases have broken formatting and end up here.
	BucketError Bucket = "error"
	// BucketOther holds everything else.
	BucketOther Bucket = "all_other"
)

// ClassifiedCase is one row of the classified case list.
type ClassifiedCase struct {
	Case   Case
	Bucket Bucket
	Result *ClassificationResult
	// Err carries the per-case failure for BucketError rows.
	Err error
}

// Proband is the external system's patient entry for a 100k participant.
type Proband struct {
	ParticipantID     string
	InternalPatientID int64
	ClinicianID       int64
	// PRU is the patient trust identifier, carried into the audit log.
	PRU string
}

// NGSTest is the external test record the booking gate reads and may update.
// Zero values for ResultCode, Check1ID and BookedBy represent database NULLs.
type NGSTest struct {
	ID                      int64
	StatusID                int64
	RequestID               string
	ParticipantID           string
	ResultCode              int64
	BookedBy                int64
	Check1ID                int64
	Check1Date              time.Time
	BlockAutomatedReporting bool
}

// Outcome is the terminal booking result for one case.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeSkip    Outcome = "SKIP"
	OutcomeError   Outcome = "ERROR"
)

// AuditEntry is one append-only audit line recording what the booking state
// machine did (or refused to do) for a case.
type AuditEntry struct {
	RunID         string
	ParticipantID string
	RequestID     string
	PRU           string
	Outcome       Outcome
	Message       string
}
