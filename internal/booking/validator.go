// Package booking implements the safety gate and the booking state machine
// that commit a negative-negative determination into the laboratory record
// system. Every check here is conservative: any inconsistency between the
// classified case and the external record blocks the mutation.
package booking

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/moka-guys/negneg/internal/domain"
)

// Policy carries the record-system code constants and allow-sets the gate
// checks against. These are configuration, not domain logic: the identifiers
// differ between record-system deployments.
type Policy struct {
	// ReferralID is the referral category identifying 100k test records.
	ReferralID int64
	// AllowedPatientStatuses are the overall patient statuses under which
	// automated mutation is safe. Any other status implies concurrent lab
	// work on the patient.
	AllowedPatientStatuses []int64
	// NegNegResultCode is the result code written for a negative-negative.
	NegNegResultCode int64
	// NegativeReportStatus is the test status written alongside the result.
	NegativeReportStatus int64
	// NotRequiredStatus marks a test that must never be auto-reported.
	NotRequiredStatus int64
	// CheckerID is the automated checker identity stamped on the record.
	CheckerID int64
}

// ValidateCase runs the patient-level preconditions. The first failing
// check wins and aborts booking of the case.
func (p Policy) ValidateCase(proband *domain.Proband, patientStatus int64) *domain.ValidationError {
	if proband.InternalPatientID == 0 {
		return &domain.ValidationError{
			Check:   "internal_patient_id",
			Message: "No InternalPatientID found in Probands_100k table",
		}
	}
	if !containsInt64(p.AllowedPatientStatuses, patientStatus) {
		return &domain.ValidationError{
			Check:    "patient_status",
			Expected: formatInt64s(p.AllowedPatientStatuses),
			Actual:   strconv.FormatInt(patientStatus, 10),
			Message:  "Patient status is not 'Complete' or '100K'. Is this patient undergoing other testing in the lab?",
		}
	}
	if proband.ClinicianID == 0 {
		return &domain.ValidationError{
			Check:   "referring_clinician",
			Message: "No referring clinician found in Probands_100k table",
		}
	}
	return nil
}

// ValidateTest runs the test-record-level preconditions against the single
// matching external record.
func (p Policy) ValidateTest(participantID, requestID string, proband *domain.Proband, test domain.NGSTest) *domain.ValidationError {
	if test.BlockAutomatedReporting {
		return &domain.ValidationError{
			Check:   "block_automated_reporting",
			Message: "Automated reporting of this case is blocked",
		}
	}
	if test.RequestID != requestID {
		return &domain.ValidationError{
			Check:    "request_id",
			Expected: requestID,
			Actual:   test.RequestID,
			Message:  "Interpretation request ID in CIP-API and existing NGSTest request do not match",
		}
	}
	if !participantIDsEqual(test.ParticipantID, participantID) {
		return &domain.ValidationError{
			Check:    "participant_id",
			Expected: participantID,
			Actual:   test.ParticipantID,
			Message:  "Participant ID in CIP-API and existing NGSTest request do not match",
		}
	}
	if test.ResultCode != 0 && test.ResultCode != p.NegNegResultCode {
		return &domain.ValidationError{
			Check:    "result_code",
			Expected: strconv.FormatInt(p.NegNegResultCode, 10),
			Actual:   strconv.FormatInt(test.ResultCode, 10),
			Message:  "Existing NGSTest request has a different result code to NN",
		}
	}
	if test.BookedBy != proband.ClinicianID {
		return &domain.ValidationError{
			Check:    "referring_clinician",
			Expected: strconv.FormatInt(proband.ClinicianID, 10),
			Actual:   strconv.FormatInt(test.BookedBy, 10),
			Message:  "Existing NGSTest request has a different referring clinician",
		}
	}
	if test.StatusID == p.NotRequiredStatus {
		return &domain.ValidationError{
			Check:   "status",
			Actual:  strconv.FormatInt(test.StatusID, 10),
			Message: "NGSTest request already exists with status of NOT REQUIRED",
		}
	}
	// Checker identity and result code must be jointly present or jointly
	// absent; partial state is inconsistent.
	if (test.Check1ID != 0) != (test.ResultCode != 0) {
		return &domain.ValidationError{
			Check:   "checker_stamp",
			Message: "Existing test either has Check1ID with no result code, or result code with no Check1ID",
		}
	}
	return nil
}

// participantIDsEqual compares participant identifiers numerically when both
// parse as integers (the record system stores them with inconsistent
// padding), falling back to a trimmed string compare.
func participantIDsEqual(a, b string) bool {
	an, aerr := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	bn, berr := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if aerr == nil && berr == nil {
		return an == bn
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

func containsInt64(values []int64, v int64) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func formatInt64s(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return fmt.Sprintf("one of [%s]", strings.Join(parts, ", "))
}
