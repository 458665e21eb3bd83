package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/moka-guys/negneg/internal/domain"
	"github.com/moka-guys/negneg/internal/moka"
)

// CaseRef identifies one classified case handed to the booking stage:
// participant plus the combined <id>-<version> request identifier.
type CaseRef struct {
	ParticipantID string
	RequestID     string
}

// Booker is the booking state machine. For each case it runs the safety
// gate against the external record and performs at most one idempotent
// mutation, emitting exactly one audit line.
type Booker struct {
	repo   moka.Repository
	policy Policy
	audit  *AuditLog
	log    *logrus.Logger
	runID  string
	now    func() time.Time
}

// NewBooker creates a booking state machine.
func NewBooker(repo moka.Repository, policy Policy, audit *AuditLog, logger *logrus.Logger) *Booker {
	return &Booker{
		repo:   repo,
		policy: policy,
		audit:  audit,
		log:    logger,
		runID:  uuid.NewString(),
		now:    time.Now,
	}
}

// BookAll processes cases strictly sequentially. Per-case failures become
// audit entries and never abort the batch; only a failure to append to the
// audit log itself stops the run.
func (b *Booker) BookAll(ctx context.Context, cases []CaseRef) error {
	if err := b.audit.WriteHeader(); err != nil {
		return err
	}
	for _, c := range cases {
		entry := b.BookCase(ctx, c)
		if err := b.audit.Append(entry); err != nil {
			return err
		}
	}
	b.log.WithFields(logrus.Fields{
		"run_id": b.runID,
		"cases":  len(cases),
	}).Info("Booking run complete")
	return nil
}

// BookCase runs the safety gate and state machine for one case and returns
// its audit entry. Every path through here terminates in exactly one entry.
func (b *Booker) BookCase(ctx context.Context, c CaseRef) domain.AuditEntry {
	proband, err := b.repo.Proband(ctx, c.ParticipantID)
	if err != nil {
		return b.entry(c, "", domain.OutcomeError, err.Error())
	}

	// The status lookup needs the internal patient id; without one the
	// case-level checks reject below with the specific reason.
	var patientStatus int64
	if proband.InternalPatientID != 0 {
		patientStatus, err = b.repo.PatientStatus(ctx, proband.InternalPatientID)
		if err != nil {
			return b.entry(c, proband.PRU, domain.OutcomeError, err.Error())
		}
	}

	if verr := b.policy.ValidateCase(proband, patientStatus); verr != nil {
		return b.entry(c, proband.PRU, domain.OutcomeError, verr.Error())
	}

	tests, err := b.repo.NGSTests(ctx, proband.InternalPatientID, b.policy.ReferralID)
	if err != nil {
		return b.entry(c, proband.PRU, domain.OutcomeError, err.Error())
	}

	// State by matching record count: zero means the upstream booking step
	// never ran, many means no unambiguous mutation target exists.
	switch {
	case len(tests) == 0:
		return b.entry(c, proband.PRU, domain.OutcomeError,
			"No NGSTest request found. Case must be booked in before automated reporting")
	case len(tests) > 1:
		ambiguous := &domain.AmbiguousRecordError{ParticipantID: c.ParticipantID, Count: len(tests)}
		return b.entry(c, proband.PRU, domain.OutcomeError, ambiguous.Error())
	}

	test := tests[0]
	if verr := b.policy.ValidateTest(c.ParticipantID, c.RequestID, proband, test); verr != nil {
		return b.entry(c, proband.PRU, domain.OutcomeError, verr.Error())
	}

	// The validator guarantees any pre-existing result code is already the
	// negative-negative code, so a set code means a previous run completed.
	if test.ResultCode != 0 {
		return b.entry(c, proband.PRU, domain.OutcomeSkip,
			"NGSTest request already exists with matching details")
	}

	update := moka.BookingUpdate{
		TestID:            test.ID,
		InternalPatientID: proband.InternalPatientID,
		ResultCode:        b.policy.NegNegResultCode,
		StatusID:          b.policy.NegativeReportStatus,
		CheckerID:         b.policy.CheckerID,
		RequestID:         c.RequestID,
		When:              b.now(),
	}
	if err := b.repo.BookNegativeResult(ctx, update); err != nil {
		merr := &domain.MutationError{TestID: test.ID, Err: err}
		return b.entry(c, proband.PRU, domain.OutcomeError, merr.Error())
	}

	return b.entry(c, proband.PRU, domain.OutcomeSuccess,
		"Added result code to existing NGSTest request")
}

func (b *Booker) entry(c CaseRef, pru string, outcome domain.Outcome, message string) domain.AuditEntry {
	return domain.AuditEntry{
		RunID:         b.runID,
		ParticipantID: c.ParticipantID,
		RequestID:     c.RequestID,
		PRU:           pru,
		Outcome:       outcome,
		Message:       message,
	}
}
