package booking

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moka-guys/negneg/internal/domain"
	"github.com/moka-guys/negneg/internal/moka"
)

// fakeRepo is an in-memory record system for state-machine tests.
type fakeRepo struct {
	probands  map[string]*domain.Proband
	statuses  map[int64]int64
	tests     map[int64][]domain.NGSTest
	bookErr   error
	bookCalls []moka.BookingUpdate
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		probands: map[string]*domain.Proband{},
		statuses: map[int64]int64{},
		tests:    map[int64][]domain.NGSTest{},
	}
}

func (f *fakeRepo) Proband(_ context.Context, participantID string) (*domain.Proband, error) {
	if p, ok := f.probands[participantID]; ok {
		return p, nil
	}
	return &domain.Proband{ParticipantID: participantID}, nil
}

func (f *fakeRepo) PatientStatus(_ context.Context, internalPatientID int64) (int64, error) {
	status, ok := f.statuses[internalPatientID]
	if !ok {
		return 0, fmt.Errorf("no patient record for internal patient id %d", internalPatientID)
	}
	return status, nil
}

func (f *fakeRepo) NGSTests(_ context.Context, internalPatientID, _ int64) ([]domain.NGSTest, error) {
	return f.tests[internalPatientID], nil
}

func (f *fakeRepo) BookNegativeResult(_ context.Context, update moka.BookingUpdate) error {
	f.bookCalls = append(f.bookCalls, update)
	return f.bookErr
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// bookableRepo returns a repo holding one fully consistent case awaiting its
// result code.
func bookableRepo() *fakeRepo {
	repo := newFakeRepo()
	repo.probands["900123"] = validProband()
	repo.statuses[55501] = 4
	repo.tests[55501] = []domain.NGSTest{validTest()}
	return repo
}

func newTestBooker(repo moka.Repository, audit *bytes.Buffer) *Booker {
	b := NewBooker(repo, testPolicy(), NewAuditLog(audit, testLogger()), testLogger())
	b.now = func() time.Time { return time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC) }
	return b
}

func caseRef() CaseRef {
	return CaseRef{ParticipantID: "900123", RequestID: "111-1"}
}

func TestBookCaseUpdates(t *testing.T) {
	repo := bookableRepo()
	var audit bytes.Buffer
	booker := newTestBooker(repo, &audit)

	entry := booker.BookCase(context.Background(), caseRef())

	assert.Equal(t, domain.OutcomeSuccess, entry.Outcome)
	assert.Equal(t, "PRU001", entry.PRU)
	require.Len(t, repo.bookCalls, 1, "exactly one mutation per case")

	update := repo.bookCalls[0]
	assert.Equal(t, int64(42), update.TestID)
	assert.Equal(t, int64(1189679668), update.ResultCode)
	assert.Equal(t, int64(1202218811), update.StatusID)
	assert.Equal(t, int64(1201865448), update.CheckerID)
	assert.Equal(t, "111-1", update.RequestID)
}

func TestBookCaseSkipsWhenAlreadyBooked(t *testing.T) {
	repo := bookableRepo()
	test := &repo.tests[55501][0]
	test.ResultCode = 1189679668
	test.Check1ID = 1201865448
	var audit bytes.Buffer
	booker := newTestBooker(repo, &audit)

	entry := booker.BookCase(context.Background(), caseRef())

	assert.Equal(t, domain.OutcomeSkip, entry.Outcome, "re-run must not duplicate the update")
	assert.Empty(t, repo.bookCalls)
}

func TestBookCaseZeroRecords(t *testing.T) {
	repo := bookableRepo()
	repo.tests[55501] = nil
	var audit bytes.Buffer
	booker := newTestBooker(repo, &audit)

	entry := booker.BookCase(context.Background(), caseRef())

	assert.Equal(t, domain.OutcomeError, entry.Outcome)
	assert.Contains(t, entry.Message, "booked in")
	assert.Empty(t, repo.bookCalls)
}

func TestBookCaseAmbiguousRecords(t *testing.T) {
	repo := bookableRepo()
	second := validTest()
	second.ID = 43
	repo.tests[55501] = append(repo.tests[55501], second)
	var audit bytes.Buffer
	booker := newTestBooker(repo, &audit)

	entry := booker.BookCase(context.Background(), caseRef())

	assert.Equal(t, domain.OutcomeError, entry.Outcome)
	assert.Contains(t, entry.Message, "ambiguous")
	assert.Empty(t, repo.bookCalls)
}

func TestBookCaseValidationFailure(t *testing.T) {
	repo := bookableRepo()
	repo.tests[55501][0].BlockAutomatedReporting = true
	var audit bytes.Buffer
	booker := newTestBooker(repo, &audit)

	entry := booker.BookCase(context.Background(), caseRef())

	assert.Equal(t, domain.OutcomeError, entry.Outcome)
	assert.Contains(t, entry.Message, "blocked")
	assert.Empty(t, repo.bookCalls, "no mutation after a validation failure")
}

func TestBookCasePartialCheckerState(t *testing.T) {
	repo := bookableRepo()
	// Result code present without a checker stamp is inconsistent state.
	repo.tests[55501][0].ResultCode = 1189679668
	var audit bytes.Buffer
	booker := newTestBooker(repo, &audit)

	entry := booker.BookCase(context.Background(), caseRef())

	assert.Equal(t, domain.OutcomeError, entry.Outcome)
	assert.Contains(t, entry.Message, "Check1ID")
	assert.Empty(t, repo.bookCalls)
}

func TestBookCaseUnknownParticipant(t *testing.T) {
	repo := newFakeRepo()
	var audit bytes.Buffer
	booker := newTestBooker(repo, &audit)

	entry := booker.BookCase(context.Background(), caseRef())

	assert.Equal(t, domain.OutcomeError, entry.Outcome)
	assert.Contains(t, entry.Message, "InternalPatientID")
}

func TestBookCaseMutationFailure(t *testing.T) {
	repo := bookableRepo()
	repo.bookErr = fmt.Errorf("connection reset")
	var audit bytes.Buffer
	booker := newTestBooker(repo, &audit)

	entry := booker.BookCase(context.Background(), caseRef())

	assert.Equal(t, domain.OutcomeError, entry.Outcome,
		"a failed mutation must surface in the audit log")
	assert.Contains(t, entry.Message, "connection reset")
	assert.Len(t, repo.bookCalls, 1, "no automatic retry after a failed mutation")
}

func TestBookAllAuditTrail(t *testing.T) {
	repo := bookableRepo()
	// Second case has no proband entry and errors; the batch continues.
	cases := []CaseRef{caseRef(), {ParticipantID: "900999", RequestID: "222-1"}}
	var audit bytes.Buffer
	booker := newTestBooker(repo, &audit)

	err := booker.BookAll(context.Background(), cases)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(audit.String(), "\n"), "\n")
	require.Len(t, lines, 3, "header plus exactly one line per case")
	assert.Equal(t, "GeLParticipantID\tInterpretationRequestID\tPRU\tStatus\tLog", lines[0])
	assert.Contains(t, lines[1], "SUCCESS")
	assert.Contains(t, lines[2], "ERROR")
}

func TestBookAllIdempotentAuditLog(t *testing.T) {
	// Booking the same unchanged case twice produces a SUCCESS then a SKIP;
	// from then on re-runs yield identical audit lines.
	repo := bookableRepo()
	var first bytes.Buffer
	require.NoError(t, newTestBooker(repo, &first).BookAll(context.Background(), []CaseRef{caseRef()}))

	// Apply the booked state as the record system would.
	repo.tests[55501][0].ResultCode = 1189679668
	repo.tests[55501][0].Check1ID = 1201865448

	var second bytes.Buffer
	require.NoError(t, newTestBooker(repo, &second).BookAll(context.Background(), []CaseRef{caseRef()}))
	var third bytes.Buffer
	require.NoError(t, newTestBooker(repo, &third).BookAll(context.Background(), []CaseRef{caseRef()}))

	assert.Contains(t, second.String(), "SKIP")
	assert.Equal(t, second.String(), third.String(), "re-runs on unchanged state are deterministic")
	require.Len(t, repo.bookCalls, 1, "the mutation happened exactly once across all runs")
}
