package moka

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newMockRepository(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLRepository(db, "sqlite", testLogger()), mock
}

func TestProbandSingleMatch(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT InternalPatientID, Referring_Clinician, PatientTrustID").
		WithArgs("900123").
		WillReturnRows(sqlmock.NewRows([]string{"InternalPatientID", "Referring_Clinician", "PatientTrustID"}).
			AddRow(55501, 777, "PRU001"))

	proband, err := repo.Proband(context.Background(), "900123")
	require.NoError(t, err)
	assert.Equal(t, int64(55501), proband.InternalPatientID)
	assert.Equal(t, int64(777), proband.ClinicianID)
	assert.Equal(t, "PRU001", proband.PRU)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProbandNoMatch(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT InternalPatientID, Referring_Clinician, PatientTrustID").
		WithArgs("900999").
		WillReturnRows(sqlmock.NewRows([]string{"InternalPatientID", "Referring_Clinician", "PatientTrustID"}))

	proband, err := repo.Proband(context.Background(), "900999")
	require.NoError(t, err, "an unmatched participant is not an infrastructure failure")
	assert.Zero(t, proband.InternalPatientID, "zero value signals the gate to reject")
	assert.Equal(t, "900999", proband.ParticipantID)
}

func TestProbandMultipleMatches(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT InternalPatientID, Referring_Clinician, PatientTrustID").
		WithArgs("900123").
		WillReturnRows(sqlmock.NewRows([]string{"InternalPatientID", "Referring_Clinician", "PatientTrustID"}).
			AddRow(55501, 777, "PRU001").
			AddRow(55502, 778, "PRU002"))

	proband, err := repo.Proband(context.Background(), "900123")
	require.NoError(t, err)
	assert.Zero(t, proband.InternalPatientID, "ambiguous matches leave the fields unset")
	assert.Zero(t, proband.ClinicianID)
}

func TestProbandNullColumns(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT InternalPatientID, Referring_Clinician, PatientTrustID").
		WithArgs("900123").
		WillReturnRows(sqlmock.NewRows([]string{"InternalPatientID", "Referring_Clinician", "PatientTrustID"}).
			AddRow(55501, nil, nil))

	proband, err := repo.Proband(context.Background(), "900123")
	require.NoError(t, err)
	assert.Equal(t, int64(55501), proband.InternalPatientID)
	assert.Zero(t, proband.ClinicianID)
	assert.Empty(t, proband.PRU)
}

func TestPatientStatus(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT s_StatusOverall FROM Patients").
		WithArgs(int64(55501)).
		WillReturnRows(sqlmock.NewRows([]string{"s_StatusOverall"}).AddRow(4))

	status, err := repo.PatientStatus(context.Background(), 55501)
	require.NoError(t, err)
	assert.Equal(t, int64(4), status)
}

func TestPatientStatusNoRecord(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT s_StatusOverall FROM Patients").
		WithArgs(int64(55501)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.PatientStatus(context.Background(), 55501)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no patient record")
}

func TestNGSTests(t *testing.T) {
	repo, mock := newMockRepository(t)

	booked := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT NGSTestID, StatusID, IRID, GELProbandID, ResultCode, BookBy").
		WithArgs(int64(55501), int64(1199901218)).
		WillReturnRows(sqlmock.NewRows([]string{
			"NGSTestID", "StatusID", "IRID", "GELProbandID", "ResultCode", "BookBy",
			"Check1ID", "Check1Date", "BlockAutomatedReporting",
		}).
			AddRow(42, 100, "111-1", "900123", nil, 777, nil, nil, nil).
			AddRow(43, 1202218811, "112-1", "900123", 1189679668, 777, 1201865448, booked, 1))

	tests, err := repo.NGSTests(context.Background(), 55501, 1199901218)
	require.NoError(t, err)
	require.Len(t, tests, 2)

	// NULL result code and checker stamp come back as zero values.
	assert.Equal(t, int64(42), tests[0].ID)
	assert.Equal(t, "111-1", tests[0].RequestID)
	assert.Zero(t, tests[0].ResultCode)
	assert.Zero(t, tests[0].Check1ID)
	assert.True(t, tests[0].Check1Date.IsZero())
	assert.False(t, tests[0].BlockAutomatedReporting)

	assert.Equal(t, int64(1189679668), tests[1].ResultCode)
	assert.Equal(t, int64(1201865448), tests[1].Check1ID)
	assert.Equal(t, booked, tests[1].Check1Date)
	assert.True(t, tests[1].BlockAutomatedReporting)
}

func TestNGSTestsEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT NGSTestID, StatusID, IRID, GELProbandID, ResultCode, BookBy").
		WithArgs(int64(55501), int64(1199901218)).
		WillReturnRows(sqlmock.NewRows([]string{
			"NGSTestID", "StatusID", "IRID", "GELProbandID", "ResultCode", "BookBy",
			"Check1ID", "Check1Date", "BlockAutomatedReporting",
		}))

	tests, err := repo.NGSTests(context.Background(), 55501, 1199901218)
	require.NoError(t, err)
	assert.Empty(t, tests)
}

func bookingUpdate() BookingUpdate {
	return BookingUpdate{
		TestID:            42,
		InternalPatientID: 55501,
		ResultCode:        1189679668,
		StatusID:          1202218811,
		CheckerID:         1201865448,
		RequestID:         "111-1",
		When:              time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestBookNegativeResult(t *testing.T) {
	repo, mock := newMockRepository(t)
	update := bookingUpdate()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE NGSTest").
		WithArgs(update.ResultCode, update.StatusID, update.CheckerID, update.When, update.TestID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT ResultCode FROM ResultCode").
		WithArgs(update.ResultCode).
		WillReturnRows(sqlmock.NewRows([]string{"ResultCode"}).AddRow("NEGNEG"))
	mock.ExpectQuery("SELECT Status FROM Status").
		WithArgs(update.StatusID).
		WillReturnRows(sqlmock.NewRows([]string{"Status"}).AddRow("NEGATIVE REPORT"))
	mock.ExpectExec("INSERT INTO PatientLog").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.BookNegativeResult(context.Background(), update))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookNegativeResultWrongRowCount(t *testing.T) {
	repo, mock := newMockRepository(t)
	update := bookingUpdate()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE NGSTest").
		WithArgs(update.ResultCode, update.StatusID, update.CheckerID, update.When, update.TestID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.BookNegativeResult(context.Background(), update)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "affected 0 rows")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookNegativeResultLogFailureRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)
	update := bookingUpdate()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE NGSTest").
		WithArgs(update.ResultCode, update.StatusID, update.CheckerID, update.When, update.TestID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT ResultCode FROM ResultCode").
		WithArgs(update.ResultCode).
		WillReturnRows(sqlmock.NewRows([]string{"ResultCode"}).AddRow("NEGNEG"))
	mock.ExpectQuery("SELECT Status FROM Status").
		WithArgs(update.StatusID).
		WillReturnRows(sqlmock.NewRows([]string{"Status"}).AddRow("NEGATIVE REPORT"))
	mock.ExpectExec("INSERT INTO PatientLog").
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := repo.BookNegativeResult(context.Background(), update)
	require.Error(t, err, "the update must not land without its patient-log entry")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT 1 WHERE a = ? AND b = ?",
		rebind("sqlite", "SELECT 1 WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2",
		rebind("postgres", "SELECT 1 WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1", rebind("postgres", "SELECT 1"))
}
