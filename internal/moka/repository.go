package moka

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moka-guys/negneg/internal/domain"
)

// Repository is the record-system contract the booking gate depends on. It
// is deliberately narrow — one proband lookup, one status lookup, one test
// list and one update — so the gate can be tested against a fake without a
// database.
type Repository interface {
	// Proband returns the patient entry bound to a participant. When the
	// lookup does not match exactly one row, the identifying fields are left
	// zero and the safety gate rejects the case.
	Proband(ctx context.Context, participantID string) (*domain.Proband, error)
	// PatientStatus returns the overall status of a patient.
	PatientStatus(ctx context.Context, internalPatientID int64) (int64, error)
	// NGSTests returns the test records for a patient under one referral
	// category.
	NGSTests(ctx context.Context, internalPatientID, referralID int64) ([]domain.NGSTest, error)
	// BookNegativeResult applies the result code, status and checker stamp
	// to one test record and writes the patient-log entry. Both statements
	// run in a single transaction.
	BookNegativeResult(ctx context.Context, update BookingUpdate) error
}

// BookingUpdate carries the field group written by the one permitted
// mutation.
type BookingUpdate struct {
	TestID            int64
	InternalPatientID int64
	ResultCode        int64
	StatusID          int64
	CheckerID         int64
	RequestID         string
	When              time.Time
}

// SQLRepository implements Repository against the record system's database.
type SQLRepository struct {
	db     *sql.DB
	driver string
	log    *logrus.Logger
}

// NewSQLRepository creates a SQL-backed repository. driver selects the
// placeholder style and must match the driver the pool was opened with.
func NewSQLRepository(db *sql.DB, driver string, logger *logrus.Logger) *SQLRepository {
	return &SQLRepository{db: db, driver: driver, log: logger}
}

// Proband looks up the Probands_100k entry for a participant.
func (r *SQLRepository) Proband(ctx context.Context, participantID string) (*domain.Proband, error) {
	query := rebind(r.driver, `
		SELECT InternalPatientID, Referring_Clinician, PatientTrustID
		FROM Probands_100k
		WHERE Participant_ID = ?`)

	rows, err := r.db.QueryContext(ctx, query, participantID)
	if err != nil {
		return nil, fmt.Errorf("querying proband %s: %w", participantID, err)
	}
	defer rows.Close()

	type probandRow struct {
		internalID sql.NullInt64
		clinician  sql.NullInt64
		pru        sql.NullString
	}
	var matches []probandRow
	for rows.Next() {
		var row probandRow
		if err := rows.Scan(&row.internalID, &row.clinician, &row.pru); err != nil {
			return nil, fmt.Errorf("scanning proband row: %w", err)
		}
		matches = append(matches, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating proband rows: %w", err)
	}

	proband := &domain.Proband{ParticipantID: participantID}
	// The identifying fields are populated only when exactly one row
	// matches; zero or multiple matches leave them unset for the safety
	// gate to reject.
	if len(matches) == 1 {
		proband.InternalPatientID = matches[0].internalID.Int64
		proband.ClinicianID = matches[0].clinician.Int64
		proband.PRU = matches[0].pru.String
	} else if len(matches) > 1 {
		r.log.WithFields(logrus.Fields{
			"participant_id": participantID,
			"matches":        len(matches),
		}).Warn("Multiple proband rows for participant")
	}
	return proband, nil
}

// PatientStatus returns the overall status recorded against a patient.
func (r *SQLRepository) PatientStatus(ctx context.Context, internalPatientID int64) (int64, error) {
	query := rebind(r.driver, `SELECT s_StatusOverall FROM Patients WHERE InternalPatientID = ?`)

	var status sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, internalPatientID).Scan(&status)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no patient record for internal patient id %d", internalPatientID)
	}
	if err != nil {
		return 0, fmt.Errorf("querying patient status for %d: %w", internalPatientID, err)
	}
	return status.Int64, nil
}

// NGSTests returns the patient's test records under one referral category.
func (r *SQLRepository) NGSTests(ctx context.Context, internalPatientID, referralID int64) ([]domain.NGSTest, error) {
	query := rebind(r.driver, `
		SELECT NGSTestID, StatusID, IRID, GELProbandID, ResultCode, BookBy,
		       Check1ID, Check1Date, BlockAutomatedReporting
		FROM NGSTest
		WHERE InternalPatientID = ? AND ReferralID = ?`)

	rows, err := r.db.QueryContext(ctx, query, internalPatientID, referralID)
	if err != nil {
		return nil, fmt.Errorf("querying test records for patient %d: %w", internalPatientID, err)
	}
	defer rows.Close()

	var tests []domain.NGSTest
	for rows.Next() {
		var (
			test       domain.NGSTest
			statusID   sql.NullInt64
			requestID  sql.NullString
			proband    sql.NullString
			resultCode sql.NullInt64
			bookedBy   sql.NullInt64
			check1     sql.NullInt64
			check1Date sql.NullTime
			blocked    sql.NullInt64
		)
		err := rows.Scan(&test.ID, &statusID, &requestID, &proband, &resultCode,
			&bookedBy, &check1, &check1Date, &blocked)
		if err != nil {
			return nil, fmt.Errorf("scanning test record row: %w", err)
		}
		test.StatusID = statusID.Int64
		test.RequestID = requestID.String
		test.ParticipantID = proband.String
		test.ResultCode = resultCode.Int64
		test.BookedBy = bookedBy.Int64
		test.Check1ID = check1.Int64
		test.Check1Date = check1Date.Time
		test.BlockAutomatedReporting = blocked.Int64 != 0
		tests = append(tests, test)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating test record rows: %w", err)
	}
	return tests, nil
}

// BookNegativeResult stamps the result code, status and checker onto one
// test record and appends the patient-log entry, atomically.
func (r *SQLRepository) BookNegativeResult(ctx context.Context, update BookingUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning booking transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, rebind(r.driver, `
		UPDATE NGSTest
		SET ResultCode = ?, StatusID = ?, Check1ID = ?, Check1Date = ?
		WHERE NGSTestID = ?`),
		update.ResultCode, update.StatusID, update.CheckerID, update.When, update.TestID)
	if err != nil {
		return fmt.Errorf("updating test record %d: %w", update.TestID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading update row count: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("update of test record %d affected %d rows", update.TestID, affected)
	}

	// Resolve the human-readable code names for the patient log.
	var resultName, statusName string
	err = tx.QueryRowContext(ctx, rebind(r.driver,
		`SELECT ResultCode FROM ResultCode WHERE ResultCodeID = ?`), update.ResultCode).Scan(&resultName)
	if err != nil {
		return fmt.Errorf("resolving result code %d: %w", update.ResultCode, err)
	}
	err = tx.QueryRowContext(ctx, rebind(r.driver,
		`SELECT Status FROM Status WHERE StatusID = ?`), update.StatusID).Scan(&statusName)
	if err != nil {
		return fmt.Errorf("resolving status %d: %w", update.StatusID, err)
	}

	hostname, _ := os.Hostname()
	entry := fmt.Sprintf(
		"NGS: NGSTest result code updated to %s and status updated to %s for 100k interpretation request: %s",
		resultName, statusName, update.RequestID)
	_, err = tx.ExecContext(ctx, rebind(r.driver, `
		INSERT INTO PatientLog (InternalPatientID, LogEntry, Date, Login, PCName)
		VALUES (?, ?, ?, ?, ?)`),
		update.InternalPatientID, entry, update.When, "negneg", hostname)
	if err != nil {
		return fmt.Errorf("writing patient log for %d: %w", update.InternalPatientID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing booking transaction: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"test_id":     update.TestID,
		"result_code": update.ResultCode,
		"status_id":   update.StatusID,
		"request_id":  update.RequestID,
	}).Info("Negative result booked")

	return nil
}
