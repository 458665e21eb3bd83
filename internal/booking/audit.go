package booking

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/moka-guys/negneg/internal/domain"
)

// AuditLog is the append-only record of what the booking state machine did.
// One line is written per processed case; this trail is the sole record of
// the run's mutations.
type AuditLog struct {
	w   io.Writer
	log *logrus.Logger
}

// NewAuditLog creates an audit log writing TSV lines to w.
func NewAuditLog(w io.Writer, logger *logrus.Logger) *AuditLog {
	return &AuditLog{w: w, log: logger}
}

// WriteHeader writes the column header line.
func (a *AuditLog) WriteHeader() error {
	_, err := fmt.Fprintln(a.w, "GeLParticipantID\tInterpretationRequestID\tPRU\tStatus\tLog")
	if err != nil {
		return fmt.Errorf("writing audit header: %w", err)
	}
	return nil
}

// Append records one booking outcome. A failure to write the audit line is
// an infrastructure error and aborts the run: an unauditable mutation must
// not pass silently.
func (a *AuditLog) Append(entry domain.AuditEntry) error {
	_, err := fmt.Fprintf(a.w, "%s\t%s\t%s\t%s\t%s\n",
		entry.ParticipantID, entry.RequestID, entry.PRU, entry.Outcome, entry.Message)
	if err != nil {
		return fmt.Errorf("writing audit entry for %s: %w", entry.ParticipantID, err)
	}

	fields := logrus.Fields{
		"run_id":         entry.RunID,
		"participant_id": entry.ParticipantID,
		"request_id":     entry.RequestID,
		"pru":            entry.PRU,
		"outcome":        entry.Outcome,
	}
	switch entry.Outcome {
	case domain.OutcomeError:
		a.log.WithFields(fields).Warn(entry.Message)
	default:
		a.log.WithFields(fields).Info(entry.Message)
	}
	return nil
}
