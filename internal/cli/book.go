package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moka-guys/negneg/internal/booking"
	"github.com/moka-guys/negneg/internal/config"
	"github.com/moka-guys/negneg/internal/domain"
	"github.com/moka-guys/negneg/internal/moka"
	"github.com/moka-guys/negneg/internal/report"
)

var (
	bookInput string
	bookAudit string
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Book classified negative-negative cases into the record system",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadEnvironment()
		if err != nil {
			return err
		}

		in, err := os.Open(bookInput)
		if err != nil {
			return fmt.Errorf("opening case list: %w", err)
		}
		defer in.Close()

		rows, err := report.Read(in)
		if err != nil {
			return err
		}
		eligible := report.FilterBucket(rows, domain.BucketNegNegSingle)

		cases := make([]booking.CaseRef, 0, len(eligible))
		for _, row := range eligible {
			cases = append(cases, booking.CaseRef{
				ParticipantID: row.ParticipantID,
				RequestID:     row.RequestID,
			})
		}

		return bookCases(cmd.Context(), cfg, logger, cases, bookAudit)
	},
}

// bookCases opens the record system, runs the booking state machine over the
// eligible cases and writes the audit log. Shared by book and run.
func bookCases(ctx context.Context, cfg *config.Config, logger *logrus.Logger, cases []booking.CaseRef, auditPath string) error {
	db, err := moka.Open(ctx, moka.ConnectionConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	auditFile, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditFile.Close()

	repo := moka.NewSQLRepository(db, cfg.Database.Driver, logger)
	audit := booking.NewAuditLog(auditFile, logger)
	policy := booking.Policy{
		ReferralID:             cfg.Booking.ReferralID,
		AllowedPatientStatuses: cfg.Booking.AllowedPatientStatuses,
		NegNegResultCode:       cfg.Booking.NegNegResultCode,
		NegativeReportStatus:   cfg.Booking.NegativeReportStatus,
		NotRequiredStatus:      cfg.Booking.NotRequiredStatus,
		CheckerID:              cfg.Booking.CheckerID,
	}

	booker := booking.NewBooker(repo, policy, audit, logger)
	return booker.BookAll(ctx, cases)
}

func init() {
	bookCmd.Flags().StringVarP(&bookInput, "input", "i", "", "classified case list from 'negneg classify' (tsv)")
	bookCmd.Flags().StringVarP(&bookAudit, "output", "o", "", "audit log file (tsv, appended)")
	bookCmd.MarkFlagRequired("input")
	bookCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(bookCmd)
}
