package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moka-guys/negneg/internal/booking"
	"github.com/moka-guys/negneg/internal/domain"
	"github.com/moka-guys/negneg/internal/report"
)

var (
	runAudit string
	runCases string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify and book in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadEnvironment()
		if err != nil {
			return err
		}

		grouper, err := newGrouper(cfg, logger)
		if err != nil {
			return err
		}

		cases, err := grouper.Run(cmd.Context())
		if err != nil {
			return err
		}

		// The intermediate case list is optional here but useful for review.
		if runCases != "" {
			out, err := os.Create(runCases)
			if err != nil {
				return fmt.Errorf("creating case list file: %w", err)
			}
			defer out.Close()
			if err := report.Write(out, cases); err != nil {
				return err
			}
		}

		var eligible []booking.CaseRef
		for _, c := range cases {
			if c.Bucket == domain.BucketNegNegSingle {
				eligible = append(eligible, booking.CaseRef{
					ParticipantID: c.Case.ParticipantID,
					RequestID:     c.Case.FullRequestID(),
				})
			}
		}

		return bookCases(cmd.Context(), cfg, logger, eligible, runAudit)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runAudit, "output", "o", "", "audit log file (tsv, appended)")
	runCmd.Flags().StringVar(&runCases, "cases", "", "optional classified case list to write (tsv)")
	runCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(runCmd)
}
