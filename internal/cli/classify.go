package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moka-guys/negneg/internal/domain"
	"github.com/moka-guys/negneg/internal/report"
)

var classifyOutput string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Pull cases from the interpretation API and write the classified case list",
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

		out, err := os.Create(classifyOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer out.Close()

		if err := report.Write(out, cases); err != nil {
			return err
		}

		counts := map[domain.Bucket]int{}
		for _, c := range cases {
			counts[c.Bucket]++
		}
		logger.WithFields(logrus.Fields{
			"output":           classifyOutput,
			"negneg_single":    counts[domain.BucketNegNegSingle],
			"negneg_multiple":  counts[domain.BucketNegNegMultiple],
			"other":            counts[domain.BucketOther],
			"errors":           counts[domain.BucketError],
		}).Info("Classification complete")
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "", "output case list (tsv)")
	classifyCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(classifyCmd)
}
