package interpretation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/moka-guys/negneg/internal/domain"
)

// GrouperConfig carries the cohort and site policy for a grouping run.
type GrouperConfig struct {
	// SampleType restricts every cohort fetch (e.g. "raredisease").
	SampleType string
	// PendingStatus is the lifecycle status of cases awaiting review; only
	// this cohort is classified.
	PendingStatus string
	// ReportedStatuses are the already-reported cohorts, fetched solely to
	// detect participants with more than one live or reported request.
	ReportedStatuses []string
	// Sites limits classification to cases referred through these site codes.
	Sites []string
}

// Grouper pulls the case universe and partitions it into outcome buckets.
type Grouper struct {
	source CaseSource
	engine *Engine
	config GrouperConfig
	log    *logrus.Logger
}

// NewGrouper creates a case grouper.
func NewGrouper(source CaseSource, engine *Engine, config GrouperConfig, logger *logrus.Logger) *Grouper {
	return &Grouper{source: source, engine: engine, config: config, log: logger}
}

// Run fetches the pending and reported cohorts, classifies every site-local
// pending case and returns one ClassifiedCase per input case. Bucket
// assignment is exhaustive and mutually exclusive; a fetch or classification
// failure routes the case to the error bucket without aborting the batch.
func (g *Grouper) Run(ctx context.Context) ([]domain.ClassifiedCase, error) {
	pending, err := g.source.ListCases(ctx, g.config.PendingStatus, g.config.SampleType)
	if err != nil {
		return nil, fmt.Errorf("listing %s cases: %w", g.config.PendingStatus, err)
	}

	// Participant multiplicity is counted across the pending cohort and
	// every reported cohort combined: a participant with more than one
	// request anywhere needs manual review even when this case is clean.
	requestCounts := map[string]int{}
	for _, c := range pending {
		requestCounts[c.ParticipantID]++
	}
	for _, status := range g.config.ReportedStatuses {
		reported, err := g.source.ListCases(ctx, status, g.config.SampleType)
		if err != nil {
			return nil, fmt.Errorf("listing %s cases: %w", status, err)
		}
		for _, c := range reported {
			requestCounts[c.ParticipantID]++
		}
	}

	siteSet := make(map[string]bool, len(g.config.Sites))
	for _, s := range g.config.Sites {
		siteSet[s] = true
	}

	var classified []domain.ClassifiedCase
	for _, c := range pending {
		if !matchesSite(c, siteSet) {
			continue
		}
		row, err := g.classifyOne(ctx, c, requestCounts[c.ParticipantID])
		if err != nil {
			return nil, fmt.Errorf("classifying %s: %w", c.FullRequestID(), err)
		}
		classified = append(classified, row)
	}

	g.log.WithFields(logrus.Fields{
		"pending":    len(pending),
		"classified": len(classified),
	}).Info("Case grouping complete")

	return classified, nil
}

// classifyOne assigns a single case to its bucket. Per-case data failures
// are captured on the returned row; anything else (a cancelled context)
// propagates and aborts the run.
func (g *Grouper) classifyOne(ctx context.Context, c domain.Case, requests int) (domain.ClassifiedCase, error) {
	result, err := g.engine.Classify(ctx, c)
	if err != nil {
		if !domain.IsCaseError(err) {
			return domain.ClassifiedCase{}, err
		}
		g.log.WithFields(logrus.Fields{
			"request_id":     c.FullRequestID(),
			"participant_id": c.ParticipantID,
			"error":          err,
		}).Warn("Case routed to error bucket")
		return domain.ClassifiedCase{Case: c, Bucket: domain.BucketError, Err: err}, nil
	}

	switch {
	case result.NegNeg && requests == 1:
		return domain.ClassifiedCase{Case: c, Bucket: domain.BucketNegNegSingle, Result: result}, nil
	case result.NegNeg:
		return domain.ClassifiedCase{Case: c, Bucket: domain.BucketNegNegMultiple, Result: result}, nil
	default:
		return domain.ClassifiedCase{Case: c, Bucket: domain.BucketOther, Result: result}, nil
	}
}

func matchesSite(c domain.Case, sites map[string]bool) bool {
	for _, s := range c.Sites {
		if sites[s] {
			return true
		}
	}
	return false
}
