package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierRank(t *testing.T) {
	tests := []struct {
		tier Tier
		rank int
	}{
		{Tier1, 1},
		{Tier2, 2},
		{Tier3, 3},
		{Tier4, 4},
		{Tier5, 4},
		{TierA, 4},
		{TierB, 4},
		{TierNone, 4},
		{Tier(""), 4},
		{Tier("tier1"), 1}, // case-insensitive
	}
	for _, tt := range tests {
		assert.Equal(t, tt.rank, tt.tier.Rank(), "tier %q", tt.tier)
	}
}

func TestVariantTopRank(t *testing.T) {
	v := Variant{ReportEvents: []ReportEvent{
		{Tier: Tier3},
		{Tier: Tier1},
		{Tier: TierNone},
	}}
	assert.Equal(t, 1, v.TopRank(), "lowest number wins across events")

	assert.Equal(t, 4, Variant{}.TopRank(), "no events ranks as OTHER")
}

func TestParseRequestID(t *testing.T) {
	id, version, err := ParseRequestID("12345-2")
	require.NoError(t, err)
	assert.Equal(t, "12345", id)
	assert.Equal(t, 2, version)

	_, _, err = ParseRequestID("12345")
	assert.Error(t, err)

	_, _, err = ParseRequestID("12345-two")
	assert.Error(t, err)
}

func TestCaseFullRequestID(t *testing.T) {
	c := Case{RequestID: "987", Version: 3}
	assert.Equal(t, "987-3", c.FullRequestID())
}
