package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moka-guys/negneg/internal/domain"
)

func classifiedCases() []domain.ClassifiedCase {
	return []domain.ClassifiedCase{
		{
			Case: domain.Case{
				ParticipantID: "900123",
				RequestID:     "111",
				Version:       1,
				Assembly:      "GRCh38",
			},
			Bucket: domain.BucketNegNegSingle,
		},
		{
			Case: domain.Case{
				ParticipantID: "900124",
				RequestID:     "112",
				Version:       2,
				Assembly:      "GRCh37",
				Tags:          []string{"priority", "recontact"},
			},
			Bucket: domain.BucketOther,
		},
		{
			Case: domain.Case{
				ParticipantID: "900125",
				RequestID:     "113",
				Version:       1,
			},
			Bucket: domain.BucketError,
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, classifiedCases()))

	rows, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "900123", rows[0].ParticipantID)
	assert.Equal(t, "111-1", rows[0].RequestID, "full request id carries the version")
	assert.Equal(t, "GRCh38", rows[0].Assembly)
	assert.Nil(t, rows[0].Tags)
	assert.Equal(t, domain.BucketNegNegSingle, rows[0].Bucket)

	assert.Equal(t, []string{"priority", "recontact"}, rows[1].Tags)
	assert.Equal(t, domain.BucketOther, rows[1].Bucket)
	assert.Equal(t, domain.BucketError, rows[2].Bucket)
}

func TestReadRejectsForeignHeader(t *testing.T) {
	_, err := Read(strings.NewReader("participant\trequest\n900123\t111-1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestReadRejectsEmptyFile(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	require.Error(t, err)
}

func TestReadRejectsWrongColumnCount(t *testing.T) {
	input := Header + "\n900123\t111-1\tGRCh38\n"
	_, err := Read(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadSkipsBlankLines(t *testing.T) {
	input := Header + "\n\n900123\t111-1\tGRCh38\t\tnegnegs_one_request\n\n"
	rows, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestFilterBucket(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, classifiedCases()))
	rows, err := Read(&buf)
	require.NoError(t, err)

	single := FilterBucket(rows, domain.BucketNegNegSingle)
	require.Len(t, single, 1)
	assert.Equal(t, "900123", single[0].ParticipantID)

	assert.Empty(t, FilterBucket(rows, domain.BucketNegNegMultiple))
}
