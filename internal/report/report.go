// Package report reads and writes the classified case list that links the
// classification stage to the booking stage.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/moka-guys/negneg/internal/domain"
)

// Header is the column header of the classified case list.
const Header = "participant_id\tinterpretation_request_id\tassembly\ttags\tbucket"

// Row is one line of the classified case list.
type Row struct {
	ParticipantID string
	RequestID     string
	Assembly      string
	Tags          []string
	Bucket        domain.Bucket
}

// Write emits the classified case list as TSV, one row per case.
func Write(w io.Writer, cases []domain.ClassifiedCase) error {
	if _, err := fmt.Fprintln(w, Header); err != nil {
		return fmt.Errorf("writing case list header: %w", err)
	}
	for _, c := range cases {
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.Case.ParticipantID,
			c.Case.FullRequestID(),
			c.Case.Assembly,
			strings.Join(c.Case.Tags, ";"),
			c.Bucket)
		if err != nil {
			return fmt.Errorf("writing case list row for %s: %w", c.Case.ParticipantID, err)
		}
	}
	return nil
}

// Read parses a classified case list, verifying the header first so a stale
// or foreign file is rejected before any booking happens.
func Read(r io.Reader) ([]Row, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading case list: %w", err)
		}
		return nil, fmt.Errorf("case list is empty")
	}
	if strings.TrimRight(scanner.Text(), "\r\n") != Header {
		return nil, fmt.Errorf("case list does not start with the expected header row")
	}

	var rows []Row
	line := 1
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 5 {
			return nil, fmt.Errorf("case list line %d has %d columns, want 5", line, len(fields))
		}
		row := Row{
			ParticipantID: fields[0],
			RequestID:     fields[1],
			Assembly:      fields[2],
			Bucket:        domain.Bucket(fields[4]),
		}
		if fields[3] != "" {
			row.Tags = strings.Split(fields[3], ";")
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading case list: %w", err)
	}
	return rows, nil
}

// FilterBucket returns the rows belonging to one bucket.
func FilterBucket(rows []Row, bucket domain.Bucket) []Row {
	var filtered []Row
	for _, row := range rows {
		if row.Bucket == bucket {
			filtered = append(filtered, row)
		}
	}
	return filtered
}
