// Package ingest turns an input CSV into the ordered list of targets.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/use-agent/postpulse/models"
)

// URLColumns are the accepted header names for the URL column, in
// preference order.
var URLColumns = []string{"URL", "url", "link", "Link", "tweet_url", "post_url"}

// ErrNoURLColumn is returned when the header has none of URLColumns.
var ErrNoURLColumn = errors.New("ingest: no URL column found")

var postURLRe = regexp.MustCompile(`(?i)^https?://(www\.)?(twitter\.com|x\.com|x\.example)/.+/status/\d+`)

// ValidPostURL reports whether raw looks like a post permalink.
func ValidPostURL(raw string) bool {
	return postURLRe.MatchString(strings.TrimSpace(raw))
}

// LoadTargets reads the CSV at path. Every data row yields a target, even
// one with an empty URL, so target indices always equal data-row indices.
func LoadTargets(path string) ([]models.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open input: %w", err)
	}
	defer f.Close()
	return ReadTargets(f)
}

// ReadTargets is LoadTargets over an arbitrary reader.
func ReadTargets(r io.Reader) ([]models.Target, error) {
	cr := csv.NewReader(stripBOM(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("ingest: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: read header: %w", err)
	}

	col := urlColumn(header)
	if col < 0 {
		return nil, fmt.Errorf("%w; available columns: %v", ErrNoURLColumn, header)
	}
	slog.Info("using URL column", "column", header[col])

	var targets []models.Target
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: row %d: %w", len(targets)+1, err)
		}
		var u string
		if col < len(record) {
			u = strings.TrimSpace(record[col])
		}
		targets = append(targets, models.Target{Index: len(targets), URL: u})
	}
	return targets, nil
}

func urlColumn(header []string) int {
	for _, want := range URLColumns {
		for i, h := range header {
			if strings.TrimSpace(h) == want {
				return i
			}
		}
	}
	return -1
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		_ = br.UnreadRune()
	}
	return br
}
