package batch

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/use-agent/postpulse/models"
)

// Columns is the output column order.
var Columns = []string{
	"author", "author_handle", "text", "date_published",
	"likes", "replies", "retweets", "bookmarks", "views",
	"url", "extraction_status", "error_message",
}

const utf8BOM = "\uFEFF"

// Store persists BatchProgress.
type Store interface {
	Load() (*models.BatchProgress, error)
	Save(p *models.BatchProgress) error
}

// CSVStore keeps progress in a CSV file plus a JSON checkpoint sidecar.
// Every Save rewrites both files atomically.
type CSVStore struct {
	path string
	now  func() time.Time
}

// NewCSVStore returns a store writing to path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path, now: time.Now}
}

// Path returns the output file path.
func (s *CSVStore) Path() string { return s.path }

// CheckpointPath returns the sidecar path for output path.
func CheckpointPath(path string) string { return path + ".checkpoint.json" }

// ReadCheckpoint reads the sidecar next to output path.
func ReadCheckpoint(path string) (*models.Checkpoint, error) {
	b, err := os.ReadFile(CheckpointPath(path))
	if err != nil {
		return nil, err
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("batch: decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Load reads a prior output file. A missing file yields empty progress.
// Without a sidecar the rows are assumed to start at input index 0.
func (s *CSVStore) Load() (*models.BatchProgress, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.NewBatchProgress(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("batch: open output: %w", err)
	}
	defer f.Close()

	records, err := readRecords(f)
	if err != nil {
		return nil, fmt.Errorf("batch: read %s: %w", s.path, err)
	}

	first := 0
	if cp, err := ReadCheckpoint(s.path); err == nil {
		first = cp.FirstIndex
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	p := models.NewBatchProgress(first)
	for i, r := range records {
		p.Append(first+i, r)
	}
	return p, nil
}

// Save rewrites the output and the sidecar. Each file is written to a
// temporary sibling and renamed over the target, so a crash mid-save leaves
// the previous checkpoint intact.
func (s *CSVStore) Save(p *models.BatchProgress) error {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	if err := writeRecords(&buf, p.Records); err != nil {
		return err
	}
	if err := writeAtomic(s.path, buf.Bytes()); err != nil {
		return err
	}

	cp, err := json.MarshalIndent(models.Checkpoint{
		FirstIndex:         p.FirstIndex,
		LastCompletedIndex: p.LastCompletedIndex,
		Rows:               len(p.Records),
		UpdatedAt:          s.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: encode checkpoint: %w", err)
	}
	return writeAtomic(CheckpointPath(s.path), cp)
}

func writeRecords(w io.Writer, records []models.EngagementRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("batch: write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(toRow(r)); err != nil {
			return fmt.Errorf("batch: write csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("batch: flush csv records: %w", err)
	}
	return nil
}

func toRow(r models.EngagementRecord) []string {
	return []string{
		r.Author, r.AuthorHandle, r.Text, r.DatePublished,
		r.Likes.String(), r.Replies.String(), r.Retweets.String(), r.Bookmarks.String(), r.Views.String(),
		r.URL, string(r.Status), r.ErrorMessage,
	}
}

func readRecords(r io.Reader) ([]models.EngagementRecord, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && string(lead) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	if _, ok := col["url"]; !ok {
		return nil, fmt.Errorf("output has no url column: %v", header)
	}

	var records []models.EngagementRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		r, err := fromRow(row, col)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		records = append(records, r)
	}
}

func fromRow(row []string, col map[string]int) (models.EngagementRecord, error) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	r := models.NewRecord(get("url"))
	r.Author = get("author")
	r.AuthorHandle = get("author_handle")
	r.Text = get("text")
	r.DatePublished = get("date_published")
	r.Status = models.Status(get("extraction_status"))
	r.ErrorMessage = get("error_message")
	for _, f := range models.CountFields {
		var c models.Count
		if err := c.UnmarshalText([]byte(get(string(f)))); err != nil {
			return r, fmt.Errorf("%s: %w", f, err)
		}
		r.SetCount(f, c)
	}
	return r, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("batch: create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("batch: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("batch: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("batch: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("batch: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("batch: replace %s: %w", path, err)
	}
	return nil
}
