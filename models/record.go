package models

import (
	"fmt"
	"strconv"
	"strings"
)

// NoText is stored in EngagementRecord.Text for posts without a textual body
// (image or video only).
const NoText = "no text"

// Count is a normalized engagement count. Unknown means no strategy found a
// value; zero is a real observation.
type Count int64

// Unknown is the distinguished "not found" count.
const Unknown Count = -1

// Known reports whether the count was observed.
func (c Count) Known() bool { return c >= 0 }

func (c Count) String() string {
	if !c.Known() {
		return "unknown"
	}
	return strconv.FormatInt(int64(c), 10)
}

// MarshalText implements encoding.TextMarshaler.
func (c Count) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input and
// "unknown" both decode to Unknown.
func (c *Count) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || strings.EqualFold(s, "unknown") {
		*c = Unknown
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("count %q: %w", s, err)
	}
	if n < 0 {
		*c = Unknown
		return nil
	}
	*c = Count(n)
	return nil
}

// Status is the extraction outcome of one record.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Field names a record field resolved by a strategy chain.
type Field string

const (
	FieldText      Field = "text"
	FieldAuthor    Field = "author"
	FieldHandle    Field = "author_handle"
	FieldDate      Field = "date_published"
	FieldLikes     Field = "likes"
	FieldReplies   Field = "replies"
	FieldRetweets  Field = "retweets"
	FieldBookmarks Field = "bookmarks"
	FieldViews     Field = "views"
)

// CountFields lists the numeric engagement fields in output order.
var CountFields = []Field{FieldLikes, FieldReplies, FieldRetweets, FieldBookmarks, FieldViews}

// EngagementRecord is one output row.
type EngagementRecord struct {
	URL           string `json:"url"`
	Text          string `json:"text"`
	Author        string `json:"author"`
	AuthorHandle  string `json:"author_handle"`
	DatePublished string `json:"date_published"`
	Likes         Count  `json:"likes"`
	Replies       Count  `json:"replies"`
	Retweets      Count  `json:"retweets"`
	Bookmarks     Count  `json:"bookmarks"`
	Views         Count  `json:"views"`
	Status        Status `json:"extraction_status"`
	ErrorMessage  string `json:"error_message"`

	// Sources maps each resolved field to the strategy that produced it.
	// It is diagnostic only and never persisted.
	Sources map[Field]string `json:"-"`
}

// NewRecord returns a record for url with every field unresolved.
func NewRecord(url string) EngagementRecord {
	return EngagementRecord{
		URL:       url,
		Likes:     Unknown,
		Replies:   Unknown,
		Retweets:  Unknown,
		Bookmarks: Unknown,
		Views:     Unknown,
		Status:    StatusFailed,
	}
}

// FailedRecord returns a failed record for url carrying err's message.
func FailedRecord(url string, err error) EngagementRecord {
	r := NewRecord(url)
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	return r
}

// Count returns the count stored for a numeric field.
func (r *EngagementRecord) Count(f Field) Count {
	switch f {
	case FieldLikes:
		return r.Likes
	case FieldReplies:
		return r.Replies
	case FieldRetweets:
		return r.Retweets
	case FieldBookmarks:
		return r.Bookmarks
	case FieldViews:
		return r.Views
	}
	return Unknown
}

// SetCount stores c in a numeric field. Non-numeric fields are ignored.
func (r *EngagementRecord) SetCount(f Field, c Count) {
	switch f {
	case FieldLikes:
		r.Likes = c
	case FieldReplies:
		r.Replies = c
	case FieldRetweets:
		r.Retweets = c
	case FieldBookmarks:
		r.Bookmarks = c
	case FieldViews:
		r.Views = c
	}
}

// HasText reports whether a body (or the NoText marker) was captured.
func (r *EngagementRecord) HasText() bool {
	return strings.TrimSpace(r.Text) != ""
}

// Complete reports whether every field besides the body is resolved.
func (r *EngagementRecord) Complete() bool {
	if r.Author == "" || r.AuthorHandle == "" || r.DatePublished == "" {
		return false
	}
	for _, f := range CountFields {
		if !r.Count(f).Known() {
			return false
		}
	}
	return true
}

// Classify sets Status from the captured fields: success needs the URL, a
// body (or NoText) and every other field; a captured body alone is partial.
func (r *EngagementRecord) Classify() {
	switch {
	case r.URL == "" || !r.HasText():
		r.Status = StatusFailed
	case r.Complete():
		r.Status = StatusSuccess
	default:
		r.Status = StatusPartial
	}
}
