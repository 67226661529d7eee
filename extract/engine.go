package extract

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/postpulse/models"
	"github.com/use-agent/postpulse/snapshot"
)

// Engine resolves every record field from a snapshot. It holds no mutable
// state, so one Engine may serve any number of extractions.
type Engine struct {
	author Chain[string]
	handle Chain[string]
	text   Chain[string]
	date   Chain[string]
	counts []Chain[models.Count]
}

// New builds an Engine with the standard strategy chains.
func New(opts Options) *Engine {
	e := &Engine{
		author: authorChain(),
		handle: handleChain(),
		text:   textChain(),
		date:   dateChain(),
	}
	for _, f := range models.CountFields {
		e.counts = append(e.counts, countChain(f, opts))
	}
	return e
}

// Extract maps snap to a record. The result depends only on the snapshot.
// A panic escaping the chains fails the record when nothing was resolved
// yet and downgrades it to partial otherwise.
func (e *Engine) Extract(snap *snapshot.Snapshot) (rec models.EngagementRecord) {
	if snap == nil {
		return models.FailedRecord("", models.NewScrapeError(models.ErrCodeInvalidInput, "nil snapshot", nil))
	}
	rec = models.NewRecord(snap.URL())
	rec.Sources = make(map[models.Field]string)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := models.NewScrapeError(models.ErrCodeExtraction, fmt.Sprint(r), nil)
		slog.Error("extraction panicked", "url", rec.URL, "panic", r)
		rec.ErrorMessage = err.Error()
		if len(rec.Sources) == 0 {
			rec.Status = models.StatusFailed
			return
		}
		rec.Classify()
		if rec.Status == models.StatusSuccess {
			rec.Status = models.StatusPartial
		}
	}()

	p := NewPage(snap)

	rec.Author = e.resolve(p, e.author, rec.Sources)
	rec.AuthorHandle = e.resolve(p, e.handle, rec.Sources)
	rec.Text = e.resolve(p, e.text, rec.Sources)
	if rec.Text == "" {
		rec.Text = models.NoText
	}
	rec.DatePublished = e.resolve(p, e.date, rec.Sources)

	for _, c := range e.counts {
		if v, src, ok := c.Run(p); ok {
			rec.SetCount(c.Field, v)
			rec.Sources[c.Field] = src
		}
	}

	rec.Classify()
	return rec
}

func (e *Engine) resolve(p *Page, c Chain[string], sources map[models.Field]string) string {
	v, src, ok := c.Run(p)
	if !ok {
		return ""
	}
	sources[c.Field] = src
	return v
}
