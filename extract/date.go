package extract

import (
	"strings"
	"time"

	"github.com/use-agent/postpulse/models"
	"github.com/use-agent/postpulse/snapshot"
)

// Date strategy names.
const (
	StrategyTimeDatetime = "time-datetime"
	StrategyDatetimeAttr = "datetime-attr"
	StrategyTimeTestID   = "time-testid"
	StrategyTimeText     = "time-text"
)

func dateChain() Chain[string] {
	return Chain[string]{
		Field: models.FieldDate,
		Strategies: []Strategy[string]{
			StrategyFunc(StrategyTimeDatetime, attrDate("time[datetime]")),
			StrategyFunc(StrategyDatetimeAttr, attrDate("[datetime]")),
			StrategyFunc(StrategyTimeTestID, textDate(`[data-testid="Time"]`)),
			StrategyFunc(StrategyTimeText, textDate("time")),
		},
		Validate: nonEmpty,
	}
}

func attrDate(selector string) func(p *Page) (string, bool) {
	return func(p *Page) (string, bool) {
		v, ok := p.Scoped(selector).First().Attr("datetime")
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return NormalizeDate(v), true
	}
}

func textDate(selector string) func(p *Page) (string, bool) {
	return func(p *Page) (string, bool) {
		t := strings.Join(snapshot.Lines(p.Scoped(selector).First()), " ")
		if t == "" {
			return "", false
		}
		return NormalizeDate(t), true
	}
}

// NormalizeDate rewrites RFC 3339 timestamps in UTC; anything else is
// returned trimmed and unchanged.
func NormalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return v
}
