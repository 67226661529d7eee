package scraper

import (
	"context"
	"errors"

	"github.com/use-agent/postpulse/models"
)

// categorizeError wraps raw navigation errors into typed ScrapeErrors so the
// governor can decide whether to retry. alive is consulted only for errors
// that are not deadlines; a browser that stops answering is a crash.
func categorizeError(err error, msg string, alive func() bool) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeInternal, "navigation canceled", err)
	case alive != nil && !alive():
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "browser stopped responding", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
