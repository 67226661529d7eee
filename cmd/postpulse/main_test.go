package main

import (
	"testing"
	"time"

	"github.com/use-agent/postpulse/config"
)

func TestScrapeFlagsOverrideConfig(t *testing.T) {
	cfg := config.Load()
	cmd := newScrapeCmd(cfg)

	err := cmd.ParseFlags([]string{
		"-o", "out.csv",
		"--start-index", "10",
		"--batch-size", "5",
		"--wait-time", "20s",
		"--headless=false",
		"--resume",
	})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if cfg.Batch.OutputFile != "out.csv" {
		t.Errorf("output = %q", cfg.Batch.OutputFile)
	}
	if cfg.Batch.StartIndex != 10 || cfg.Batch.BatchSize != 5 {
		t.Errorf("window = %d/%d, want 10/5", cfg.Batch.StartIndex, cfg.Batch.BatchSize)
	}
	if cfg.Scraper.WaitBudget != 20*time.Second {
		t.Errorf("wait budget = %s", cfg.Scraper.WaitBudget)
	}
	if cfg.Browser.Headless || !cfg.Batch.Resume {
		t.Errorf("headless = %v, resume = %v", cfg.Browser.Headless, cfg.Batch.Resume)
	}
}

func TestScrapeRequiresInput(t *testing.T) {
	root := newRootCmd(config.Load())
	root.SetArgs([]string{"scrape"})
	root.SilenceErrors = true
	if err := root.Execute(); err == nil {
		t.Fatal("scrape without an input file succeeded")
	}
}
