package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/steadyboard/internal/ir"
)

// CSVConfig locates the published CSV tables.
type CSVConfig struct {
	// ParticipantsURL is required.
	ParticipantsURL string

	// EventURL is optional; without it the event state is read from the
	// participant rows.
	EventURL string

	// ControlURL is optional and only used for the coherence check.
	ControlURL string
}

// PublishedCSVURL returns the "publish to web" CSV URL for one sheet.
func PublishedCSVURL(publishedID string, gid int64) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/e/%s/pub?gid=%d&single=true&output=csv",
		publishedID, gid)
}

// CSVSource pulls published CSV tables.
type CSVSource struct {
	cfg   CSVConfig
	retry RetryConfig
	opts  options
}

// NewCSVSource creates a CSV adapter.
func NewCSVSource(cfg CSVConfig, retry RetryConfig, timeout time.Duration, opts ...Option) (*CSVSource, error) {
	if cfg.ParticipantsURL == "" {
		return nil, fmt.Errorf("csv source: participants URL is required")
	}
	if err := retry.Validate(); err != nil {
		return nil, err
	}
	return &CSVSource{cfg: cfg, retry: retry, opts: buildOptions(timeout, opts)}, nil
}

// Name implements engine.Source.
func (s *CSVSource) Name() string { return "csv" }

// Fetch reads every configured table concurrently. Any table failing fails
// the whole read.
func (s *CSVSource) Fetch(ctx context.Context) (ir.RawSnapshot, error) {
	raw := ir.RawSnapshot{Source: s.Name()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		raw.Participants, err = s.table(ctx, "participants", s.cfg.ParticipantsURL)
		return err
	})
	if s.cfg.EventURL != "" {
		g.Go(func() (err error) {
			raw.Event, err = s.table(ctx, "event", s.cfg.EventURL)
			return err
		})
	}
	if s.cfg.ControlURL != "" {
		g.Go(func() (err error) {
			raw.Control, err = s.table(ctx, "control", s.cfg.ControlURL)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ir.RawSnapshot{}, err
	}
	return raw, nil
}

func (s *CSVSource) table(ctx context.Context, name, rawURL string) (ir.Table, error) {
	var t ir.Table
	err := retry(ctx, s.retry, s.opts.hook(s.Name(), name), func(ctx context.Context, _ int) error {
		target, err := cacheBust(rawURL, s.opts.now())
		if err != nil {
			return ir.NewShapeError(s.Name(), fmt.Sprintf("invalid %s URL: %v", name, err))
		}
		body, contentType, err := get(ctx, s.opts.client, s.Name(), target)
		if err != nil {
			return err
		}
		if strings.HasPrefix(contentType, "text/html") {
			// A sign-in or error page instead of the published sheet.
			return ir.NewShapeError(s.Name(), fmt.Sprintf("%s table: got HTML instead of CSV", name))
		}
		t, err = ParseCSV(body)
		if err != nil {
			return ir.NewShapeError(s.Name(), fmt.Sprintf("%s table: %v", name, err))
		}
		return nil
	})
	return t, err
}

// ParseCSV parses a header-first CSV document.
//
// Tolerates a UTF-8 BOM, CRLF or bare CR line endings, quoted fields with
// embedded commas, ragged rows and trailing blank rows.
func ParseCSV(data []byte) (ir.Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	for len(records) > 0 && blankRow(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	if len(records) == 0 {
		// Non-nil: a configured table that is empty is still a table.
		return ir.Table{}, nil
	}
	return ir.Table(records), nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
