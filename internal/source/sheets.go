package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/roach88/steadyboard/internal/ir"
)

// Default A1 column ranges.
const (
	DefaultParticipantsRange = "A:C"
	DefaultEventRange        = "A:Z"
)

// SheetsConfig locates the tables inside one spreadsheet.
type SheetsConfig struct {
	SpreadsheetID string
	APIKey        string

	// Sheets are addressed by numeric gid (the #gid= in the sheet URL)
	// because titles get renamed mid-event; gids do not.
	ParticipantsGID int64
	EventGID        *int64
	ControlGID      *int64

	ParticipantsRange string
	EventRange        string
}

// SheetsSource reads through the Sheets API, bypassing the publish cache.
type SheetsSource struct {
	cfg   SheetsConfig
	retry RetryConfig
	svc   *sheets.Service
	opts  options

	// timeout bounds each API call.
	timeout time.Duration

	mu     sync.Mutex
	titles map[int64]string
}

// NewSheetsSource creates a Sheets API adapter. Extra client options are
// passed to the Sheets service (endpoint and HTTP client in tests).
func NewSheetsSource(ctx context.Context, cfg SheetsConfig, retry RetryConfig, timeout time.Duration, clientOpts []option.ClientOption, opts ...Option) (*SheetsSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheets source: spreadsheet id is required")
	}
	if err := retry.Validate(); err != nil {
		return nil, err
	}
	if cfg.ParticipantsRange == "" {
		cfg.ParticipantsRange = DefaultParticipantsRange
	}
	if cfg.EventRange == "" {
		cfg.EventRange = DefaultEventRange
	}

	var all []option.ClientOption
	if cfg.APIKey != "" {
		all = append(all, option.WithAPIKey(cfg.APIKey))
	}
	all = append(all, clientOpts...)

	svc, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("sheets source: %w", err)
	}
	return &SheetsSource{
		cfg:     cfg,
		retry:   retry,
		svc:     svc,
		timeout: timeout,
		opts:    buildOptions(timeout, opts),
	}, nil
}

// Name implements engine.Source.
func (s *SheetsSource) Name() string { return "sheets" }

// Fetch resolves sheet titles (once) and reads every table in a single
// batch request.
func (s *SheetsSource) Fetch(ctx context.Context) (ir.RawSnapshot, error) {
	titles, err := s.resolveTitles(ctx)
	if err != nil {
		return ir.RawSnapshot{}, err
	}

	type want struct {
		name  string
		gid   int64
		cols  string
		table *ir.Table
	}
	raw := ir.RawSnapshot{Source: s.Name()}
	wants := []want{{"participants", s.cfg.ParticipantsGID, s.cfg.ParticipantsRange, &raw.Participants}}
	if s.cfg.EventGID != nil {
		wants = append(wants, want{"event", *s.cfg.EventGID, s.cfg.EventRange, &raw.Event})
	}
	if s.cfg.ControlGID != nil {
		wants = append(wants, want{"control", *s.cfg.ControlGID, s.cfg.EventRange, &raw.Control})
	}

	ranges := make([]string, len(wants))
	for i, w := range wants {
		title, ok := titles[w.gid]
		if !ok {
			return ir.RawSnapshot{}, ir.NewShapeError(s.Name(), fmt.Sprintf("no sheet with gid %d", w.gid))
		}
		ranges[i] = a1Range(title, w.cols)
	}

	var resp *sheets.BatchGetValuesResponse
	err = retry(ctx, s.retry, s.opts.hook(s.Name(), "batch"), func(ctx context.Context, _ int) error {
		ctx, cancel := s.callContext(ctx)
		defer cancel()
		r, err := s.svc.Spreadsheets.Values.BatchGet(s.cfg.SpreadsheetID).
			Ranges(ranges...).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		if err != nil {
			return s.transportError("values:batchGet failed", err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return ir.RawSnapshot{}, err
	}

	if len(resp.ValueRanges) != len(wants) {
		return ir.RawSnapshot{}, ir.NewShapeError(s.Name(),
			fmt.Sprintf("batch returned %d ranges, requested %d", len(resp.ValueRanges), len(wants)))
	}
	for i, w := range wants {
		*w.table = valuesTable(resp.ValueRanges[i].Values)
	}
	return raw, nil
}

// resolveTitles maps gids to sheet titles. The mapping is cached after the
// first success; a failed lookup is retried on the next poll.
func (s *SheetsSource) resolveTitles(ctx context.Context) (map[int64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.titles != nil {
		return s.titles, nil
	}

	var ss *sheets.Spreadsheet
	err := retry(ctx, s.retry, s.opts.hook(s.Name(), "metadata"), func(ctx context.Context, _ int) error {
		ctx, cancel := s.callContext(ctx)
		defer cancel()
		r, err := s.svc.Spreadsheets.Get(s.cfg.SpreadsheetID).
			Fields("sheets.properties(sheetId,title)").
			Context(ctx).
			Do()
		if err != nil {
			return s.transportError("spreadsheet metadata failed", err)
		}
		ss = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	titles := make(map[int64]string, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles[sh.Properties.SheetId] = sh.Properties.Title
		}
	}
	s.titles = titles
	return titles, nil
}

func (s *SheetsSource) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *SheetsSource) transportError(msg string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return ir.NewTransportError(s.Name(), msg, &statusError{Code: gerr.Code})
	}
	return ir.NewTransportError(s.Name(), msg, err)
}

// a1Range quotes a sheet title for A1 notation: 'It''s here'!A:C.
func a1Range(title, cols string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + cols
}

// valuesTable converts API cell values to strings. The API omits trailing
// empty cells and rows, which the normalizer treats as blank.
func valuesTable(values [][]any) ir.Table {
	t := make(ir.Table, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		t[i] = cells
	}
	return t
}
