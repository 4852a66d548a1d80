package source

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"

	"github.com/roach88/steadyboard/internal/engine"
)

// Kinds of source.
const (
	KindCSV    = "csv"
	KindSheets = "sheets"
	KindJSON   = "json"
)

// DefaultTimeout bounds one HTTP request.
const DefaultTimeout = 10 * time.Second

// Config selects and configures one adapter.
type Config struct {
	Kind    string
	CSV     CSVConfig
	Sheets  SheetsConfig
	JSON    JSONConfig
	Retry   RetryConfig
	Timeout time.Duration

	// SheetsClientOptions are passed through to the Sheets service.
	SheetsClientOptions []option.ClientOption
}

// New builds the adapter named by cfg.Kind.
func New(ctx context.Context, cfg Config, opts ...Option) (engine.Source, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var (
		src engine.Source
		err error
	)
	switch cfg.Kind {
	case KindCSV:
		src, err = NewCSVSource(cfg.CSV, cfg.Retry, cfg.Timeout, opts...)
	case KindSheets:
		src, err = NewSheetsSource(ctx, cfg.Sheets, cfg.Retry, cfg.Timeout, cfg.SheetsClientOptions, opts...)
	case KindJSON:
		src, err = NewJSONSource(cfg.JSON, cfg.Retry, cfg.Timeout, opts...)
	default:
		err = fmt.Errorf("unknown source kind %q (want csv, sheets or json)", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}
