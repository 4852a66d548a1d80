// Package config loads steadyboard configuration.
//
// Precedence, lowest first: built-in defaults, the config file (YAML or
// CUE, validated against the embedded schema), environment variables
// (optionally from a .env file), then command-line flags applied by the
// caller.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/steadyboard/internal/engine"
	"github.com/roach88/steadyboard/internal/source"
)

// Environment variables read after the config file.
const (
	EnvSheetsAPIKey  = "STEADYBOARD_SHEETS_API_KEY"
	EnvSpreadsheetID = "STEADYBOARD_SPREADSHEET_ID"
)

// DefaultStorePath is the SQLite cycle log location.
const DefaultStorePath = "steadyboard.db"

// Config is the fully resolved configuration.
type Config struct {
	Source   source.Config
	Poll     engine.DriverConfig
	Engine   engine.Config
	Synonyms map[string][]string
	Render   RenderConfig
	Store    StoreConfig
}

// RenderConfig selects the render sinks.
type RenderConfig struct {
	// DefaultLabel is shown as the course name until the sheet has one.
	DefaultLabel string

	// File, when set, receives board.json on every cycle.
	File string

	// Listen, when set, serves the board over HTTP.
	Listen string
}

// StoreConfig locates the cycle log.
type StoreConfig struct {
	Path string
}

// Default returns the built-in defaults. The source kind is left empty;
// Load picks it once the file and environment are applied.
func Default() Config {
	return Config{
		Source: source.Config{
			Retry:   source.DefaultRetryConfig(),
			Timeout: source.DefaultTimeout,
		},
		Poll:   engine.DriverConfig{Interval: engine.DefaultInterval},
		Engine: engine.DefaultConfig(),
		Store:  StoreConfig{Path: DefaultStorePath},
	}
}

// resolveSourceKind picks the Sheets API when both credentials are present
// and published CSV otherwise. An explicit kind is kept.
func (c *Config) resolveSourceKind() {
	if c.Source.Kind != "" {
		return
	}
	if c.Source.Sheets.APIKey != "" && c.Source.Sheets.SpreadsheetID != "" {
		c.Source.Kind = source.KindSheets
		return
	}
	c.Source.Kind = source.KindCSV
}

// Validate checks the combination of settings, after flags are applied.
func (c Config) Validate() error {
	var errs []error

	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Source.Retry.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.Poll.Interval))
	}
	if c.Poll.ConfirmDelay < 0 {
		errs = append(errs, fmt.Errorf("confirm delay must not be negative, got %s", c.Poll.ConfirmDelay))
	}
	if c.Poll.ConfirmDelay >= c.Poll.Interval && c.Poll.Interval > 0 {
		errs = append(errs, fmt.Errorf("confirm delay %s must be shorter than the poll interval %s",
			c.Poll.ConfirmDelay, c.Poll.Interval))
	}

	switch c.Source.Kind {
	case source.KindCSV:
		if c.Source.CSV.ParticipantsURL == "" {
			errs = append(errs, errors.New("csv source needs participants_url or published_id"))
		}
	case source.KindSheets:
		if c.Source.Sheets.SpreadsheetID == "" {
			errs = append(errs, fmt.Errorf("sheets source needs spreadsheet_id (or %s)", EnvSpreadsheetID))
		}
		if c.Source.Sheets.APIKey == "" {
			errs = append(errs, fmt.Errorf("sheets source needs api_key (or %s)", EnvSheetsAPIKey))
		}
	case source.KindJSON:
		if c.Source.JSON.URL == "" {
			errs = append(errs, errors.New("json source needs url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}

	return errors.Join(errs...)
}

// fileConfig mirrors the file layout. Pointers distinguish "absent" from
// zero values so defaults survive.
type fileConfig struct {
	Source *struct {
		Kind    *string `json:"kind"`
		Timeout *string `json:"timeout"`
		Retry   *struct {
			MaxAttempts    *int    `json:"max_attempts"`
			InitialBackoff *string `json:"initial_backoff"`
			MaxBackoff     *string `json:"max_backoff"`
		} `json:"retry"`
		CSV *struct {
			ParticipantsURL *string `json:"participants_url"`
			EventURL        *string `json:"event_url"`
			ControlURL      *string `json:"control_url"`
			PublishedID     *string `json:"published_id"`
			ParticipantsGID *int64  `json:"participants_gid"`
			EventGID        *int64  `json:"event_gid"`
			ControlGID      *int64  `json:"control_gid"`
		} `json:"csv"`
		Sheets *struct {
			SpreadsheetID     *string `json:"spreadsheet_id"`
			APIKey            *string `json:"api_key"`
			ParticipantsGID   *int64  `json:"participants_gid"`
			EventGID          *int64  `json:"event_gid"`
			ControlGID        *int64  `json:"control_gid"`
			ParticipantsRange *string `json:"participants_range"`
			EventRange        *string `json:"event_range"`
		} `json:"sheets"`
		JSON *struct {
			URL *string `json:"url"`
		} `json:"json"`
	} `json:"source"`

	Poll *struct {
		Interval     *string `json:"interval"`
		ConfirmDelay *string `json:"confirm_delay"`
	} `json:"poll"`

	Stabilize *struct {
		ParticipantThreshold *int  `json:"participant_threshold"`
		EventThreshold       *int  `json:"event_threshold"`
		MonotonicProgress    *bool `json:"monotonic_progress"`
		MonotonicGross       *bool `json:"monotonic_gross"`
	} `json:"stabilize"`

	Guard *struct {
		MinPopulation    *int  `json:"min_population"`
		NameSetStable    *bool `json:"name_set_stable"`
		RequireCoherence *bool `json:"require_coherence"`
	} `json:"guard"`

	Rank *struct {
		Collation *string `json:"collation"`
	} `json:"rank"`

	Normalize *struct {
		Synonyms map[string][]string `json:"synonyms"`
	} `json:"normalize"`

	Render *struct {
		DefaultLabel *string `json:"default_label"`
		File         *string `json:"file"`
		Listen       *string `json:"listen"`
	} `json:"render"`

	Store *struct {
		Path *string `json:"path"`
	} `json:"store"`
}

// apply overlays the file values onto c.
func (f fileConfig) apply(c *Config) error {
	var errs []error
	setDuration := func(dst *time.Duration, name string, v *string) {
		if v == nil {
			return
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}

	if s := f.Source; s != nil {
		set(&c.Source.Kind, s.Kind)
		setDuration(&c.Source.Timeout, "source.timeout", s.Timeout)
		if r := s.Retry; r != nil {
			set(&c.Source.Retry.MaxAttempts, r.MaxAttempts)
			setDuration(&c.Source.Retry.InitialBackoff, "source.retry.initial_backoff", r.InitialBackoff)
			setDuration(&c.Source.Retry.MaxBackoff, "source.retry.max_backoff", r.MaxBackoff)
		}
		if v := s.CSV; v != nil {
			set(&c.Source.CSV.ParticipantsURL, v.ParticipantsURL)
			set(&c.Source.CSV.EventURL, v.EventURL)
			set(&c.Source.CSV.ControlURL, v.ControlURL)
			if v.PublishedID != nil {
				applyPublished(&c.Source.CSV, *v.PublishedID, v.ParticipantsGID, v.EventGID, v.ControlGID)
			}
		}
		if v := s.Sheets; v != nil {
			set(&c.Source.Sheets.SpreadsheetID, v.SpreadsheetID)
			set(&c.Source.Sheets.APIKey, v.APIKey)
			set(&c.Source.Sheets.ParticipantsGID, v.ParticipantsGID)
			set(&c.Source.Sheets.ParticipantsRange, v.ParticipantsRange)
			set(&c.Source.Sheets.EventRange, v.EventRange)
			if v.EventGID != nil {
				c.Source.Sheets.EventGID = v.EventGID
			}
			if v.ControlGID != nil {
				c.Source.Sheets.ControlGID = v.ControlGID
			}
		}
		if v := s.JSON; v != nil {
			set(&c.Source.JSON.URL, v.URL)
		}
	}

	if p := f.Poll; p != nil {
		setDuration(&c.Poll.Interval, "poll.interval", p.Interval)
		setDuration(&c.Poll.ConfirmDelay, "poll.confirm_delay", p.ConfirmDelay)
	}

	if s := f.Stabilize; s != nil {
		set(&c.Engine.ParticipantThreshold, s.ParticipantThreshold)
		set(&c.Engine.EventThreshold, s.EventThreshold)
		set(&c.Engine.Monotonic.Progress, s.MonotonicProgress)
		set(&c.Engine.Monotonic.Gross, s.MonotonicGross)
	}

	if g := f.Guard; g != nil {
		set(&c.Engine.Guard.MinPopulation, g.MinPopulation)
		set(&c.Engine.Guard.NameSetStable, g.NameSetStable)
		set(&c.Engine.Guard.RequireCoherence, g.RequireCoherence)
	}

	if r := f.Rank; r != nil {
		set(&c.Engine.Collation, r.Collation)
	}

	if n := f.Normalize; n != nil && n.Synonyms != nil {
		c.Synonyms = n.Synonyms
	}

	if r := f.Render; r != nil {
		set(&c.Render.DefaultLabel, r.DefaultLabel)
		set(&c.Render.File, r.File)
		set(&c.Render.Listen, r.Listen)
	}

	if s := f.Store; s != nil {
		set(&c.Store.Path, s.Path)
	}

	return errors.Join(errs...)
}

// applyPublished derives published CSV URLs from a "publish to web" id.
// Explicit URLs win over derived ones.
func applyPublished(c *source.CSVConfig, id string, participants, event, control *int64) {
	gid := func(p *int64) int64 {
		if p == nil {
			return 0
		}
		return *p
	}
	if c.ParticipantsURL == "" {
		c.ParticipantsURL = source.PublishedCSVURL(id, gid(participants))
	}
	if c.EventURL == "" && event != nil {
		c.EventURL = source.PublishedCSVURL(id, *event)
	}
	if c.ControlURL == "" && control != nil {
		c.ControlURL = source.PublishedCSVURL(id, *control)
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
