package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/joho/godotenv"

	"github.com/roach88/steadyboard/internal/normalize"
)

//go:embed schema.cue
var schemaSource []byte

// Load reads the config file at path over the defaults. An empty path
// returns the defaults. Files ending in .cue are compiled as CUE; anything
// else is read as YAML. Environment overrides are applied afterwards, then
// a source kind is chosen if the file did not name one.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(&cfg, path, data); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg, os.Getenv)
	cfg.resolveSourceKind()
	return cfg, nil
}

// Parse validates data against the schema and overlays it onto cfg.
// filename selects the format and labels error positions.
func Parse(cfg *Config, filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	var v cue.Value
	if strings.EqualFold(filepath.Ext(filename), ".cue") {
		v = ctx.CompileBytes(data, cue.Filename(filename))
	} else {
		file, err := cueyaml.Extract(filename, data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", filename, err)
		}
		v = ctx.BuildFile(file)
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("parse %s: %s", filename, formatCUEError(err))
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config %s: %s", filename, formatCUEError(err))
	}

	var fc fileConfig
	if err := unified.Decode(&fc); err != nil {
		return fmt.Errorf("decode config %s: %s", filename, formatCUEError(err))
	}
	if err := fc.apply(cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. Variables that are already set are left alone. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyEnv applies secrets that should not live in config files.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvSheetsAPIKey); v != "" {
		cfg.Source.Sheets.APIKey = v
	}
	if v := getenv(EnvSpreadsheetID); v != "" {
		cfg.Source.Sheets.SpreadsheetID = v
	}
}

// NormalizeSynonyms returns the header synonym table with any configured
// additions merged over the defaults.
func (c Config) NormalizeSynonyms() normalize.Synonyms {
	if len(c.Synonyms) == 0 {
		return normalize.DefaultSynonyms()
	}
	return normalize.DefaultSynonyms().Merge(c.Synonyms)
}

// formatCUEError flattens a CUE error list into one line per problem.
func formatCUEError(err error) string {
	var lines []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := e.Path(); len(path) > 0 {
			msg = strings.Join(path, ".") + ": " + msg
		}
		if pos := e.Position(); pos.IsValid() {
			msg = fmt.Sprintf("%s: %s", pos, msg)
		}
		lines = append(lines, msg)
	}
	if len(lines) == 0 {
		return err.Error()
	}
	return strings.Join(lines, "; ")
}
