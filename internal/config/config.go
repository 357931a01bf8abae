// Package config loads outbox configuration from CUE files.
//
// CUE rather than plain YAML/JSON because the config carries the action
// dispatch table, and catching a malformed entry at load time with a file
// position beats discovering it as a dispatch failure mid-drain.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/verihire/outbox/internal/queue"
)

// Store kinds the slot can be backed by.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Action declares one dispatchable (entity, action) pair and the HTTP
// endpoint its executor targets.
type Action struct {
	Entity   string
	Action   string
	Endpoint string
	Method   string
}

// Config is the resolved outbox configuration.
type Config struct {
	// StoreKind selects the slot backend: file or sqlite.
	StoreKind string
	// StorePath is the slot file (file kind) or database file (sqlite kind).
	StorePath string
	// SlotName is the named slot within a sqlite store.
	SlotName string

	MaxAttempts     int
	ExecutorTimeout time.Duration
	RecheckInterval time.Duration
	DefaultPriority queue.Priority

	Actions []Action
}

// Error code constants for config validation failures.
const (
	ErrCodeCompile      = "E001" // CUE source did not compile
	ErrCodeWrongType    = "E002" // field has the wrong type
	ErrCodeInvalidValue = "E003" // field value out of range / unknown
)

// ConfigError is a config validation failure with the CUE position when
// one is available.
type ConfigError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: config %s: %s", e.Code, e.Field, e.Message)
}

// Default returns the configuration used when no file is given: a file
// slot next to the working directory, engine defaults, empty action table.
func Default() *Config {
	return &Config{
		StoreKind:       StoreFile,
		StorePath:       "outbox-queue.json",
		SlotName:        "mutation_queue",
		MaxAttempts:     5,
		ExecutorTimeout: 30 * time.Second,
		DefaultPriority: queue.PriorityNormal,
	}
}

// Load reads and parses a CUE config file.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse compiles CUE source and extracts the configuration. Missing fields
// keep their defaults; present fields are validated strictly.
func Parse(src string) (*Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, &ConfigError{Code: ErrCodeCompile, Field: "config", Message: err.Error()}
	}

	cfg := Default()

	if err := stringField(v, "store.kind", &cfg.StoreKind); err != nil {
		return nil, err
	}
	switch cfg.StoreKind {
	case StoreFile, StoreSQLite:
	default:
		return nil, &ConfigError{
			Code:    ErrCodeInvalidValue,
			Field:   "store.kind",
			Message: fmt.Sprintf("unknown store kind %q (want %s or %s)", cfg.StoreKind, StoreFile, StoreSQLite),
			Pos:     fieldPos(v, "store.kind"),
		}
	}
	if err := stringField(v, "store.path", &cfg.StorePath); err != nil {
		return nil, err
	}
	if err := stringField(v, "store.slot", &cfg.SlotName); err != nil {
		return nil, err
	}

	if err := intField(v, "sync.maxAttempts", &cfg.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts < 1 {
		return nil, &ConfigError{
			Code:    ErrCodeInvalidValue,
			Field:   "sync.maxAttempts",
			Message: "must be at least 1",
			Pos:     fieldPos(v, "sync.maxAttempts"),
		}
	}
	if err := durationField(v, "sync.executorTimeout", &cfg.ExecutorTimeout); err != nil {
		return nil, err
	}
	if err := durationField(v, "sync.recheckInterval", &cfg.RecheckInterval); err != nil {
		return nil, err
	}

	var prio string
	if err := stringField(v, "sync.defaultPriority", &prio); err != nil {
		return nil, err
	}
	if prio != "" {
		p := queue.Priority(strings.ToLower(prio))
		if !p.Valid() {
			return nil, &ConfigError{
				Code:    ErrCodeInvalidValue,
				Field:   "sync.defaultPriority",
				Message: fmt.Sprintf("unknown priority %q", prio),
				Pos:     fieldPos(v, "sync.defaultPriority"),
			}
		}
		cfg.DefaultPriority = p
	}

	actions, err := parseActions(v)
	if err != nil {
		return nil, err
	}
	cfg.Actions = actions

	return cfg, nil
}

// parseActions extracts the action table:
//
//	actions: {
//		"application.submit": {endpoint: "https://...", method: "POST"}
//	}
func parseActions(v cue.Value) ([]Action, error) {
	actionsVal := v.LookupPath(cue.ParsePath("actions"))
	if !actionsVal.Exists() {
		return nil, nil
	}

	iter, err := actionsVal.Fields()
	if err != nil {
		return nil, &ConfigError{Code: ErrCodeWrongType, Field: "actions", Message: err.Error(), Pos: actionsVal.Pos()}
	}

	var actions []Action
	for iter.Next() {
		key := iter.Label()
		entity, act, ok := strings.Cut(key, ".")
		if !ok || entity == "" || act == "" {
			return nil, &ConfigError{
				Code:    ErrCodeInvalidValue,
				Field:   "actions." + key,
				Message: `key must be "entityType.action"`,
				Pos:     iter.Value().Pos(),
			}
		}

		a := Action{Entity: entity, Action: act, Method: "POST"}
		if err := stringField(iter.Value(), "endpoint", &a.Endpoint); err != nil {
			return nil, err
		}
		if a.Endpoint == "" {
			return nil, &ConfigError{
				Code:    ErrCodeInvalidValue,
				Field:   "actions." + key + ".endpoint",
				Message: "endpoint is required",
				Pos:     iter.Value().Pos(),
			}
		}
		if err := stringField(iter.Value(), "method", &a.Method); err != nil {
			return nil, err
		}
		a.Method = strings.ToUpper(a.Method)

		actions = append(actions, a)
	}
	return actions, nil
}

func stringField(v cue.Value, path string, out *string) error {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil
	}
	s, err := fv.String()
	if err != nil {
		return &ConfigError{Code: ErrCodeWrongType, Field: path, Message: "must be a string", Pos: fv.Pos()}
	}
	*out = s
	return nil
}

func intField(v cue.Value, path string, out *int) error {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil
	}
	n, err := fv.Int64()
	if err != nil {
		return &ConfigError{Code: ErrCodeWrongType, Field: path, Message: "must be an integer", Pos: fv.Pos()}
	}
	*out = int(n)
	return nil
}

// durationField accepts Go duration strings ("30s", "2m").
func durationField(v cue.Value, path string, out *time.Duration) error {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil
	}
	s, err := fv.String()
	if err != nil {
		return &ConfigError{Code: ErrCodeWrongType, Field: path, Message: `must be a duration string like "30s"`, Pos: fv.Pos()}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return &ConfigError{Code: ErrCodeInvalidValue, Field: path, Message: fmt.Sprintf("invalid duration %q", s), Pos: fv.Pos()}
	}
	if d < 0 {
		return &ConfigError{Code: ErrCodeInvalidValue, Field: path, Message: "must not be negative", Pos: fv.Pos()}
	}
	*out = d
	return nil
}

func fieldPos(v cue.Value, path string) token.Pos {
	return v.LookupPath(cue.ParsePath(path)).Pos()
}
