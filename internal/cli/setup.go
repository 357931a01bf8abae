package cli

import (
	"io"

	"github.com/verihire/outbox/internal/config"
	"github.com/verihire/outbox/internal/queue"
	"github.com/verihire/outbox/internal/registry"
	"github.com/verihire/outbox/internal/store"
)

// loadConfig resolves the effective configuration: the --config file when
// given, built-in defaults otherwise.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}
	return cfg, nil
}

// openSlot opens the configured slot store. The returned closer is non-nil
// only for backends holding resources (SQLite).
func openSlot(cfg *config.Config) (queue.Store, io.Closer, error) {
	switch cfg.StoreKind {
	case config.StoreSQLite:
		st, err := store.OpenSQLite(cfg.StorePath, cfg.SlotName)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "opening slot database", err)
		}
		return st, st, nil
	default:
		st, err := store.NewFileStore(cfg.StorePath)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "opening slot file", err)
		}
		return st, nil, nil
	}
}

// openQueue is the common open-config-then-load sequence for commands that
// only inspect or mutate the queue locally.
func openQueue(opts *RootOptions) (*queue.Queue, io.Closer, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	st, closer, err := openSlot(cfg)
	if err != nil {
		return nil, nil, err
	}
	return queue.New(st), closer, nil
}

// buildRegistry constructs the dispatch table from the config's action
// entries, one HTTP executor each.
func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg := registry.New()
	for _, a := range cfg.Actions {
		if err := reg.Register(a.Entity, a.Action, NewHTTPExecutor(nil, a)); err != nil {
			return nil, WrapExitError(ExitCommandError, "building dispatch table", err)
		}
	}
	return reg, nil
}
