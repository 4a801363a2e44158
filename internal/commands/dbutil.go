package commands

import (
	"errors"
	"log/slog"

	"github.com/thymos-run/thymos/internal/app"
	"github.com/thymos-run/thymos/internal/output"
	"github.com/thymos-run/thymos/internal/versioning"
	"github.com/thymos-run/thymos/pkg/backend"
	"github.com/thymos-run/thymos/pkg/backend/embedded"
)

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// Intentionally hide the original error: the JSON error response is the output.
	return "error already printed"
}

// openEngine opens the embedded SQLite backend at the configured DB path
// and wraps it in a versioning.Engine, ready for commit/branch/merge
// operations. memory.mode values other than "embedded" are accepted (so
// config files stay forward-compatible) but currently fall back to the
// embedded backend, since Server and Hybrid have no implementation yet.
func openEngine() (*versioning.Engine, func(), error) {
	if mode := app.EffectiveMemoryMode(); mode != app.MemoryModeEmbedded {
		slog.Warn("memory.mode is not yet implemented, using embedded backend", "configured_mode", mode)
	}

	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, nil, err
	}

	be, err := embedded.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	engine, err := versioning.NewEngine(be)
	if err != nil {
		_ = be.Close()
		return nil, nil, err
	}

	return engine, func() { _ = be.Close() }, nil
}

func withEngine(fn func(engine *versioning.Engine) error) error {
	engine, closeEngine, err := openEngine()
	if err != nil {
		return cmdErr(err)
	}
	defer closeEngine()

	if err := fn(engine); err != nil {
		return cmdErr(err)
	}
	return nil
}

// withBackend is for commands that only need raw memory storage (e.g.
// `thymos memory store`) without going through the versioning engine's
// staging/commit flow.
func withBackend(fn func(be backend.Backend) error) error {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return cmdErr(err)
	}

	be, err := embedded.Open(dbPath)
	if err != nil {
		return cmdErr(err)
	}
	defer func() { _ = be.Close() }()

	if err := fn(be); err != nil {
		return cmdErr(err)
	}
	return nil
}

func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error()}
	type slogAttrError interface {
		SlogAttrs() []any
	}
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	slog.Error("command error", attrs...)
	if printErr := output.PrintError(err); printErr != nil {
		slog.Error("failed to print error response", "error", printErr.Error())
	}
	return printedError{err: err}
}
