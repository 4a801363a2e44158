package toolcmd

import (
	"log/slog"

	"github.com/thymos-run/thymos/internal/output"
)

type printedError struct {
	err error
}

func (e printedError) Error() string {
	return "error already printed"
}

// cmderr prints err as a JSON error response and returns a sentinel so
// root.go's top-level error logging doesn't report it a second time.
func cmderr(err error) error {
	if err == nil {
		return nil
	}
	if printErr := output.PrintError(err); printErr != nil {
		slog.Error("failed to print error response", "error", printErr.Error())
	}
	return printedError{err: err}
}
