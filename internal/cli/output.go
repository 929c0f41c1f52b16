package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/joshuadavidthomas/aikeys/internal/display"
)

// outWriter is the writer used for all command output.
// Tests can replace this to capture output.
var outWriter io.Writer = os.Stdout

// out prints formatted output to the configured writer.
func out(format string, a ...any) {
	_, _ = fmt.Fprintf(outWriter, format, a...)
}

// outln prints a line to the configured writer.
func outln(a ...any) {
	_, _ = fmt.Fprintln(outWriter, a...)
}

// structured reports whether a machine-readable format was requested.
func structured() bool {
	return jsonOutput || yamlOutput
}

// emit writes v in the requested structured format. YAML wins when both
// flags are set.
func emit(v any) error {
	if yamlOutput {
		return display.OutputYAML(outWriter, v)
	}
	return display.OutputJSON(outWriter, v)
}
