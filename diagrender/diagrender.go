// Package diagrender formats a diag.Sink for a terminal, kept
// separate from diag itself so the sink stays a pure, I/O-free value.
package diagrender

import (
	"fmt"
	"io"

	"github.com/generin0/vasm/diag"
)

// Render writes a one-line summary followed by one line per
// diagnostic in sink, in the order they were recorded.
func Render(w io.Writer, sink *diag.Sink) {
	fmt.Fprintf(w, "%d diagnostic(s): %d warning(s), %d error(s)\n",
		len(sink.Entries), sink.WarningCount, sink.ErrorCount)

	for _, e := range sink.Entries {
		fmt.Fprintf(w, "[%s] line %d: %s\n", e.Severity, e.Line, e.Message)
		if e.SourceLine != "" {
			fmt.Fprintf(w, "    %s\n", e.SourceLine)
		}
	}
}
