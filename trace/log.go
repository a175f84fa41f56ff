package trace

import (
	"io"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
)

// PrintDebugInfo toggles verbose logging of the DFS walk, including a
// spew dump of each block's entry/exit frame.State.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	var w io.Writer = io.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "trace: ", log.Lshortfile)
}

// SetDebugMode enables or disables verbose logging.
func SetDebugMode(v bool) {
	PrintDebugInfo = v
	w := io.Writer(io.Discard)
	if v {
		w = os.Stderr
	}
	logger = log.New(w, "trace: ", log.Lshortfile)
}

// dumpState spews s to the debug logger, gated by PrintDebugInfo so
// the (somewhat expensive) reflection-based dump never runs unless a
// caller asked for it.
func dumpState(label string, s interface{}) {
	if !PrintDebugInfo {
		return
	}
	logger.Printf("%s:\n%s", label, spew.Sdump(s))
}
