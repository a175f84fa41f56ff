package classfile

import (
	"io"
	"log"
	"os"
)

// PrintDebugInfo toggles verbose logging of class-file reads/writes.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	var w io.Writer = io.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "classfile: ", log.Lshortfile)
}

// SetDebugMode enables or disables verbose logging.
func SetDebugMode(v bool) {
	PrintDebugInfo = v
	w := io.Writer(io.Discard)
	if v {
		w = os.Stderr
	}
	logger = log.New(w, "classfile: ", log.Lshortfile)
}
