// Package logging provides the per-session prefixed loggers ltsmd uses,
// plus a structured dump helper for mux frames and codec state.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
)

// dumpConfig matches go-spew's defaults except pointer addresses, which
// only add noise when diffing two dumps of the same structure.
var dumpConfig = &spew.ConfigState{Indent: "  ", DisablePointerAddresses: true}

// New builds a logger prefixed with id (typically a connection's remote
// address), writing to out. out == nil means os.Stderr, matching log's own
// default.
func New(id string, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stderr
	}
	return log.New(out, fmt.Sprintf("[%s] ", id), log.LstdFlags)
}

// Dump renders v like %#v, but recursively through pointers and slices,
// for diagnosing a mux frame or codec's internal state during development.
func Dump(v interface{}) string {
	return dumpConfig.Sdump(v)
}
