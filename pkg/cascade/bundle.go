package cascade

import (
	"fmt"
	"strings"

	"github.com/cuemby/canic/pkg/directory"
)

// Bundle is a State Bundle: an optional {app_state, subnet_state,
// app_directory, subnet_directory}. An empty Bundle is a no-op cascade
// (spec.md §4.6).
type Bundle struct {
	AppState        []byte
	SubnetState     []byte
	AppDirectory    *directory.Snapshot
	SubnetDirectory *directory.Snapshot
}

// IsEmpty reports whether every section of b is absent.
func (b Bundle) IsEmpty() bool {
	return len(b.AppState) == 0 && len(b.SubnetState) == 0 && b.AppDirectory == nil && b.SubnetDirectory == nil
}

// DebugString renders a compact "[as ss ad sd]"-style single-line summary
// of which sections are populated (uppercase = present), matching the
// original's state.rs debug() tracing, used in cascade log lines.
func (b Bundle) DebugString() string {
	mark := func(present bool, tag string) string {
		if present {
			return strings.ToUpper(tag)
		}
		return tag
	}
	return fmt.Sprintf("[%s %s %s %s]",
		mark(len(b.AppState) > 0, "as"),
		mark(len(b.SubnetState) > 0, "ss"),
		mark(b.AppDirectory != nil, "ad"),
		mark(b.SubnetDirectory != nil, "sd"))
}
