package logstore

import (
	"github.com/cuemby/canic/pkg/log"
)

const truncationSuffix = "...[truncated]"

// Entry is one record in the framework's in-band log.
type Entry struct {
	Crate     string
	CreatedAt int64
	Level     log.Level
	Topic     string
	Message   string
}

// truncateMessage shortens message to fit within maxEntryBytes, cutting
// only at a UTF-8 rune boundary and appending truncationSuffix when
// space allows. maxEntryBytes <= 0 means no cap. It returns the original
// message unchanged (ok=false) if no truncation was needed.
func truncateMessage(message string, maxEntryBytes int) (string, bool) {
	if maxEntryBytes <= 0 || len(message) <= maxEntryBytes {
		return message, false
	}
	if maxEntryBytes <= len(truncationSuffix) {
		return truncateToBoundary(message, maxEntryBytes), true
	}
	keepLen := maxEntryBytes - len(truncationSuffix)
	return truncateToBoundary(message, keepLen) + truncationSuffix, true
}

func truncateToBoundary(message string, maxBytes int) string {
	if maxBytes >= len(message) {
		return message
	}
	end := maxBytes
	for end > 0 && !isRuneBoundary(message, end) {
		end--
	}
	return message[:end]
}

// isRuneBoundary reports whether byte offset i in s falls on a UTF-8 rune
// boundary (true trivially at 0 and len(s)).
func isRuneBoundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	// A byte is a rune boundary unless it's a UTF-8 continuation byte
	// (top two bits are 10).
	return s[i]&0xC0 != 0x80
}

func maybeTruncate(e Entry, maxEntryBytes int) Entry {
	if msg, truncated := truncateMessage(e.Message, maxEntryBytes); truncated {
		e.Message = msg
	}
	return e
}

func levelOf(s string) log.Level {
	return log.Level(s)
}
