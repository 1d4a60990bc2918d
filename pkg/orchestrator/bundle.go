package orchestrator

import (
	"encoding/json"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/directory"
	"github.com/cuemby/canic/pkg/ids"
)

type wireDirectoryEntry struct {
	Role      string `json:"role"`
	Principal string `json:"principal"`
}

// encodeDirectory produces the canonical wire bytes for a Directory
// Snapshot, used both as InstallArgs payload at Create time and as a
// cascade.Bundle section.
func encodeDirectory(snap directory.Snapshot) ([]byte, error) {
	out := make([]wireDirectoryEntry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		out = append(out, wireDirectoryEntry{Role: string(e.Role), Principal: e.Principal.String()})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "orchestrator.encodeDirectory", "encode directory snapshot", err)
	}
	return data, nil
}

// decodeDirectory is the inverse of encodeDirectory.
func decodeDirectory(data []byte) (directory.Snapshot, error) {
	if len(data) == 0 {
		return directory.Snapshot{}, nil
	}
	var wire []wireDirectoryEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return directory.Snapshot{}, canicerr.New(canicerr.KindInfra, "orchestrator.decodeDirectory", "decode directory snapshot", err)
	}
	entries := make([]directory.Entry, 0, len(wire))
	for _, w := range wire {
		pid, err := ids.ParsePrincipal(w.Principal)
		if err != nil {
			return directory.Snapshot{}, err
		}
		entries = append(entries, directory.Entry{Role: ids.CanisterRole(w.Role), Principal: pid})
	}
	return directory.Snapshot{Entries: entries}, nil
}
