package log_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/log"
	"github.com/stretchr/testify/require"
)

func TestWithTopicTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true, Output: &buf})

	l := log.WithTopic(log.TopicCascade)
	l.Info().Msg("snapshot replayed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "cascade", line["topic"])
	require.Equal(t, "snapshot replayed", line["message"])
}

func TestWithPrincipalTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: &buf})

	p := ids.PrincipalOf(7)
	l := log.WithPrincipal(p)
	l.Warn().Msg("heartbeat missed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, p.String(), line["principal"])
}

func TestDebugBelowLevelIsFiltered(t *testing.T) {
	var buf bytes.Buffer
	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: &buf})

	log.Debug("should not appear")
	require.Empty(t, buf.Bytes())
}
