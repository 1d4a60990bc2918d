/*
Package log provides structured logging for canic using zerolog.

It wraps zerolog to give every package JSON-structured logging with
component- and topic-specific child loggers, a configurable level, and
helper functions for the common cases.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	log.Info("root orchestrator starting")

	shardLog := log.WithTopic(log.TopicSharding)
	shardLog.Info().Str("pool", pool.String()).Msg("shard provisioned")

	unitLog := log.WithPrincipal(principal).With().Logger()
	unitLog.Warn().Msg("heartbeat missed")

# Topics

Log lines that belong to a specific workflow are tagged with a Topic
(TopicSharding, TopicCascade, TopicCapability, ...) rather than a free-form
component string, so operators can filter by subsystem regardless of which
package emitted the line.
*/
package log
