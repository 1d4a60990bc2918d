package log

import (
	"io"
	"os"
	"time"

	"github.com/cuemby/canic/pkg/ids"
	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance.
	Logger zerolog.Logger
)

// Level represents a log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// Topic tags a log line with the subsystem that emitted it, mirroring the
// topic taxonomy used to triage logs by cascade/placement/capability/etc.
type Topic string

const (
	TopicSharding     Topic = "sharding"
	TopicPlacement    Topic = "placement"
	TopicLifecycle    Topic = "lifecycle"
	TopicCascade      Topic = "cascade"
	TopicSync         Topic = "sync"
	TopicCapability   Topic = "capability"
	TopicReserve      Topic = "reserve"
	TopicScheduler    Topic = "scheduler"
	TopicRPC          Topic = "rpc"
	TopicIntent       Topic = "intent"
	TopicStore        Topic = "store"
	TopicOrchestrator Topic = "orchestrator"
)

// WithComponent creates a child logger carrying a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTopic creates a child logger tagged with a Topic.
func WithTopic(topic Topic) zerolog.Logger {
	return Logger.With().Str("topic", string(topic)).Logger()
}

// WithPrincipal creates a child logger carrying the principal of the
// canister a log line is about.
func WithPrincipal(p ids.Principal) zerolog.Logger {
	return Logger.With().Str("principal", p.String()).Logger()
}

// WithRole creates a child logger carrying a canister role field.
func WithRole(role ids.CanisterRole) zerolog.Logger {
	return Logger.With().Str("role", role.String()).Logger()
}

// WithRequestID creates a child logger carrying an RPC request ID field,
// useful for tracing a single cross-unit call through its logs.
func WithRequestID(requestID string) zerolog.Logger {
	return Logger.With().Str("request_id", requestID).Logger()
}

// Event logs msg at the given Topic and level, in the compact
// "[as ss ad sd]"-style debug tracing convention used by cascade replay:
// callers pass already-formatted fields via zerolog chaining on the
// returned event when more context is needed.
func Event(topic Topic, level zerolog.Level, msg string) {
	Logger.WithLevel(level).Str("topic", string(topic)).Msg(msg)
}

// Helper functions for common logging patterns.
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
