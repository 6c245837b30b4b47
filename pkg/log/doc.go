/*
Package log provides structured logging for the flotta controller using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for the common logging patterns used across the scheduler,
lifecycle controller, agent, and dispatcher. All logs include timestamps
and support filtering by severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("scheduler")                │          │
	│  │  - WithJobID(42)                             │          │
	│  │  - WithNodeName("n1")                        │          │
	│  │  - WithPartition("debug")                    │          │
	│  └──────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Int("candidates", 12).Msg("scheduling cycle")

	jobLog := log.WithJobID(job.ID)
	jobLog.Warn().Str("reason", "RESOURCES").Msg("job remains pending")

Every long-running subsystem (scheduler tick, time-limit loop, agent
supervisor, dispatcher) constructs its own component logger once at
startup rather than calling the package-level helpers directly, so that
every log line it emits carries the component field.
*/
package log
