// Package logging provides structured logging with correlation ID support for the acquisition core.
//
// This package implements a centralized logging system using Logrus with structured
// logging, correlation ID tracking, component identification, and configurable output
// destinations (console, file, both, or disabled).
//
// Usage Patterns:
//   - Get logger factory: GetLoggerFactory()
//   - Configure globally: ConfigureGlobalLogging(config)
//   - Create component logger: GetLogger("component-name")
//   - Add correlation ID: WithCorrelationID(ctx)
//
// Field Conventions:
//   - "component": Component name (e.g., "camera-driver", "orchestrator")
//   - "correlation_id": Request correlation ID for tracing
package logging
