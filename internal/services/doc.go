// Package services defines shared utilities consumed by the workflow engine
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, provider names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that tag failures for
//     consistent retry/abort classification across components.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
