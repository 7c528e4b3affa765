// Package engine schedules description work: it merges discovery into the
// workspace document, expands HEIC and video containers, and drives a
// bounded worker pool through the configured providers with retry and
// backoff. Every state transition is persisted before the next step runs.
package engine
