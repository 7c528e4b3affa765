// Package provider defines the uniform capability contract lumen's workflow
// engine uses to talk to AI vision backends.
//
// Each backend (subpackages ollama, openai, anthropic) implements Provider:
// a fast local availability check, model listing, and a single-attempt
// Describe call. Predictable failures come back as structured Failure values
// classified by kind so the engine's retry policy can inspect them without
// matching provider-specific error types; the error return is reserved for
// malformed local state.
//
// The Registry is a constructed value passed into the engine, never a
// module-level global, so tests and concurrent jobs can run with different
// provider sets.
package provider
