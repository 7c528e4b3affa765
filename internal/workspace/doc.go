// Package workspace persists the durable record of a description job: which
// media files were found, what each provider said about them, and where every
// item sits in its lifecycle. The document is a single JSON file written
// atomically after every transition, so a crashed run resumes from its last
// consistent state.
package workspace
