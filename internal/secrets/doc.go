// Package secrets redacts credentials from text that gav captures from
// subprocesses (hook stdout/stderr, lint and test output) before it is
// returned to the agent as feedback or written to logs.
package secrets
