// Package retrieval provides the context providers used by the
// orchestrator: explicitly hinted paths, a workspace walker that scores
// files against the request intent, and the git worktree status.
package retrieval
