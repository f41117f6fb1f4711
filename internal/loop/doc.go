// Package loop holds the agent-facing boundaries of a gather-act-verify
// iteration.
//
// GatherPhase and VerifyPhase are advisory: they never abort the agent.
// Each exposes a Try method returning an Outcome that carries a value or a
// typed failure, and a plain method that collapses the Outcome to an
// optional value for the agent.
package loop
