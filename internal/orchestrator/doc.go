// Package orchestrator assembles budgeted context bundles for the agent.
//
// A gather request is hashed into a cache key. On a miss every Provider runs
// concurrently, candidates are merged by path, costed with a
// tokens.Estimator, sorted by descending score (stable), and selected
// greedily until the next candidate would overflow the token budget. The
// resulting bundle is cached unless it is degraded.
//
// Gather never returns an error. Invalid requests, provider failures and
// panics produce a bundle whose strategy is "degraded", carrying whatever
// sources could still be produced and the faults that occurred.
package orchestrator
