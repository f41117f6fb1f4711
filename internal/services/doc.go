// Package services builds and tears down the gav session runtime.
//
// New wires every component from a config.Config: logger, telemetry,
// token estimator, retrieval providers, context cache and orchestrator,
// hook engine, verification pipeline, and the gather, verify and guard
// phases. Components are only reachable through the returned Registry,
// and Close releases them in reverse order.
package services
