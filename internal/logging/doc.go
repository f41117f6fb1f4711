// Package logging provides structured logging for gav.
//
// It wraps Zap with:
//   - a Trace level below Debug
//   - stdout, stderr and OpenTelemetry outputs
//   - correlation fields pulled from the context (trace, session, call, iteration)
//   - field and pattern redaction
//   - level-aware sampling (errors are never sampled)
//
// Create a logger from config:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithSessionID(ctx, "sess_123")
//	logger.Info(ctx, "gather complete", zap.Int("sources", n))
//
// CLI commands write their results to stdout, so the default output is stderr.
// Tests use NewTestLogger, which records entries in memory.
package logging
