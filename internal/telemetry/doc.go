// Package telemetry wires OpenTelemetry tracing and metrics for gav.
//
// Telemetry is off by default. When enabled it exports over OTLP (grpc or
// http/protobuf); when disabled, or when exporters cannot be built, the
// Tracer and Meter accessors fall back to the global no-op providers so
// callers never branch on availability.
//
//	tel, err := telemetry.New(ctx, &cfg.Telemetry)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// Tests use NewTestTelemetry, which records spans in memory.
package telemetry
