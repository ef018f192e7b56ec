// Package logging provides the service logger: zap with context-aware
// methods, correlation fields carried on context.Context (worker,
// message, supply request, HTTP request, trace), a redacting encoder for
// credentials and phone numbers, and an optional OpenTelemetry bridge.
//
// Every method takes a context as its first argument so correlation ids
// follow a unit of work through the relay and the supply pipeline:
//
//	ctx = logging.WithWorkerID(ctx, in.WorkerID)
//	logger.Info(ctx, "worker message stored", zap.String("category", a.Category))
//
// Tests use NewTestLogger, which records entries in memory.
package logging
