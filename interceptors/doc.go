// Package interceptors provides an interceptor chain around directive forwarding.
//
// The interceptor pattern adds cross-cutting concerns to directive processing
// without modifying the forwarding logic. Built-in interceptors:
//   - RecoveryInterceptor: turns panics into invocation errors
//   - LoggingInterceptor: logs directive header metadata with timing information
//   - MetricsInterceptor: counts directives, failures and processing time
//
// Example usage:
//
//	counters := interceptors.NewCounters()
//	chain := interceptors.NewDefaultInterceptorChainBuilder(logger).
//		WithRecovery().
//		WithLogging().
//		WithMetrics(counters, bridge.ErrorKind).
//		Build()
//
//	resp, err := chain.Execute(ctx, req, finalHandler)
//
// Interceptors are executed in the order they are added to the chain, with the
// final handler being called last.
package interceptors
