/*
Package observability provides tools for monitoring the coherence engine.

Metrics binds Prometheus collectors to the engine lifecycle hooks: page transitions,
protocol messages, fault latency and handler failures. Hooks can be combined with
other observers (e.g. structured logging) through Chain.
*/
package observability
