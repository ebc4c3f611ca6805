/*
Package observability exposes Prometheus metrics for debugging sessions.

Metrics are fed from two places: lifecycle hooks registered on every debugger, and the
notification bus of every debugger, which the metrics subscribe to.
*/
package observability
