/*
Package observability turns engine lifecycle hooks into operator signals:
Prometheus counters (Metrics) and structured audit logs (LogHooks).

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))

End users only ever see the neutral handoff message; everything about why a
flow failed is reported here.
*/
package observability
