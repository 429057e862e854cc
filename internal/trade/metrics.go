package trade

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recoverable conditions are absorbed locally; these counters are how they
// stay observable.
var (
	metricTransportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_transport_failures_total",
		Help: "Trade requests that failed at the transport level.",
	})
	metricMalformedPayloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_malformed_payloads_total",
		Help: "Trade responses dropped because they could not be parsed.",
	})
	metricMalformedItems = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_malformed_inventory_items_total",
		Help: "Inventory items skipped during snapshot parsing.",
	})
	metricStaleEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_stale_log_entries_total",
		Help: "Event log entries discarded as duplicates of already-processed positions.",
	})
	metricUnknownActions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_unknown_actions_total",
		Help: "Event log entries dropped due to an unrecognized action code.",
	})
	metricUnknownStatuses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradebot_unknown_statuses_total",
		Help: "Responses carrying an unrecognized trade status code.",
	})
)
