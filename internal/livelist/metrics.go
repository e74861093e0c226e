package livelist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "schoolinfo_livelist_subscriptions",
		Help: "Active live list subscriptions per collection.",
	}, []string{"collection"})

	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolinfo_livelist_writes_total",
		Help: "Collection writes by operation and result.",
	}, []string{"collection", "op", "result"})
)
