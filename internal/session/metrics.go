package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolinfo_session_logins_total",
		Help: "Login attempts by requested role and result.",
	}, []string{"role", "result"})

	persistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolinfo_session_persist_failures_total",
		Help: "Session state changes applied in memory but not persisted.",
	}, []string{"op"})

	timeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schoolinfo_session_idle_timeouts_total",
		Help: "Sessions expired by the idle timeout at restore.",
	})
)
