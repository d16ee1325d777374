package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsTotal         = promauto.NewCounter(prometheus.CounterOpts{Name: "proxy_client_sessions_total", Help: "Client sessions admitted"})
	ActiveSessions        = promauto.NewGauge(prometheus.GaugeOpts{Name: "proxy_client_active_sessions", Help: "Sessions not yet terminated"})
	HeadersEncodedTotal   = promauto.NewCounterVec(prometheus.CounterOpts{Name: "proxy_client_headers_encoded_total", Help: "PROXY v2 headers encoded by command"}, []string{"command"})
	PendingHeaders        = promauto.NewGauge(prometheus.GaugeOpts{Name: "proxy_client_pending_headers", Help: "Encoded headers awaiting upstream credit"})
	BudgetViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "proxy_client_budget_violations_total", Help: "Flow control violations by direction"}, []string{"direction"})
	NoRouteTotal          = promauto.NewCounter(prometheus.CounterOpts{Name: "proxy_client_no_route_total", Help: "Begins dropped for lack of a route"})
	EncodeFailuresTotal   = promauto.NewCounter(prometheus.CounterOpts{Name: "proxy_client_encode_failures_total", Help: "Header encodes rejected at begin time"})
)
