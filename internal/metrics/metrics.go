package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saltyorg/ipldash/internal/auth"
	"github.com/saltyorg/ipldash/internal/stats"
)

var (
	_ stats.Observer = (*Service)(nil)
	_ auth.Observer  = (*Service)(nil)
)

// Service holds the dashboard's Prometheus collectors
type Service struct {
	ReportQueries  *prometheus.CounterVec
	ReportHits     *prometheus.CounterVec
	ReportDuration *prometheus.HistogramVec
	Logins         *prometheus.CounterVec
	Registrations  *prometheus.CounterVec
	BuildInfo      *prometheus.GaugeVec
}

// NewHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewRegistry creates a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewService creates and registers the collectors.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		ReportQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipldash_report_queries_total",
			Help: "Report queries sent to the database, by outcome.",
		}, []string{"report", "result"}),
		ReportHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipldash_report_cache_hits_total",
			Help: "Report requests answered from the result cache.",
		}, []string{"report"}),
		ReportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ipldash_report_query_duration_seconds",
			Help:    "Time spent running report queries.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"report"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipldash_logins_total",
			Help: "Login attempts by role and outcome.",
		}, []string{"role", "result"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipldash_registrations_total",
			Help: "Registration attempts by outcome.",
		}, []string{"result"}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ipldash_build_info",
			Help: "Always 1; labelled with the running version and database driver.",
		}, []string{"version", "driver"}),
	}

	reg.MustRegister(
		s.ReportQueries,
		s.ReportHits,
		s.ReportDuration,
		s.Logins,
		s.Registrations,
		s.BuildInfo,
	)

	return s
}

func (s *Service) ReportQueried(report, result string, duration time.Duration) {
	s.ReportQueries.WithLabelValues(report, result).Inc()
	s.ReportDuration.WithLabelValues(report).Observe(duration.Seconds())
}

func (s *Service) ReportCacheHit(report string) {
	s.ReportHits.WithLabelValues(report).Inc()
}

func (s *Service) LoginAttempt(role, result string) {
	s.Logins.WithLabelValues(role, result).Inc()
}

func (s *Service) Registration(result string) {
	s.Registrations.WithLabelValues(result).Inc()
}

func (s *Service) SetBuildInfo(version, driver string) {
	s.BuildInfo.WithLabelValues(version, driver).Set(1)
}
