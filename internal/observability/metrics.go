package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auction"

// Metrics holds the Prometheus collectors for the service. All methods are nil-safe.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec

	bidsPlaced      prometheus.Counter
	bidsRejected    *prometheus.CounterVec
	autoBidsPlaced  prometheus.Counter
	autoBidsSkipped prometheus.Counter
	eventsDropped   prometheus.Counter
	ticks           *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	auctionsClosed  prometheus.Counter
	winnersAssigned prometheus.Counter
	notifications   prometheus.Counter
	pushes          *prometheus.CounterVec
}

// NewMetrics registers collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_errors_total",
			Help: "HTTP errors by route, method and error code.",
		}, []string{"route", "method", "code"}),
		bidsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bids_placed_total",
			Help: "Accepted bids, manual and automatic.",
		}),
		bidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bids_rejected_total",
			Help: "Rejected bids by validation reason.",
		}, []string{"reason"}),
		autoBidsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "autobids_placed_total",
			Help: "Bids placed by the auto-bid cascade.",
		}),
		autoBidsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "autobids_skipped_total",
			Help: "Auto-bid evaluations that placed no bid.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_dropped_total",
			Help: "New-bid events not enqueued because the queue stayed full.",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scheduler_ticks_total",
			Help: "Scheduler ticks by result.",
		}, []string{"result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scheduler_tick_duration_seconds",
			Help:    "Scheduler tick latency.",
			Buckets: prometheus.DefBuckets,
		}),
		auctionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "auctions_closed_total",
			Help: "Auctions closed by the scheduler.",
		}),
		winnersAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "winners_assigned_total",
			Help: "Bids marked WON by the scheduler.",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_created_total",
			Help: "Notifications persisted.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "live_pushes_total",
			Help: "Live push attempts by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.requests, m.requestDuration, m.errors,
			m.bidsPlaced, m.bidsRejected, m.autoBidsPlaced, m.autoBidsSkipped, m.eventsDropped,
			m.ticks, m.tickDuration, m.auctionsClosed, m.winnersAssigned,
			m.notifications, m.pushes,
		)
	}
	return m
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

func (m *Metrics) BidPlaced() {
	if m == nil {
		return
	}
	m.bidsPlaced.Inc()
}

func (m *Metrics) BidRejected(reason string) {
	if m == nil {
		return
	}
	m.bidsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) AutoBidPlaced() {
	if m == nil {
		return
	}
	m.autoBidsPlaced.Inc()
}

func (m *Metrics) AutoBidSkipped() {
	if m == nil {
		return
	}
	m.autoBidsSkipped.Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// TickFinished records one scheduler tick.
func (m *Metrics) TickFinished(err error, duration time.Duration, closed, won int) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ticks.WithLabelValues(result).Inc()
	m.tickDuration.Observe(duration.Seconds())
	m.auctionsClosed.Add(float64(closed))
	m.winnersAssigned.Add(float64(won))
}

func (m *Metrics) NotificationsCreated(n int) {
	if m == nil {
		return
	}
	m.notifications.Add(float64(n))
}

func (m *Metrics) PushAttempt(delivered bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "undelivered"
	}
	m.pushes.WithLabelValues(result).Inc()
}
