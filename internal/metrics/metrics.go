package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/XavierBriggs/fortuna/services/odds-board/internal/store"
	"github.com/XavierBriggs/fortuna/services/odds-board/internal/stream"
)

// Collector records feed and store metrics. It implements stream.Observer.
type Collector struct {
	messagesReceived  prometheus.Counter
	messagesDiscarded *prometheus.CounterVec
	reconnects        prometheus.Counter
	reconnectDelay    prometheus.Histogram
	connectionState   *prometheus.GaugeVec
	quotes            prometheus.Gauge
	filteredQuotes    prometheus.Gauge
	events            prometheus.Gauge
	storeVersion      prometheus.Gauge
}

var states = []stream.State{stream.StateDisconnected, stream.StateConnecting, stream.StateConnected}

// NewCollector registers the collectors on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		messagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "odds_board_feed_messages_received_total",
			Help: "Total number of frames read from the odds feed",
		}),
		messagesDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "odds_board_feed_messages_discarded_total",
			Help: "Total number of feed frames dropped during validation",
		}, []string{"reason"}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "odds_board_feed_reconnects_scheduled_total",
			Help: "Total number of reconnect attempts scheduled",
		}),
		reconnectDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "odds_board_feed_reconnect_delay_seconds",
			Help:    "Backoff delay before each reconnect attempt",
			Buckets: []float64{1, 2, 4, 8, 16, 30},
		}),
		connectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odds_board_feed_connection_state",
			Help: "1 for the current feed connection state, 0 otherwise",
		}, []string{"state"}),
		quotes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "odds_board_store_quotes",
			Help: "Number of quotes held in the store",
		}),
		filteredQuotes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "odds_board_store_filtered_quotes",
			Help: "Number of quotes passing the active filters",
		}),
		events: factory.NewGauge(prometheus.GaugeOpts{
			Name: "odds_board_store_events",
			Help: "Number of events held in the store",
		}),
		storeVersion: factory.NewGauge(prometheus.GaugeOpts{
			Name: "odds_board_store_version",
			Help: "Version of the latest store snapshot",
		}),
	}

	c.StateChanged(stream.StateDisconnected)
	return c
}

// StateChanged marks state as the only active connection state
func (c *Collector) StateChanged(state stream.State) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		c.connectionState.WithLabelValues(string(s)).Set(v)
	}
}

// MessageReceived counts a frame read from the feed
func (c *Collector) MessageReceived() {
	c.messagesReceived.Inc()
}

// MessageDiscarded counts a dropped frame by reason
func (c *Collector) MessageDiscarded(reason string) {
	c.messagesDiscarded.WithLabelValues(reason).Inc()
}

// ReconnectScheduled records a scheduled reconnect and its delay
func (c *Collector) ReconnectScheduled(attempt int, delay time.Duration) {
	c.reconnects.Inc()
	c.reconnectDelay.Observe(delay.Seconds())
}

// ObserveSnapshot updates the store gauges; register it with store.Subscribe
func (c *Collector) ObserveSnapshot(snap store.Snapshot) {
	c.quotes.Set(float64(snap.QuoteCount()))
	c.filteredQuotes.Set(float64(len(snap.FilteredQuotes())))
	c.events.Set(float64(len(snap.Events())))
	c.storeVersion.Set(float64(snap.Version))
}
