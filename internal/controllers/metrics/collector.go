package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chrissnell/wlcloud/internal/weatherstations"
)

const namespace = "wlcloud"

var stationStates = []string{
	weatherstations.StateStarting,
	weatherstations.StateHealthy,
	weatherstations.StateDegraded,
	weatherstations.StateFailed,
}

// stationCollector reads the station's snapshot and status at scrape time.
// Fields that stop being reported disappear from the next scrape instead of
// lingering with a stale value.
type stationCollector struct {
	source weatherstations.Source

	value       *prometheus.Desc
	polls       *prometheus.Desc
	lastSuccess *prometheus.Desc
	lastAttempt *prometheus.Desc
	failures    *prometheus.Desc
	state       *prometheus.Desc
	primary     *prometheus.Desc
	fetchedAt   *prometheus.Desc
}

func newStationCollector(source weatherstations.Source, station string) *stationCollector {
	constLabels := prometheus.Labels{"station": station}
	return &stationCollector{
		source: source,
		value: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "observation_value"),
			"Latest normalized numeric observation value by transmitter and field.",
			[]string{"tx", "field", "unit"}, constLabels),
		polls: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "polls_total"),
			"Completed polls by result.",
			[]string{"result"}, constLabels),
		lastSuccess: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "last_success_timestamp"),
			"Unix time of the last successful poll.", nil, constLabels),
		lastAttempt: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "last_attempt_timestamp"),
			"Unix time of the last poll attempt.", nil, constLabels),
		failures: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "consecutive_failures"),
			"Polls failed in a row since the last success.", nil, constLabels),
		state: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "station_state"),
			"1 for the station's current state, 0 for the others.",
			[]string{"state"}, constLabels),
		primary: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "primary_transmitter"),
			"Transmitter id treated as the primary ISS.", nil, constLabels),
		fetchedAt: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "observation_fetched_timestamp"),
			"Unix time the cached observation was fetched.", nil, constLabels),
	}
}

func (c *stationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.value
	ch <- c.polls
	ch <- c.lastSuccess
	ch <- c.lastAttempt
	ch <- c.failures
	ch <- c.state
	ch <- c.primary
	ch <- c.fetchedAt
}

func (c *stationCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Status()

	ch <- prometheus.MustNewConstMetric(c.polls, prometheus.CounterValue, float64(st.TotalPolls-st.TotalFailures), "success")
	ch <- prometheus.MustNewConstMetric(c.polls, prometheus.CounterValue, float64(st.TotalFailures), "failure")
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.GaugeValue, float64(st.ConsecutiveFailures))
	for _, s := range stationStates {
		v := 0.0
		if st.State == s {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, s)
	}
	if !st.LastSuccess.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastSuccess, prometheus.GaugeValue, float64(st.LastSuccess.Unix()))
	}
	if !st.LastAttempt.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastAttempt, prometheus.GaugeValue, float64(st.LastAttempt.Unix()))
	}

	snap := c.source.Snapshot()
	if snap == nil || snap.Observation == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.primary, prometheus.GaugeValue, float64(snap.PrimaryTxID))
	ch <- prometheus.MustNewConstMetric(c.fetchedAt, prometheus.GaugeValue, float64(snap.FetchedAt.Unix()))

	for _, txID := range snap.Observation.TransmitterIDs() {
		bucket, _ := snap.Observation.Transmitter(txID)
		tx := strconv.Itoa(txID)
		for _, f := range bucket.Keys() {
			// Strings and nulls have no gauge form.
			v, ok := bucket.Float(f)
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(c.value, prometheus.GaugeValue, v, tx, f.String(), f.Unit())
		}
	}
}
