package linkz

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector exposes SDK stats to Prometheus.
type MetricsCollector struct {
	sdk             *SDK
	tracersCreated  *prometheus.Desc
	tracersEnded    *prometheus.Desc
	liveTracers     *prometheus.Desc
	liveInfos       *prometheus.Desc
	activeStacks    *prometheus.Desc
	recordsCaptured *prometheus.Desc
	recordsDropped  *prometheus.Desc
	usageErrors     *prometheus.Desc
	agentPanics     *prometheus.Desc
}

// NewMetricsCollector creates a prometheus.Collector reading sdk.Stats on each scrape.
func NewMetricsCollector(sdk *SDK, constLabels prometheus.Labels) *MetricsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("linkz", "", name), help, nil, constLabels)
	}
	return &MetricsCollector{
		sdk:             sdk,
		tracersCreated:  desc("tracers_created_total", "Tracers created."),
		tracersEnded:    desc("tracers_ended_total", "Tracers ended."),
		liveTracers:     desc("live_tracers", "Tracers created but not yet ended."),
		liveInfos:       desc("live_info_objects", "Info objects whose storage is still held."),
		activeStacks:    desc("active_goroutines", "Goroutines with at least one started tracer."),
		recordsCaptured: desc("records_captured_total", "Records handed to the agent."),
		recordsDropped:  desc("records_dropped_total", "Records not handed to the agent."),
		usageErrors:     desc("usage_errors_total", "Calls ignored due to misuse."),
		agentPanics:     desc("agent_panics_total", "Agent calls that panicked."),
	}
}

// Describe implements prometheus.Collector.
func (m *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.tracersCreated
	ch <- m.tracersEnded
	ch <- m.liveTracers
	ch <- m.liveInfos
	ch <- m.activeStacks
	ch <- m.recordsCaptured
	ch <- m.recordsDropped
	ch <- m.usageErrors
	ch <- m.agentPanics
}

// Collect implements prometheus.Collector.
func (m *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	st := m.sdk.Stats()
	ch <- prometheus.MustNewConstMetric(m.tracersCreated, prometheus.CounterValue, float64(st.TracersCreated))
	ch <- prometheus.MustNewConstMetric(m.tracersEnded, prometheus.CounterValue, float64(st.TracersEnded))
	ch <- prometheus.MustNewConstMetric(m.liveTracers, prometheus.GaugeValue, float64(st.LiveTracers))
	ch <- prometheus.MustNewConstMetric(m.liveInfos, prometheus.GaugeValue, float64(st.LiveInfoObjects))
	ch <- prometheus.MustNewConstMetric(m.activeStacks, prometheus.GaugeValue, float64(st.ActiveGoroutines))
	ch <- prometheus.MustNewConstMetric(m.recordsCaptured, prometheus.CounterValue, float64(st.RecordsCaptured))
	ch <- prometheus.MustNewConstMetric(m.recordsDropped, prometheus.CounterValue, float64(st.RecordsDropped))
	ch <- prometheus.MustNewConstMetric(m.usageErrors, prometheus.CounterValue, float64(st.UsageErrors))
	ch <- prometheus.MustNewConstMetric(m.agentPanics, prometheus.CounterValue, float64(st.AgentPanics))
}
