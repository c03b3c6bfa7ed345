package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then the default namespace is used", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "raidep")
				So(manager.subsystem, ShouldEqual, "reports")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("ingest"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.linesRead.Inc()

			Convey("Then metric names carry the namespace and labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "test_ingest_log_lines_read_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "raidep")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording ingestion metrics", func() {
			before := gatheredValue("raidep_reports_log_lines_read_total", "")
			RecordLineRead()
			RecordLineRead()
			RecordLineSkipped("malformed")
			RecordEventParsed("SPELL_AURA_APPLIED")
			RecordRaidRun("kept")
			RecordUsageIntervals(3)

			Convey("Then counters move", func() {
				So(gatheredValue("raidep_reports_log_lines_read_total", "")-before, ShouldEqual, 2)
				So(gatheredValue("raidep_reports_log_lines_skipped_total", "malformed"), ShouldBeGreaterThanOrEqualTo, 1)
				So(gatheredValue("raidep_reports_raid_runs_total", "kept"), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording the remaining metrics", func() {
			So(func() {
				RecordIngestLatency(12.5)
				RecordReportStatus("ingested")
				RecordReportDuplicate()
				RecordAggregateLatency(3)
				RecordReportWarnings(2)
				UpdateStandingsPlayers(40)
				UpdateQueueSize(1)
				UpdateQueueCapacity(16)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(2)
				RecordWorkerProcessingLatency(5)
				RecordWorkerError()
				RecordHTTPRequest("/reports", "POST", "202")
				RecordHTTPRequestDuration("/reports", "POST", "202", 1.5)
				RecordErrorByComponent("worker", "ingest")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
			}, ShouldNotPanic)

			Convey("Then the registry exposes them", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "raidep_reports_queue_capacity")
			})
		})
	})
}

// gatheredValue returns the counter value of the named family from the
// global registry, selecting the series whose first label equals label.
func gatheredValue(name, label string) float64 {
	families, err := GetRegistry().Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if label != "" && (len(m.GetLabel()) == 0 || m.GetLabel()[0].GetValue() != label) {
				continue
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
