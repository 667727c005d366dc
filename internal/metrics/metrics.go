package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsDecodedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtparse_records_decoded_total",
			Help: "MRT records successfully decoded, by type.",
		},
		[]string{"type"},
	)

	RecordsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtparse_records_delivered_total",
			Help: "Decoded records delivered to a sink, by sink.",
		},
		[]string{"sink"},
	)

	ParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtparse_parse_errors_total",
			Help: "Parse failures by stage and reason.",
		},
		[]string{"stage", "reason"},
	)

	BytesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtparse_bytes_consumed_total",
			Help: "Raw bytes read from the source, including record headers.",
		},
		[]string{"source"},
	)

	DBWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrtparse_db_write_duration_seconds",
			Help:    "Store write latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"table", "op"},
	)

	DBRowsAffectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtparse_db_rows_affected_total",
			Help: "Store rows written.",
		},
		[]string{"table", "op"},
	)

	BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrtparse_batch_size",
			Help:    "Batch sizes flushed to the store.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000, 5000},
		},
		[]string{"table"},
	)

	LastRecordTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mrtparse_last_record_timestamp_seconds",
			Help: "Unix timestamp carried by the last decoded record, by type.",
		},
		[]string{"type"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RecordsDecodedTotal,
			RecordsDeliveredTotal,
			ParseErrorsTotal,
			BytesConsumedTotal,
			DBWriteDuration,
			DBRowsAffectedTotal,
			BatchSize,
			LastRecordTimestamp,
		)
	})
}
