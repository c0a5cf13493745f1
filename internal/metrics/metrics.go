package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PackagesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parceltrack_packages_created_total",
		Help: "Total number of packages successfully created.",
	})

	PackagesUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parceltrack_packages_updated_total",
		Help: "Total number of packages successfully updated.",
	})

	ImagesUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parceltrack_images_uploaded_total",
		Help: "Total number of package photos stored.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parceltrack_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	StoredPackages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parceltrack_stored_packages",
		Help: "Number of packages in the store after the last load or save.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parceltrack_http_request_duration_seconds",
		Help:    "Duration of HTTP requests by route and status code.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"method", "route", "code"},
	)

	AuditEntriesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parceltrack_audit_entries_dropped_total",
		Help: "Audit entries that could not be published to the event stream.",
	})
)
