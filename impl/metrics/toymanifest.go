package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// These are the metrics functions exposed by the package. By default they are all
// NOP functions to minimize overhead when metrics are not enabled. The 'addToymanifestMetrics'
// function initializes these with functions having implementations if metrics are
// enabled.

var IncManifestPosts noLabel = func() {}
var IncManifestGets noLabel = func() {}
var IncLayerGets noLabel = func() {}
var IncLayerUploads noLabel = func() {}
var AddUploadedBytes delta = func(float64) {}
var IncValidationFailures noLabel = func() {}
var IncApiErrorResults noLabel = func() {}
var ObserveRequest request = func(string, int, time.Duration) {}

type noLabel func()
type delta func(float64)
type request func(method string, code int, elapsed time.Duration)

const (
	namespace                 = "toymanifest"
	manifest_posts_total      = "manifest_posts_total"
	manifest_gets_total       = "manifest_gets_total"
	layer_gets_total          = "layer_gets_total"
	layer_uploads_total       = "layer_uploads_total"
	uploaded_bytes_total      = "uploaded_bytes_total"
	validation_failures_total = "validation_failures_total"
	api_errors_total          = "api_errors_total"
	request_duration_seconds  = "request_duration_seconds"
	method_label              = "method"
	code_label                = "code"
)

// Prometheus metrics objects

var manifestPostsTotal prometheus.Counter
var manifestGetsTotal prometheus.Counter
var layerGetsTotal prometheus.Counter
var layerUploadsTotal prometheus.Counter
var uploadedBytesTotal prometheus.Counter
var validationFailuresTotal prometheus.Counter
var apiErrorsTotal prometheus.Counter
var requestDuration *prometheus.HistogramVec

// addToymanifestMetrics creates all the toymanifest metrics and registers them with the
// prometheus library. It also assigns a function to actually implement the metric.
// Unless this function is called, all the metric functions exposed by the package
// will be NOP functions.
func addToymanifestMetrics() {
	manifestPostsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:      manifest_posts_total,
			Namespace: namespace,
			Help:      "Total count of manifest uploads",
		},
	)
	IncManifestPosts = func() {
		manifestPostsTotal.Add(1)
	}

	///
	manifestGetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:      manifest_gets_total,
			Namespace: namespace,
			Help:      "Total count of manifest lookups by config digest",
		},
	)
	IncManifestGets = func() {
		manifestGetsTotal.Add(1)
	}

	///
	layerGetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:      layer_gets_total,
			Namespace: namespace,
			Help:      "Total count of layer lookups by digest",
		},
	)
	IncLayerGets = func() {
		layerGetsTotal.Add(1)
	}

	///
	layerUploadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:      layer_uploads_total,
			Namespace: namespace,
			Help:      "Total count of layer blobs stored, standalone or with a manifest",
		},
	)
	IncLayerUploads = func() {
		layerUploadsTotal.Add(1)
	}

	///
	uploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:      uploaded_bytes_total,
			Namespace: namespace,
			Help:      "Total layer blob bytes received",
		},
	)
	AddUploadedBytes = func(delta float64) {
		uploadedBytesTotal.Add(delta)
	}

	///
	validationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:      validation_failures_total,
			Namespace: namespace,
			Help:      "Total count of manifests or blobs rejected by validation",
		},
	)
	IncValidationFailures = func() {
		validationFailuresTotal.Add(1)
	}

	///
	apiErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name:      api_errors_total,
			Namespace: namespace,
			Help:      "Total calls to the api that resulted in errors (bad request, not found, internal server error)",
		},
	)
	IncApiErrorResults = func() {
		apiErrorsTotal.Add(1)
	}

	///
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      request_duration_seconds,
			Namespace: namespace,
			Help:      "HTTP requests by method and response code, in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.100, 0.5, 1, 5, 30, 120},
		},
		[]string{method_label, code_label},
	)
	ObserveRequest = func(method string, code int, elapsed time.Duration) {
		requestDuration.With(prometheus.Labels{method_label: method, code_label: strconv.Itoa(code)}).Observe(elapsed.Seconds())
	}
}
