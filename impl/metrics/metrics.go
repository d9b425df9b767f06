package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InitMetrics initializes metrics. If the passed port is zero, no action is taken and nil
// is returned. Otherwise, the function creates all the toymanifest metrics, registers them
// with the default registry (which also carries the go runtime and process collectors), and
// returns an HTTP server that serves them at the passed port under the '/metrics' path. The
// caller starts and stops the server.
func InitMetrics(port int) *http.Server {
	if port == 0 {
		return nil
	}
	addToymanifestMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
}
