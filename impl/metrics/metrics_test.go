package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestInitMetrics(t *testing.T) {
	if InitMetrics(0) != nil {
		t.Fatal("expected no server for port zero")
	}
	srv := InitMetrics(9191)
	if srv == nil || srv.Addr != ":9191" {
		t.Fatalf("unexpected server %+v", srv)
	}
	IncManifestPosts()
	AddUploadedBytes(42)
	ObserveRequest(http.MethodGet, http.StatusOK, time.Millisecond)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, expect := range []string{"toymanifest_manifest_posts_total 1", "toymanifest_uploaded_bytes_total 42", "toymanifest_request_duration_seconds"} {
		if !strings.Contains(body, expect) {
			t.Errorf("metrics output does not contain %q", expect)
		}
	}
}
