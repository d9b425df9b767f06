package globals

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

func TestXlatLogLevel(t *testing.T) {
	tests := []struct {
		strLevel string
		logLevel log.Level
	}{
		{"DEBUG", log.DebugLevel},
		{"info", log.InfoLevel},
		{"WARN", log.WarnLevel},
		{"TRACE", log.TraceLevel},
		{"ERROR", log.ErrorLevel},
		{"ANYTHING-ELSE", log.FatalLevel},
	}
	for _, lvlTest := range tests {
		if xlatLogLevel(lvlTest.strLevel) != lvlTest.logLevel {
			t.FailNow()
		}
	}
}

func TestFileLogging(t *testing.T) {
	td, err := os.MkdirTemp("", "")
	if err != nil {
		t.FailNow()
	}
	defer os.RemoveAll(td)
	defer log.SetOutput(os.Stderr)
	logfile := filepath.Join(td, "logfile")
	ConfigureLogging("DEBUG", logfile)
	log.Debug("TEST")
	expectedText := "level=debug msg=TEST"
	content, err := os.ReadFile(logfile)
	if err != nil {
		t.FailNow()
	}
	if !strings.Contains(string(content), expectedText) {
		t.FailNow()
	}
}

// Tests that digests are shortened and that the probes are not logged
func TestEchoLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	defer log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)

	e := echo.New()
	e.Use(GetEchoLoggingFunc())
	e.GET("/layer/:digest", func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	})
	e.GET("/livez", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	dgst := "sha256:9834876dcfb05cb167a5c24953eba58c4ac89b1adf57f28f2f9d09af107ee8f0"
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/layer/"+dgst, nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))

	out := buf.String()
	if !strings.Contains(out, "/layer/sha256:9834876dcf ") || strings.Contains(out, dgst) {
		t.Fatalf("expected shortened digest in %q", out)
	}
	if !strings.Contains(out, "status=404") || !strings.Contains(out, "level=warning") {
		t.Fatalf("expected a warning for the 404 in %q", out)
	}
	if strings.Contains(out, "/livez") {
		t.Fatalf("probe should not be logged: %q", out)
	}
}
