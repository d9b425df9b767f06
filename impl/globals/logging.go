package globals

import (
	"os"
	"regexp"
	"strings"
	"time"

	"toymanifest/impl/metrics"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const msg = "echo server %s:%s status=%d latency=%s host=%s ip=%s"
const srch = `.*sha(?:256|512):([a-f0-9]{64,128}).*`

var re = regexp.MustCompile(srch)

// ConfigureLogging sets the logger level and, if a log file is passed, directs
// log output to that file. If the file can't be opened the logger keeps writing
// to stderr and the failure is logged.
func ConfigureLogging(level string, logFile string) {
	log.SetLevel(xlatLogLevel(level))
	log.SetFormatter(&log.TextFormatter{})
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Errorf("unable to open log file %s, logging to stderr: %s", logFile, err)
			return
		}
		log.SetOutput(f)
	}
}

// xlatLogLevel translates the passed 'level' string to a logger const
func xlatLogLevel(level string) log.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return log.DebugLevel
	case "INFO":
		return log.InfoLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	case "TRACE":
		return log.TraceLevel
	}
	return log.FatalLevel
}

// GetEchoLoggingFunc gets the API server logging function. It also records the
// request duration metric.
func GetEchoLoggingFunc() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			elapsed := time.Since(start)
			metrics.ObserveRequest(req.Method, res.Status, elapsed)

			// the probes are hit constantly by the orchestrator so don't log them
			if probes[req.URL.Path] {
				return nil
			}

			// digests clutter the logs so shorten them
			uri := req.RequestURI
			dgst := re.FindStringSubmatch(uri)
			if len(dgst) == 2 {
				uri = strings.Replace(uri, dgst[1], dgst[1][:10], 1)
			}

			flds := make([]interface{}, 6)
			flds[0] = req.Method
			flds[1] = uri
			flds[2] = res.Status
			flds[3] = elapsed
			flds[4] = req.Host
			flds[5] = c.RealIP()

			switch {
			case res.Status >= 500:
				log.Errorf(msg, flds...)
			case res.Status >= 400:
				log.Warnf(msg, flds...)
			default:
				log.Infof(msg, flds...)
			}
			return nil
		}
	}
}
