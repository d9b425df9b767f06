package subcmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"toymanifest/api"
	"toymanifest/impl"
	"toymanifest/impl/blobs"
	"toymanifest/impl/config"
	"toymanifest/impl/globals"
	"toymanifest/impl/importer"
	"toymanifest/impl/metrics"
	"toymanifest/impl/store"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/labstack/echo/v4"
	gommonlog "github.com/labstack/gommon/log"
	middleware "github.com/oapi-codegen/echo-middleware"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const startupBanner = `----------------------------------------------------------------------
Toymanifest: content addressed OCI manifest and layer store
Version: %s, build date: %s
Started: %s (port %d)
Running as (uid:gid) %d:%d
Process id: %d
Store: %s, data path: %s
Tls: %s
Command line: %v
----------------------------------------------------------------------
`

// partitionInterval is how often the server tops up the partition window
var partitionInterval = 24 * time.Hour

// shutdownTimeout bounds the graceful shutdown of the servers
const shutdownTimeout = 10 * time.Second

var (
	mu sync.Mutex
	// listener will be initialized with the Echo listener address once the Echo
	// server is started.
	listener net.Addr
	// stopServer cancels the context of the running server
	stopServer context.CancelFunc
)

// Serve runs the manifest server, blocking until the passed context is cancelled (e.g. by
// CTRL-C) or one of the server components fails. The API server, the partition maintainer,
// the optional drop directory importer and the optional metrics server all run in one
// errgroup: the first to fail stops the rest.
func Serve(ctx context.Context, buildVer string, buildDtm string) error {
	tlsCfg, err := globals.ParseTls()
	if err != nil {
		return fmt.Errorf("error parsing TLS configuration: %s", err)
	}
	swagger, err := api.GetSwagger()
	if err != nil {
		return fmt.Errorf("error loading swagger spec: %s", err)
	}

	// clear out the servers array in the swagger spec, that skips validating
	// that server names match. We don't know how this thing will be run.
	swagger.Servers = nil

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	setStop(cancel)

	st, err := store.Open(ctx, config.GetStoreType(), config.GetDataPath(), int(config.GetPartitionHorizon()))
	if err != nil {
		return fmt.Errorf("error opening the manifest store: %s", err)
	}
	defer st.Close()
	if _, err := st.EnsurePartitions(ctx, time.Now()); err != nil {
		return fmt.Errorf("error creating partitions: %s", err)
	}
	bs, err := blobs.New(config.GetDataPath(), int(config.GetChunkSize()))
	if err != nil {
		return fmt.Errorf("error initializing the blob store: %s", err)
	}

	// Echo router
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if strings.ToLower(config.GetLogLevel()) == "debug" {
		e.Logger.SetLevel(gommonlog.DEBUG)
	} else {
		e.Logger.SetLevel(gommonlog.ERROR)
	}

	// Use our validation middleware to check all requests against the OpenAPI schema. Bodies are
	// streamed by the handlers so only the paths and params are validated here.
	e.Use(middleware.OapiRequestValidatorWithOptions(swagger, &middleware.Options{
		Options: openapi3filter.Options{
			ExcludeRequestBody: true,
		},
	}))

	api.RegisterHandlers(e, impl.NewManifestService(st, bs))

	e.Use(globals.GetEchoLoggingFunc())

	fmt.Fprintf(os.Stderr, startupBanner, buildVer, buildDtm, time.Unix(0, time.Now().UnixNano()), config.GetPort(),
		os.Getuid(), os.Getgid(), os.Getpid(), config.GetStoreType(), config.GetDataPath(), tlsMsg(), strings.Join(os.Args, " "))

	g, gctx := errgroup.WithContext(ctx)

	// start the API server
	g.Go(func() error {
		addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(int(config.GetPort())))
		var err error
		if tlsCfg != nil {
			// use the echo TLS server so that e.Shutdown stops it
			e.TLSServer.Addr = addr
			e.TLSServer.TLSConfig = tlsCfg
			err = e.StartServer(e.TLSServer)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	metricsSrv := metrics.InitMetrics(int(config.GetMetrics()))
	if metricsSrv != nil {
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		maintainPartitions(gctx, st)
		return nil
	})

	if config.GetImportPath() != "" {
		g.Go(func() error {
			return importer.Importer(gctx, config.GetImportPath(), st)
		})
	}

	// stop the servers once anything fails or the caller cancels
	g.Go(func() error {
		<-gctx.Done()
		log.Infof("stopping")
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := e.Shutdown(sctx); err != nil {
			log.Errorf("error shutting down the api server: %s", err)
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(sctx); err != nil {
				log.Errorf("error shutting down the metrics server: %s", err)
			}
		}
		return nil
	})

	if addr, err := waitForEchoListener(gctx, e); err == nil {
		setListener(addr)
		log.Info("server is running")
	}

	err = g.Wait()
	log.Infof("stopped")
	return err
}

// maintainPartitions keeps the partition window topped up so inserts keep finding a
// partition as the weeks roll over.
func maintainPartitions(ctx context.Context, pm store.PartitionManager) {
	ticker := time.NewTicker(partitionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if created, err := pm.EnsurePartitions(ctx, time.Now()); err != nil {
				log.Errorf("error creating partitions: %s", err)
			} else if len(created) != 0 {
				log.Infof("created %d partition(s) starting with %s", len(created), created[0].Name)
			}
		}
	}
}

// tlsMsg formats the server TLS configuration for the startup banner
func tlsMsg() string {
	msg := "none"
	tlsCfg := config.GetServerTlsCfg()
	if tlsCfg.Cert != "" && tlsCfg.Key != "" {
		msg = fmt.Sprintf("cert=%s, key=%s", tlsCfg.Cert, tlsCfg.Key)
	}
	if tlsCfg.CA != "" {
		msg = fmt.Sprintf("%s, ca=%s", msg, tlsCfg.CA)
	}
	if msg != "none" {
		return fmt.Sprintf("%s, client verify=%s", msg, tlsCfg.ClientAuth)
	}
	return "none"
}

// waitForEchoListener waits for the Listener in the Echo server to be initialized. This
// is only used in unit testing so that the unit tests can start the server on ":0" and let
// the http package assign a random port number.
func waitForEchoListener(ctx context.Context, e *echo.Echo) (net.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			if addr := e.ListenerAddr(); addr != nil {
				return addr, nil
			}
			if addr := e.TLSListenerAddr(); addr != nil {
				return addr, nil
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func setStop(cancel context.CancelFunc) {
	mu.Lock()
	defer mu.Unlock()
	stopServer = cancel
}

func setListener(addr net.Addr) {
	mu.Lock()
	defer mu.Unlock()
	listener = addr
}

// GetListener supports unit testing.
func GetListener() net.Addr {
	mu.Lock()
	defer mu.Unlock()
	return listener
}

// InitListener supports unit testing.
func InitListener() {
	mu.Lock()
	defer mu.Unlock()
	listener = nil
}

// Stop stops a running server. Supports unit testing.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if stopServer != nil {
		stopServer()
	}
}
