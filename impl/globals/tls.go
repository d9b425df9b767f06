package globals

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"

	"toymanifest/impl/config"
)

const (
	clientAuthNone   = "none"
	clientAuthVerify = "verify"
)

// ParseTls builds the API server TLS configuration from the serverTlsConfig section of
// the configuration. It returns nil when no TLS is configured, in which case the server
// serves plain HTTP. With a cert and key the server does 1-way TLS. With clientAuth
// 'verify' it also requires client certs, verified against the CA file if one is given,
// else against the OS trust store.
func ParseTls() (*tls.Config, error) {
	tlsCfg := config.GetServerTlsCfg()
	clientAuth := strings.ToLower(tlsCfg.ClientAuth)
	switch clientAuth {
	case "", clientAuthNone, clientAuthVerify:
	default:
		return nil, fmt.Errorf("unsupported client auth value %q, expected %q or %q", tlsCfg.ClientAuth, clientAuthNone, clientAuthVerify)
	}
	if tlsCfg.Cert == "" && tlsCfg.Key == "" {
		if clientAuth == clientAuthVerify || tlsCfg.CA != "" {
			return nil, errors.New("client cert verification needs a server cert and key")
		}
		return nil, nil
	}
	if tlsCfg.Cert == "" || tlsCfg.Key == "" {
		return nil, errors.New("server TLS needs both a cert and a key")
	}
	cert, err := tls.LoadX509KeyPair(tlsCfg.Cert, tlsCfg.Key)
	if err != nil {
		return nil, fmt.Errorf("loading server cert: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if clientAuth != clientAuthVerify {
		return cfg, nil
	}
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	if tlsCfg.CA != "" {
		if cfg.ClientCAs, err = loadCAs(tlsCfg.CA); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadCAs reads a PEM bundle into a cert pool
func loadCAs(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("loading CA: %w", err)
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in CA file: %s", caFile)
	}
	return cp, nil
}
