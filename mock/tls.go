package mock

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// CertFiles holds the paths of the PEM files written by WriteCertFiles
type CertFiles struct {
	CA   string
	Cert string
	Key  string
}

// WriteCertFiles generates a throwaway CA and a server certificate signed by it
// for 127.0.0.1, and writes ca.pem, cert.pem and key.pem into the passed directory.
func WriteCertFiles(dir string) (CertFiles, error) {
	ca := newX509("root", true)
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return CertFiles{}, err
	}
	caDer, err := x509.CreateCertificate(rand.Reader, &ca, &ca, &caKey.PublicKey, caKey)
	if err != nil {
		return CertFiles{}, err
	}
	srv := newX509("server", false)
	srvKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return CertFiles{}, err
	}
	srvDer, err := x509.CreateCertificate(rand.Reader, &srv, &ca, &srvKey.PublicKey, caKey)
	if err != nil {
		return CertFiles{}, err
	}
	files := CertFiles{
		CA:   filepath.Join(dir, "ca.pem"),
		Cert: filepath.Join(dir, "cert.pem"),
		Key:  filepath.Join(dir, "key.pem"),
	}
	writes := []struct {
		path  string
		block pem.Block
	}{
		{files.CA, pem.Block{Type: "CERTIFICATE", Bytes: caDer}},
		{files.Cert, pem.Block{Type: "CERTIFICATE", Bytes: srvDer}},
		{files.Key, pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(srvKey)}},
	}
	for _, w := range writes {
		buf := &bytes.Buffer{}
		if err := pem.Encode(buf, &w.block); err != nil {
			return CertFiles{}, err
		}
		if err := os.WriteFile(w.path, buf.Bytes(), 0600); err != nil {
			return CertFiles{}, err
		}
	}
	return files, nil
}

// newX509 returns a new x509 cert template with the passed common name
func newX509(cn string, isCA bool) x509.Certificate {
	keyUsage := x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	if isCA {
		keyUsage |= x509.KeyUsageCertSign
	}
	return x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		IsCA:                  isCA,
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		KeyUsage:              keyUsage,
	}
}
