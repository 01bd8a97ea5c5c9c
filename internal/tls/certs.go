// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

// Package tls loads and generates certificates for the API listener.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// File names used by EnsureSelfSigned.
const (
	SelfSignedCertFile = "self-signed.crt"
	SelfSignedKeyFile  = "self-signed.key"
)

// selfSignedValidity is how long a generated certificate stays valid.
const selfSignedValidity = 365 * 24 * time.Hour

// Certificate is a certificate with its private key.
type Certificate struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// LoadServerTLS builds a server TLS config from a PEM certificate and key.
func LoadServerTLS(certFile, keyFile string) (*cryptotls.Config, error) {
	pair, err := cryptotls.LoadX509KeyPair(filepath.Clean(certFile), filepath.Clean(keyFile))
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").
			With("cert_file", certFile).
			With("key_file", keyFile).
			Wrap(err)
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{pair},
		MinVersion:   cryptotls.VersionTLS12,
	}, nil
}

// GenerateSelfSigned creates a self-signed ECDSA P-256 server certificate.
// Each host becomes an IP or DNS subject alternative name.
func GenerateSelfSigned(hosts []string) (*Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").With("operation", "generate key").Wrap(err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").With("operation", "generate serial").Wrap(err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Thingful"},
			CommonName:   "thingful self-signed",
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").With("operation", "create certificate").Wrap(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Code("TLS_GENERATE_FAILED").With("operation", "parse certificate").Wrap(err)
	}
	return &Certificate{Certificate: cert, PrivateKey: key}, nil
}

// EnsureSelfSigned returns the paths of the self-signed certificate in dir,
// generating one for hosts when neither file exists. When only one of the two
// files exists it returns an error instead of overwriting it.
func EnsureSelfSigned(dir string, hosts []string) (certFile, keyFile string, err error) {
	certFile = filepath.Join(dir, SelfSignedCertFile)
	keyFile = filepath.Join(dir, SelfSignedKeyFile)

	certExists, err := fileExists(certFile)
	if err != nil {
		return "", "", err
	}
	keyExists, err := fileExists(keyFile)
	if err != nil {
		return "", "", err
	}
	switch {
	case certExists && keyExists:
		return certFile, keyFile, nil
	case certExists || keyExists:
		return "", "", oops.Code("TLS_INCOMPLETE_PAIR").
			With("dir", dir).
			Errorf("found only one of %s and %s", SelfSignedCertFile, SelfSignedKeyFile)
	}

	cert, err := GenerateSelfSigned(hosts)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", oops.Code("TLS_SAVE_FAILED").With("dir", dir).Wrap(err)
	}
	if err := saveCert(certFile, cert.Certificate); err != nil {
		return "", "", err
	}
	if err := saveKey(keyFile, cert.PrivateKey); err != nil {
		return "", "", err
	}
	return certFile, keyFile, nil
}

// fileExists treats any stat error other than not-exist as a failure so
// unreadable files are never overwritten.
func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, oops.Code("TLS_STAT_FAILED").With("path", path).Wrap(err)
	}
}

func saveCert(path string, cert *x509.Certificate) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func saveKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return writePEM(path, &pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func writePEM(path string, block *pem.Block) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close() //nolint:errcheck // encode error takes precedence
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
