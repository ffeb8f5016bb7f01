package stationmqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// NewTLSConfig builds the TLS client config the publisher dials with: the
// broker's certificate chain must verify against caPEM, but the broker is
// commonly addressed by IP or a name the cert wasn't issued for inside a
// fleet's private network, so hostname/CommonName matching is skipped
// (spec §4.4). No example in the pack builds this exact split — the
// nearest relative, camtjohn-Connected_Devices_Server's
// internal/messaging/mqtt.go, deliberately keeps hostname/SAN
// enforcement ("enforce CN/SAN match") because it dials a fixed
// hostname rather than per-station IPs, so its tls.Config is not a
// fit here. This config instead relies directly on Go's own
// InsecureSkipVerify + VerifyPeerCertificate mechanism, which is the
// documented way to keep chain verification while dropping hostname
// matching.
//
// InsecureSkipVerify only disables Go's built-in hostname check; the
// chain is still verified explicitly in VerifyPeerCertificate below, so
// an untrusted or expired broker certificate is still rejected.
func NewTLSConfig(caPEM []byte) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.New("stationmqtt: no certificates found in CA bundle")
	}

	return &tls.Config{
		RootCAs:               pool,
		MinVersion:            tls.VersionTLS12,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyChainIgnoringName(pool),
	}, nil
}

func verifyChainIgnoringName(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("stationmqtt: broker presented no certificate")
		}

		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("stationmqtt: parse broker certificate: %w", err)
		}

		intermediates := x509.NewCertPool()
		for _, raw := range rawCerts[1:] {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("stationmqtt: parse intermediate certificate: %w", err)
			}
			intermediates.AddCert(cert)
		}

		_, err = leaf.Verify(x509.VerifyOptions{
			Roots:         pool,
			Intermediates: intermediates,
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		})
		if err != nil {
			return fmt.Errorf("stationmqtt: broker certificate chain did not verify: %w", err)
		}
		return nil
	}
}
