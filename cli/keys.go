package cli

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// LoadCertificateAndKey reads a PEM or DER certificate and a PEM private key in
// PKCS#8, PKCS#1 or SEC 1 form.
func LoadCertificateAndKey(certPath, keyPath string) (*x509.Certificate, crypto.Signer, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, err
	}

	var cert *x509.Certificate
	if certBlock, _ := pem.Decode(certData); certBlock != nil {
		cert, err = x509.ParseCertificate(certBlock.Bytes)
	} else if len(certData) > 0 {
		// Try DER
		cert, err = x509.ParseCertificate(certData)
	} else {
		err = errors.New("certificate data is empty")
	}
	if err != nil {
		return nil, nil, err
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, err
	}
	keyBlock, _ := pem.Decode(keyData)
	if keyBlock == nil {
		return nil, nil, errors.New("failed to parse PEM block containing the private key")
	}

	pkey, err := parsePrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, err
	}
	return cert, pkey, nil
}

func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type %T", key)
		}
		return signer, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("unsupported private key encoding")
}

// LoadRoots reads a PEM bundle of trusted certificates.
func LoadRoots(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
