package evidence

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidSigningCertificate   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 12}
	oidSigningCertificateV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}
	oidTimeStampToken       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}
)

var hashOIDs = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA1:   pkcs7.OIDDigestAlgorithmSHA1,
	crypto.SHA256: pkcs7.OIDDigestAlgorithmSHA256,
	crypto.SHA384: pkcs7.OIDDigestAlgorithmSHA384,
	crypto.SHA512: pkcs7.OIDDigestAlgorithmSHA512,
}

// TSA is an RFC 3161 Time-Stamp Authority.
type TSA struct {
	URL      string
	Username string
	Password string
}

// SignOptions configure Sign.
type SignOptions struct {
	// Digest is the message digest algorithm. Zero selects crypto.SHA256.
	Digest crypto.Hash

	// Chain holds intermediate certificates to embed, leaf excluded.
	Chain []*x509.Certificate

	// TSA, when its URL is set, timestamps the signature.
	TSA TSA

	// HTTPClient is used for the TSA request. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// Sign signs the report with a detached PKCS#7 signature and returns the bundle.
func Sign(ctx context.Context, report *Report, signer crypto.Signer, cert *x509.Certificate, opts *SignOptions) (*Bundle, error) {
	if report == nil {
		return nil, errors.New("evidence: nil report")
	}
	if err := checkSignerCertificate(signer, cert); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &SignOptions{}
	}
	digest := opts.Digest
	if digest == 0 {
		digest = crypto.SHA256
	}
	digestOID, ok := hashOIDs[digest]
	if !ok {
		return nil, fmt.Errorf("evidence: unsupported digest algorithm %s", digest)
	}

	content, err := report.Marshal()
	if err != nil {
		return nil, fmt.Errorf("evidence: marshal report: %w", err)
	}

	signedData, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, fmt.Errorf("new signed data: %w", err)
	}
	signedData.SetDigestAlgorithm(digestOID)

	signingCertificate, err := signingCertificateAttribute(cert, digest)
	if err != nil {
		return nil, fmt.Errorf("signing certificate attribute: %w", err)
	}
	signerConfig := pkcs7.SignerInfoConfig{
		ExtraSignedAttributes: []pkcs7.Attribute{*signingCertificate},
	}
	if err := signedData.AddSignerChain(cert, signer, opts.Chain, signerConfig); err != nil {
		return nil, fmt.Errorf("add signer chain: %w", err)
	}
	signedData.Detach()

	if opts.TSA.URL != "" {
		signatureData := signedData.GetSignedData()

		response, err := requestTimestamp(ctx, opts, signatureData.SignerInfos[0].EncryptedDigest)
		if err != nil {
			return nil, fmt.Errorf("get timestamp: %w", err)
		}
		ts, err := timestamp.ParseResponse(response)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		if _, err := pkcs7.Parse(ts.RawToken); err != nil {
			return nil, fmt.Errorf("parse timestamp token: %w", err)
		}

		attribute := pkcs7.Attribute{
			Type:  oidTimeStampToken,
			Value: asn1.RawValue{FullBytes: ts.RawToken},
		}
		if err := signatureData.SignerInfos[0].SetUnauthenticatedAttributes([]pkcs7.Attribute{attribute}); err != nil {
			return nil, err
		}
	}

	signature, err := signedData.Finish()
	if err != nil {
		return nil, fmt.Errorf("finish signature: %w", err)
	}
	return &Bundle{Report: content, Signature: signature}, nil
}

// signingCertificateAttribute binds the signer certificate to the signature
// (ESS signing-certificate, RFC 5035).
func signingCertificateAttribute(cert *x509.Certificate, digest crypto.Hash) (*pkcs7.Attribute, error) {
	h := digest.New()
	h.Write(cert.Raw)

	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // SigningCertificate
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // []ESSCertID, []ESSCertIDv2
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // ESSCertID, ESSCertIDv2
				if digest != crypto.SHA1 && digest != crypto.SHA256 { // default SHA-256
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // AlgorithmIdentifier
						b.AddASN1ObjectIdentifier(hashOIDs[digest])
					})
				}
				b.AddASN1OctetString(h.Sum(nil)) // certHash
			})
		})
	})

	sse, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	attr := pkcs7.Attribute{
		Type:  oidSigningCertificateV2,
		Value: asn1.RawValue{FullBytes: sse},
	}
	if digest == crypto.SHA1 {
		attr.Type = oidSigningCertificate
	}
	return &attr, nil
}

func requestTimestamp(ctx context.Context, opts *SignOptions, content []byte) ([]byte, error) {
	request, err := timestamp.CreateRequest(bytes.NewReader(content), &timestamp.RequestOptions{
		Certificates: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.TSA.URL, bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare request (%s): %w", opts.TSA.URL, err)
	}
	req.Header.Add("Content-Type", "application/timestamp-query")
	req.Header.Add("Content-Transfer-Encoding", "binary")
	if opts.TSA.Username != "" && opts.TSA.Password != "" {
		req.SetBasicAuth(opts.TSA.Username, opts.TSA.Password)
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tsa request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.New("non success response (" + strconv.Itoa(resp.StatusCode) + "): " + string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
