package security

import (
	"context"
	"crypto"
	cryptorand "crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"strconv"
	"strings"

	"midas/internal/status"
)

// maxClockSkewSeconds bounds how old a signed inbound payload may be. Beyond
// this the payload is rejected regardless of signature validity.
const maxClockSkewSeconds = 120

const timestampHeader = "X-Req-Timestamp"
const signaturePrefix = "Signature "

// rsaScheme signs the serialized payload plus a timestamp with a stored
// private key, and verifies inbound payloads against a stored public key.
type rsaScheme struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

func newRSA(cfg Config) (rsaScheme, error) {
	scheme := rsaScheme{}

	privatePEM, err := cfg.Outbound.credential("private_key")
	if err != nil {
		return scheme, err
	}
	scheme.private, err = parsePrivateKey(privatePEM)
	if err != nil {
		return scheme, err
	}

	// the inbound side is only configured for merchants that call back;
	// Decode reports the gap if it is ever needed.
	publicPEM, err := cfg.Inbound.credential("public_key")
	if err == nil {
		scheme.public, err = parsePublicKey(publicPEM)
		if err != nil {
			return scheme, err
		}
	}

	return scheme, nil
}

func (s rsaScheme) Encode(ctx context.Context, payload map[string]any, opts EncodeOptions) (Encoded, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Encoded{}, status.Wrap(status.KindValidation, err)
	}
	return s.encodeAt(body, now().Unix())
}

func (s rsaScheme) encodeAt(body []byte, timestamp int64) (Encoded, error) {
	ts := strconv.FormatInt(timestamp, 10)
	digest := sha256.Sum256(append(append([]byte{}, body...), []byte(ts)...))

	signature, err := rsa.SignPKCS1v15(cryptorand.Reader, s.private, crypto.SHA256, digest[:])
	if err != nil {
		return Encoded{}, status.Wrap(status.KindConfiguration, err)
	}

	return Encoded{
		Body: body,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": signaturePrefix + base64.StdEncoding.EncodeToString(signature),
			timestampHeader: ts,
		},
	}, nil
}

func (s rsaScheme) Decode(ctx context.Context, headers http.Header, body []byte) (map[string]any, error) {
	if s.public == nil {
		return nil, status.Errorf(
			status.KindConfiguration,
			"no public key configured for inbound verification",
		)
	}

	ts := headers.Get(timestampHeader)
	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, status.Errorf(status.KindValidation, "missing or malformed timestamp header")
	}
	if now().Unix()-timestamp > maxClockSkewSeconds {
		return nil, status.Errorf(
			status.KindValidation,
			"signed payload timestamp is older than %ds", maxClockSkewSeconds,
		)
	}

	authorization := headers.Get("Authorization")
	if !strings.HasPrefix(authorization, signaturePrefix) {
		return nil, status.Errorf(status.KindValidation, "missing signature header")
	}
	signature, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authorization, signaturePrefix))
	if err != nil {
		return nil, status.Wrap(status.KindValidation, err)
	}

	digest := sha256.Sum256(append(append([]byte{}, body...), []byte(ts)...))
	err = rsa.VerifyPKCS1v15(s.public, crypto.SHA256, digest[:], signature)
	if err != nil {
		return nil, status.Errorf(status.KindValidation, "signature verification failed")
	}

	return decodeJSONBody(body)
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, status.Errorf(status.KindConfiguration, "private key is not valid PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, status.Wrap(status.KindConfiguration, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, status.Errorf(status.KindConfiguration, "private key is not an RSA key")
	}
	return key, nil
}

func parsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, status.Errorf(status.KindConfiguration, "public key is not valid PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, status.Wrap(status.KindConfiguration, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, status.Errorf(status.KindConfiguration, "public key is not an RSA key")
	}
	return key, nil
}
