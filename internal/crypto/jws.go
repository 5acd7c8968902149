package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
)

// JWS is a JSON-serialized signature with an embedded payload. Manifests
// are signed detached: the payload here duplicates the manifest bytes so a
// verifier can cross-check both.
type JWS struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// SignDetachedJWS signs the payload with an RSA private key (RS256).
func SignDetachedJWS(payload []byte, privateKeyPEM []byte) (JWS, error) {
	hdr := map[string]any{
		"alg": "RS256",
		"typ": "JWT",
	}
	hb, _ := json.Marshal(hdr)
	protected := base64.RawURLEncoding.EncodeToString(hb)
	pl := base64.RawURLEncoding.EncodeToString(payload)

	priv, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return JWS{}, err
	}

	signingInput := protected + "." + pl
	h := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, h[:])
	if err != nil {
		return JWS{}, err
	}

	return JWS{
		Protected: protected,
		Payload:   pl,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
	}, nil
}

// ParseDetachedJWS decodes the JSON serialization produced by
// SignDetachedJWS.
func ParseDetachedJWS(data []byte) (JWS, error) {
	var jws JWS
	if err := json.Unmarshal(data, &jws); err != nil {
		return JWS{}, err
	}
	if jws.Protected == "" || jws.Signature == "" {
		return JWS{}, errors.New("jws missing protected header or signature")
	}
	return jws, nil
}

// VerifyDetachedJWS checks the signature against the certificate's public
// key and confirms the embedded payload matches the supplied bytes.
func VerifyDetachedJWS(payload []byte, jws JWS, certPEM []byte) error {
	embedded, err := base64.RawURLEncoding.DecodeString(jws.Payload)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if string(embedded) != string(payload) {
		return errors.New("payload does not match signed content")
	}
	sig, err := base64.RawURLEncoding.DecodeString(jws.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	pub, err := parseCertificateRSAKey(certPEM)
	if err != nil {
		return err
	}
	signingInput := jws.Protected + "." + jws.Payload
	h := sha256.Sum256([]byte(signingInput))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func parseCertificateRSAKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate key is not RSA")
	}
	return pub, nil
}
