package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errMalformedToken = errors.New("malformed token")

type v1Payload struct {
	PublicKey string `json:"publickey"`
	Signature string `json:"signature"`
}

type v2Header struct {
	Alg Algorithm `json:"alg"`
	Typ string    `json:"typ,omitempty"`
}

type v2Claims struct {
	HubChallenge string `json:"hub_challenge"`
	Issuer       string `json:"iss"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp,omitempty"`
	Salt         string `json:"salt"`
}

func encodeV2SigningInput(header v2Header, claims v2Claims) (string, error) {
	h, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(h) + "." + base64.RawURLEncoding.EncodeToString(c), nil
}

func decodeV1(body string) (v1Payload, error) {
	raw, err := decodeBase64URL(body)
	if err != nil {
		return v1Payload{}, fmt.Errorf("%w: %w", errMalformedToken, err)
	}

	var p v1Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return v1Payload{}, fmt.Errorf("%w: %w", errMalformedToken, err)
	}
	if p.PublicKey == "" || p.Signature == "" {
		return v1Payload{}, fmt.Errorf("%w: missing publickey or signature", errMalformedToken)
	}

	return p, nil
}

type decodedV2 struct {
	header       v2Header
	claims       v2Claims
	signingInput string
	signature    []byte
}

func decodeV2(body string) (decodedV2, error) {
	parts := strings.Split(body, ".")
	if len(parts) != 3 {
		return decodedV2{}, fmt.Errorf("%w: expected 3 segments, got %d", errMalformedToken, len(parts))
	}

	var d decodedV2

	rawHeader, err := decodeBase64URL(parts[0])
	if err != nil {
		return decodedV2{}, fmt.Errorf("%w: header: %w", errMalformedToken, err)
	}
	if err := json.Unmarshal(rawHeader, &d.header); err != nil {
		return decodedV2{}, fmt.Errorf("%w: header: %w", errMalformedToken, err)
	}

	rawClaims, err := decodeBase64URL(parts[1])
	if err != nil {
		return decodedV2{}, fmt.Errorf("%w: claims: %w", errMalformedToken, err)
	}
	if err := json.Unmarshal(rawClaims, &d.claims); err != nil {
		return decodedV2{}, fmt.Errorf("%w: claims: %w", errMalformedToken, err)
	}

	d.signature, err = decodeBase64URL(parts[2])
	if err != nil {
		return decodedV2{}, fmt.Errorf("%w: signature: %w", errMalformedToken, err)
	}

	d.signingInput = parts[0] + "." + parts[1]
	return d, nil
}

func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
