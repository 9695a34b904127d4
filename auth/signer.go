package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/google/uuid"
)

// ErrUnsupportedVersion is returned by Signer.Token for versions it cannot produce.
var ErrUnsupportedVersion = errors.New("unsupported token version")

// TokenOptions tune a v2 token. Zero values pick defaults.
type TokenOptions struct {
	IssuedAt  time.Time // default: now
	ExpiresAt time.Time // zero: no expiry
	Salt      string    // default: random UUID
}

// Signer holds a private key and produces tokens for its address.
type Signer struct {
	alg Algorithm
	ed  ed25519.PrivateKey
	dil *mode3.PrivateKey
	pub PublicKey
}

// NewEd25519Signer generates a new ed25519 key from rand.
func NewEd25519Signer(rand io.Reader) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Signer{alg: AlgEdDSA, ed: priv, pub: PublicKey{Alg: AlgEdDSA, Raw: pub}}, nil
}

// NewDilithium3Signer generates a new Dilithium3 key from rand.
func NewDilithium3Signer(rand io.Reader) (*Signer, error) {
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("generate dilithium3 key: %w", err)
	}
	raw, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal dilithium3 public key: %w", err)
	}
	return &Signer{alg: AlgDilithium3, dil: priv, pub: PublicKey{Alg: AlgDilithium3, Raw: raw}}, nil
}

// ParsePrivateKey decodes a key produced by Signer.PrivateKey:
// "ed25519:<base64 seed>" or "dilithium3:<base64>".
func ParsePrivateKey(s string) (*Signer, error) {
	scheme, enc, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, fmt.Errorf("parse private key: %w: missing scheme", errInvalidKey)
	}

	raw, err := decodeBase64(enc)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w: %w", errInvalidKey, err)
	}

	switch scheme {
	case keyPrefixEd25519:
		var priv ed25519.PrivateKey
		switch len(raw) {
		case ed25519.SeedSize:
			priv = ed25519.NewKeyFromSeed(raw)
		case ed25519.PrivateKeySize:
			priv = ed25519.PrivateKey(raw)
		default:
			return nil, fmt.Errorf("parse private key: %w: ed25519 key length %d", errInvalidKey, len(raw))
		}
		pub := priv.Public().(ed25519.PublicKey)
		return &Signer{alg: AlgEdDSA, ed: priv, pub: PublicKey{Alg: AlgEdDSA, Raw: pub}}, nil
	case keyPrefixDilithium3:
		var priv mode3.PrivateKey
		if err := priv.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("parse private key: %w: %w", errInvalidKey, err)
		}
		pk, ok := priv.Public().(*mode3.PublicKey)
		if !ok {
			return nil, fmt.Errorf("parse private key: %w: unexpected public key type", errInvalidKey)
		}
		pubRaw, err := pk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return &Signer{alg: AlgDilithium3, dil: &priv, pub: PublicKey{Alg: AlgDilithium3, Raw: pubRaw}}, nil
	default:
		return nil, fmt.Errorf("parse private key: %w: unsupported scheme %q", errInvalidKey, scheme)
	}
}

// Algorithm returns the signature scheme of the key.
func (s *Signer) Algorithm() Algorithm { return s.alg }

// PublicKey returns the public half of the key.
func (s *Signer) PublicKey() PublicKey { return s.pub }

// Address returns the namespace address this key controls.
func (s *Signer) Address() string { return s.pub.Address() }

// PrivateKey encodes the private key for storage. Treat the result as a secret.
func (s *Signer) PrivateKey() (string, error) {
	switch s.alg {
	case AlgEdDSA:
		return keyPrefixEd25519 + ":" + base64.StdEncoding.EncodeToString(s.ed.Seed()), nil
	case AlgDilithium3:
		raw, err := s.dil.MarshalBinary()
		if err != nil {
			return "", fmt.Errorf("marshal dilithium3 private key: %w", err)
		}
		return keyPrefixDilithium3 + ":" + base64.StdEncoding.EncodeToString(raw), nil
	default:
		return "", fmt.Errorf("marshal private key: %w", errInvalidKey)
	}
}

// Sign signs msg directly.
func (s *Signer) Sign(msg []byte) []byte {
	switch s.alg {
	case AlgDilithium3:
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(s.dil, msg, sig)
		return sig
	default:
		return ed25519.Sign(s.ed, msg)
	}
}

// Token produces a token of the given version over challengeText.
func (s *Signer) Token(version Version, challengeText string, opts TokenOptions) (string, error) {
	switch version {
	case V1:
		return s.tokenV1(challengeText)
	case V2:
		return s.tokenV2(challengeText, opts)
	default:
		return "", fmt.Errorf("token %q: %w", version, ErrUnsupportedVersion)
	}
}

func (s *Signer) tokenV1(challengeText string) (string, error) {
	if s.alg != AlgEdDSA {
		return "", fmt.Errorf("token v1 with %s: %w", s.alg, ErrUnsupportedVersion)
	}

	digest := sha256.Sum256([]byte(challengeText))
	payload := v1Payload{
		PublicKey: base64.StdEncoding.EncodeToString(s.pub.Raw),
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(s.ed, digest[:])),
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("token v1: %w", err)
	}

	return string(V1) + ":" + base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Signer) tokenV2(challengeText string, opts TokenOptions) (string, error) {
	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	salt := opts.Salt
	if salt == "" {
		salt = uuid.NewString()
	}

	claims := v2Claims{
		HubChallenge: challengeText,
		Issuer:       s.pub.String(),
		IssuedAt:     issuedAt.Unix(),
		Salt:         salt,
	}
	if !opts.ExpiresAt.IsZero() {
		claims.ExpiresAt = opts.ExpiresAt.Unix()
	}

	signingInput, err := encodeV2SigningInput(v2Header{Alg: s.alg, Typ: "JWT"}, claims)
	if err != nil {
		return "", fmt.Errorf("token v2: %w", err)
	}

	sig := base64.RawURLEncoding.EncodeToString(s.Sign([]byte(signingInput)))
	return string(V2) + ":" + signingInput + "." + sig, nil
}
