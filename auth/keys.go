package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
)

// Algorithm names a signature scheme as it appears in v2 token headers.
type Algorithm string

const (
	AlgEdDSA      Algorithm = "EdDSA"
	AlgDilithium3 Algorithm = "Dilithium3"
)

// Key encoding prefixes, e.g. "ed25519:<base64>".
const (
	keyPrefixEd25519    = "ed25519"
	keyPrefixDilithium3 = "dilithium3"
)

var errInvalidKey = errors.New("invalid key")

// PublicKey is a decoded public key for one of the supported algorithms.
type PublicKey struct {
	Alg Algorithm
	Raw []byte
}

// String encodes the key as "<scheme>:<base64>".
func (k PublicKey) String() string {
	return keyPrefix(k.Alg) + ":" + base64.StdEncoding.EncodeToString(k.Raw)
}

// Address returns the namespace address derived from the key.
func (k PublicKey) Address() string {
	return AddressFromPublicKey(k.Raw)
}

// Verify reports whether sig is a valid signature of msg under k.
func (k PublicKey) Verify(msg, sig []byte) bool {
	switch k.Alg {
	case AlgEdDSA:
		if len(k.Raw) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(k.Raw), msg, sig)
	case AlgDilithium3:
		if len(sig) != mode3.SignatureSize {
			return false
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(k.Raw); err != nil {
			return false
		}
		return mode3.Verify(&pk, msg, sig)
	default:
		return false
	}
}

// ParsePublicKey decodes "ed25519:<base64>" or "dilithium3:<base64>".
func ParsePublicKey(s string) (PublicKey, error) {
	scheme, enc, ok := strings.Cut(s, ":")
	if !ok {
		return PublicKey{}, fmt.Errorf("parse public key: %w: missing scheme", errInvalidKey)
	}

	raw, err := decodeBase64(enc)
	if err != nil {
		return PublicKey{}, fmt.Errorf("parse public key: %w: %w", errInvalidKey, err)
	}

	switch scheme {
	case keyPrefixEd25519:
		if len(raw) != ed25519.PublicKeySize {
			return PublicKey{}, fmt.Errorf("parse public key: %w: ed25519 key length %d", errInvalidKey, len(raw))
		}
		return PublicKey{Alg: AlgEdDSA, Raw: raw}, nil
	case keyPrefixDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return PublicKey{}, fmt.Errorf("parse public key: %w: %w", errInvalidKey, err)
		}
		return PublicKey{Alg: AlgDilithium3, Raw: raw}, nil
	default:
		return PublicKey{}, fmt.Errorf("parse public key: %w: unsupported scheme %q", errInvalidKey, scheme)
	}
}

// AddressFromPublicKey derives a namespace address: the base58 encoding of a
// sha2-256 multihash over the raw public key bytes.
func AddressFromPublicKey(raw []byte) string {
	mh, err := multihash.Sum(raw, multihash.SHA2_256, -1)
	if err != nil {
		// Only fails for unknown hash codes.
		panic(err)
	}
	return base58.Encode(mh)
}

// IsDerivedAddress reports whether address decodes to a sha2-256 multihash,
// i.e. whether it could have come from AddressFromPublicKey.
func IsDerivedAddress(address string) bool {
	b, err := base58.Decode(address)
	if err != nil {
		return false
	}
	decoded, err := multihash.Decode(b)
	if err != nil {
		return false
	}
	return decoded.Code == multihash.SHA2_256 && decoded.Length == 32
}

func keyPrefix(alg Algorithm) string {
	switch alg {
	case AlgEdDSA:
		return keyPrefixEd25519
	case AlgDilithium3:
		return keyPrefixDilithium3
	default:
		return strings.ToLower(string(alg))
	}
}

func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
