package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagarc03/hubstore"
)

var (
	errAddressMismatch   = errors.New("public key does not match address")
	errChallengeMismatch = errors.New("challenge text mismatch")
	errBadSignature      = errors.New("signature verification failed")
	errExpired           = errors.New("token expired")
	errNotYetValid       = errors.New("token issued in the future")
	errTooOld            = errors.New("token issued before oldest valid timestamp")
	errUnknownVersion    = errors.New("unknown token version")
)

// DefaultClockSkew is the tolerance for iat values ahead of the hub clock.
const DefaultClockSkew = 5 * time.Minute

// Config configures a Verifier.
type Config struct {
	// ChallengeText is the text tokens must be signed over. Required.
	ChallengeText string
	// ValidSince rejects v2 tokens issued before this time. Zero accepts any.
	ValidSince time.Time
	// ClockSkew tolerates iat values slightly ahead of the hub clock.
	ClockSkew time.Duration
	// DisableV1 rejects legacy v1 tokens.
	DisableV1 bool
	Logger    *slog.Logger
	Now       func() time.Time
}

type strategy func(body, address string) error

// Verifier checks tokens against a fixed challenge text.
// It implements hubstore.Authenticator.
type Verifier struct {
	challenge  string
	validSince time.Time
	skew       time.Duration
	logger     *slog.Logger
	now        func() time.Time
	strategies map[Version]strategy
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.ChallengeText == "" {
		return nil, fmt.Errorf("new verifier: %w: challenge text is required", hubstore.ErrConfig)
	}

	v := &Verifier{
		challenge:  cfg.ChallengeText,
		validSince: cfg.ValidSince,
		skew:       cfg.ClockSkew,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if v.skew <= 0 {
		v.skew = DefaultClockSkew
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	if v.now == nil {
		v.now = time.Now
	}

	v.strategies = map[Version]strategy{
		V2: v.verifyV2,
	}
	if !cfg.DisableV1 {
		v.strategies[V1] = v.verifyV1
	}

	return v, nil
}

// ChallengeText returns the text clients must sign.
func (v *Verifier) ChallengeText() string { return v.challenge }

// LatestVersion returns the newest token version accepted.
func (v *Verifier) LatestVersion() string { return string(LatestVersion) }

// Verify checks that token proves control of address.
// Any failure returns hubstore.ErrValidation; the cause is logged at debug level.
func (v *Verifier) Verify(token, address string) error {
	if err := v.verify(token, address); err != nil {
		v.logger.Debug("token rejected", "address", address, "reason", err)
		return hubstore.ErrValidation
	}
	return nil
}

func (v *Verifier) verify(token, address string) error {
	version, body, ok := ParseVersion(token)
	if !ok {
		return errMalformedToken
	}

	verify, ok := v.strategies[version]
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownVersion, version)
	}

	return verify(body, address)
}

func (v *Verifier) verifyV1(body, address string) error {
	payload, err := decodeV1(body)
	if err != nil {
		return err
	}

	pubRaw, err := decodeBase64(payload.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", errMalformedToken, err)
	}
	sig, err := decodeBase64(payload.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature: %w", errMalformedToken, err)
	}

	pub := PublicKey{Alg: AlgEdDSA, Raw: pubRaw}
	if pub.Address() != address {
		return errAddressMismatch
	}

	digest := sha256.Sum256([]byte(v.challenge))
	if !pub.Verify(digest[:], sig) {
		return errBadSignature
	}

	return nil
}

func (v *Verifier) verifyV2(body, address string) error {
	token, err := decodeV2(body)
	if err != nil {
		return err
	}

	pub, err := ParsePublicKey(token.claims.Issuer)
	if err != nil {
		return err
	}
	if pub.Alg != token.header.Alg {
		return fmt.Errorf("%w: header alg %q does not match issuer key", errMalformedToken, token.header.Alg)
	}

	if !pub.Verify([]byte(token.signingInput), token.signature) {
		return errBadSignature
	}

	if pub.Address() != address {
		return errAddressMismatch
	}

	if token.claims.HubChallenge != v.challenge {
		return errChallengeMismatch
	}

	now := v.now()
	issuedAt := time.Unix(token.claims.IssuedAt, 0)
	if issuedAt.After(now.Add(v.skew)) {
		return errNotYetValid
	}
	if !v.validSince.IsZero() && issuedAt.Before(v.validSince) {
		return errTooOld
	}
	if token.claims.ExpiresAt != 0 && !now.Before(time.Unix(token.claims.ExpiresAt, 0)) {
		return errExpired
	}

	return nil
}
