// Package auth implements challenge-token authentication for hub namespaces.
//
// A client proves control of an address by signing the hub's challenge text
// with the private key the address was derived from. Two token versions are
// accepted:
//
//   - v1 (legacy): "v1:" + base64url(JSON{publickey, signature}), an ed25519
//     signature over sha256(challenge text).
//   - v2 (latest): "v2:" + header.payload.signature, where the payload carries
//     the challenge, issuer public key, issue time, optional expiry and a salt.
//     Signed with ed25519 ("EdDSA") or Dilithium3 ("Dilithium3").
//
// Verifier.Verify reports every failure as hubstore.ErrValidation.
package auth
