package auth

import (
	"encoding/json"
	"strings"

	"github.com/sagarc03/hubstore"
)

// Version identifies a token format.
type Version string

const (
	V1 Version = "v1"
	V2 Version = "v2"

	// LatestVersion is the version new clients should produce.
	LatestVersion = V2
)

// MinChallengeTextLength is the shortest challenge text a hub will advertise.
const MinChallengeTextLength = hubstore.MinChallengeTextLength

const (
	challengeProtocol = "hubstore"
	challengeRevision = "0"
	challengeSuffix   = "hubstore_storage_please_sign"
)

// ChallengeText returns the deterministic text clients sign for serverName.
func ChallengeText(serverName string) string {
	b, err := json.Marshal([]string{challengeProtocol, challengeRevision, serverName, challengeSuffix})
	if err != nil {
		// []string always marshals.
		panic(err)
	}
	return string(b)
}

// ParseVersion splits a token into its version and the version-specific body.
func ParseVersion(token string) (Version, string, bool) {
	prefix, body, ok := strings.Cut(token, ":")
	if !ok || body == "" {
		return "", "", false
	}
	return Version(prefix), body, true
}
