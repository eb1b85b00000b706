// Package namemapper derives a stable, cluster-legal Kubernetes namespace
// name for each authenticated user identity.
package namemapper

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	prefix    = "kbatch-"
	maxSanLen = 40
	hashLen   = 7
)

var (
	lowerCaser    = cases.Lower(language.Und)
	invalidRun    = regexp.MustCompile(`[^a-z0-9]+`)
	leadTrailDash = regexp.MustCompile(`^-+|-+$`)
)

// Map derives the namespace for a user identity string. The mapping is
// deterministic: the same identity always yields the same namespace. A
// name that is already legal sanitizes to itself and gets no hash suffix,
// but the prefix is always prepended, so Map(Map(x)) is "kbatch-" + Map(x).
func Map(identity string) string {
	sanitized := sanitize(identity)

	if sanitized != identity {
		hash := sha256.Sum256([]byte(identity))
		hashSuffix := hex.EncodeToString(hash[:])[:hashLen]
		if sanitized == "" {
			// An all-illegal identity sanitizes to "": avoid stacking the
			// "--" separator onto an empty string, which would leave a
			// third dash after the "kbatch-" prefix.
			sanitized = "-" + hashSuffix
		} else {
			sanitized = sanitized + "--" + hashSuffix
		}
	}

	return prefix + sanitized
}

func sanitize(identity string) string {
	lowered := lowerCaser.String(identity)
	collapsed := invalidRun.ReplaceAllString(lowered, "-")
	if len(collapsed) > maxSanLen {
		collapsed = collapsed[:maxSanLen]
	}
	return leadTrailDash.ReplaceAllString(collapsed, "")
}
