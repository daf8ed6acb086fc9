// Package legal tracks which versions of the legal documents the user has
// accepted and decides when a version bump forces re-acceptance.
package legal

import "time"

// Well-known document IDs. The required-versions policy may reference
// additional IDs; nothing here assumes a closed set.
const (
	DocTermsOfService = "terms-of-service"
	DocPrivacyPolicy  = "privacy-policy"
)

// Acceptance records one accepted document version.
type Acceptance struct {
	AcceptedVersion int       `json:"acceptedVersion"`
	AcceptedAt      time.Time `json:"acceptedAt"`
}

// State is the persisted legal slice: document ID to acceptance.
type State struct {
	Accepted map[string]Acceptance `json:"accepted"`
}

// RequiredVersions maps document IDs to the version the user must have
// accepted. Bumping a version here makes stored acceptances stale.
type RequiredVersions map[string]int
