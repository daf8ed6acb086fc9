package legal

import "sort"

// ReconcileResult reports which documents are stale and whether a blocking
// re-acceptance flow is required.
type ReconcileResult struct {
	NeedsBlocking    bool
	StaleDocumentIDs []string
}

// CheckVersionBumps compares stored acceptances against the required table.
// Pure function: repeated calls with the same inputs return the same result.
//
// A document is stale when it is missing from accepted or its accepted
// version is below the required one. Any stale document forces blocking; the
// caller resets the entire compliance flow rather than patching individual
// documents, treating a version bump as a fresh compliance cycle.
func CheckVersionBumps(accepted State, required RequiredVersions) ReconcileResult {
	var stale []string
	for docID, requiredVersion := range required {
		acceptance, ok := accepted.Accepted[docID]
		if !ok || acceptance.AcceptedVersion < requiredVersion {
			stale = append(stale, docID)
		}
	}
	sort.Strings(stale)
	return ReconcileResult{
		NeedsBlocking:    len(stale) > 0,
		StaleDocumentIDs: stale,
	}
}
