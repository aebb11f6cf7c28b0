package siteplan

import "sync"

// In-memory record of the latest solve per tenant scenario, so
// operators can inspect runs even when no database is configured.

var (
	statsMu    sync.Mutex
	statsByKey = map[string]Stats{}
)

func statsKey(tenantID, scenarioID, backend string) string {
	return tenantID + "|" + scenarioID + "|" + backend
}

// RecordStats keeps the latest solve stats for the key.
func RecordStats(tenantID, scenarioID, backend string, st Stats) {
	statsMu.Lock()
	defer statsMu.Unlock()
	statsByKey[statsKey(tenantID, scenarioID, backend)] = st
}

// LastStats returns the most recent recorded stats for the key.
func LastStats(tenantID, scenarioID, backend string) (Stats, bool) {
	statsMu.Lock()
	defer statsMu.Unlock()
	st, ok := statsByKey[statsKey(tenantID, scenarioID, backend)]
	return st, ok
}
