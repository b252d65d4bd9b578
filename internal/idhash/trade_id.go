package idhash

import "strconv"

// ComputeTradeID identifies the seq-th closed trade of a report within a
// sweep. Report ids repeat across sweeps, so the sweep id takes part.
func ComputeTradeID(sweepID, reportID string, seq int, openTime int64) string {
	return digest(sweepID, reportID, strconv.Itoa(seq), strconv.FormatInt(openTime, 10))
}
