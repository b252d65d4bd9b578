package idhash

import (
	"strconv"
	"strings"

	"fx-backtester/internal/domain"
)

// ComputeReportID identifies a simulation by what determines its outcome:
// strategy, pair, period and the parameter values, floats first, each group
// sorted by name. The assignment id does not take part.
func ComputeReportID(strategy, pair string, period int, a domain.Assignment) string {
	params := make([]string, 0, len(a.Floats)+len(a.Strings))
	for _, name := range a.FloatNames() {
		params = append(params, name+"="+strconv.FormatFloat(a.Floats[name], 'g', -1, 64))
	}
	for _, name := range a.StringNames() {
		params = append(params, name+"="+a.Strings[name])
	}
	return digest(strategy, pair, strconv.Itoa(period), strings.Join(params, ","))
}
