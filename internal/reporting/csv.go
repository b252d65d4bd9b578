package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders ranked reports as CSV string, best last.
func RenderCSV(rows []RankedRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("report_id,task_id,params,score,trades,profit\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%q,%.6f,%d,%s\n",
			r.ReportID,
			r.TaskID,
			r.Params,
			r.Score,
			r.Trades,
			money(r.Profit),
		))
	}

	return sb.String()
}
