// Package archive persists recognition runs and their per-item outcomes to
// BigQuery for later inspection and reporting.
package archive

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// RunRow is one batch invocation in the recognition_runs table.
type RunRow struct {
	RunID        string                 `bigquery:"run_id"`
	StartedTS    time.Time              `bigquery:"started_ts"`
	FinishedTS   bigquery.NullTimestamp `bigquery:"finished_ts"`
	Total        int64                  `bigquery:"total"`
	SuccessCount int64                  `bigquery:"success_count"`
	FailedCount  int64                  `bigquery:"failed_count"`
}

// OutcomeRow is one batch item in the recognition_outcomes table.
type OutcomeRow struct {
	RunID    string `bigquery:"run_id"`
	Position int64  `bigquery:"position"`
	Filename string `bigquery:"filename"`
	ImageRef string `bigquery:"image_ref"`
	Status   string `bigquery:"status"`
	Reason   string `bigquery:"reason"`

	LineCount  bigquery.NullInt64 `bigquery:"line_count"`
	EntryCount bigquery.NullInt64 `bigquery:"entry_count"`

	VoucherNo   string            `bigquery:"voucher_no"`
	VoucherDate bigquery.NullDate `bigquery:"voucher_date"`
	FiscalYear  string            `bigquery:"fiscal_year"`
}
