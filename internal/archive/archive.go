package archive

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/hzhu/voucher-scan/internal/pipeline"
)

const (
	runsTable     = "recognition_runs"
	outcomesTable = "recognition_outcomes"
)

// Archive writes recognition results to BigQuery. It holds one shared
// client for its lifetime.
type Archive struct {
	client  *bigquery.Client
	dataset string
}

// New creates an archive over the given project and dataset.
func New(ctx context.Context, projectID, dataset string) (*Archive, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("archive: creating client: %w", err)
	}
	return &Archive{client: client, dataset: dataset}, nil
}

// Close closes the underlying client.
func (a *Archive) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// RecordBatch stores one finished batch: a run row plus one outcome row per
// item, in batch order. Returns the generated run ID.
func (a *Archive) RecordBatch(ctx context.Context, startedAt time.Time, result pipeline.BatchResult) (string, error) {
	runID := uuid.NewString()

	run := &RunRow{
		RunID:        runID,
		StartedTS:    startedAt,
		FinishedTS:   bigquery.NullTimestamp{Timestamp: time.Now(), Valid: true},
		Total:        int64(result.Total),
		SuccessCount: int64(result.SuccessCount),
		FailedCount:  int64(result.FailedCount),
	}
	if err := a.client.Dataset(a.dataset).Table(runsTable).Inserter().Put(ctx, run); err != nil {
		return "", fmt.Errorf("archive: inserting run row: %w", err)
	}

	rows := make([]*OutcomeRow, 0, len(result.Outcomes))
	for i := range result.Outcomes {
		rows = append(rows, outcomeRow(runID, i, &result.Outcomes[i]))
	}
	if len(rows) > 0 {
		if err := a.client.Dataset(a.dataset).Table(outcomesTable).Inserter().Put(ctx, rows); err != nil {
			return "", fmt.Errorf("archive: inserting outcome rows: %w", err)
		}
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]*RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	q := a.client.Query(fmt.Sprintf(`
		SELECT run_id, started_ts, finished_ts, total, success_count, failed_count
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, a.dataset, runsTable))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: int64(limit)}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: reading runs: %w", err)
	}

	var runs []*RunRow
	for {
		var row RunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: iterating runs: %w", err)
		}
		runs = append(runs, &row)
	}
	return runs, nil
}

// outcomeRow flattens one outcome for storage.
func outcomeRow(runID string, position int, o *pipeline.RecognitionOutcome) *OutcomeRow {
	row := &OutcomeRow{
		RunID:    runID,
		Position: int64(position),
		Filename: o.Filename,
		ImageRef: o.ImageRef,
		Status:   string(o.Status),
		Reason:   o.Reason,
	}
	if o.LineCount > 0 {
		row.LineCount = bigquery.NullInt64{Int64: int64(o.LineCount), Valid: true}
	}
	if v := o.Voucher; v != nil {
		row.EntryCount = bigquery.NullInt64{Int64: int64(len(v.Entries)), Valid: true}
		row.VoucherNo = v.VoucherNo
		row.FiscalYear = v.FiscalYear
		if d, err := civil.ParseDate(v.VoucherDate); err == nil {
			row.VoucherDate = bigquery.NullDate{Date: d, Valid: true}
		}
	}
	return row
}
