package pipeline

import (
	"context"
	"fmt"

	"github.com/hzhu/voucher-scan/internal/chart"
)

// LLMClient is the single-exchange structured-extraction call. Implemented
// by the clients in internal/llm and by mocks in tests.
type LLMClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Extractor turns normalized OCR text into a resolved voucher record.
type Extractor struct {
	llm      LLMClient
	registry *chart.Registry
}

// NewExtractor creates an extractor over the given chart registry.
func NewExtractor(client LLMClient, reg *chart.Registry) *Extractor {
	return &Extractor{llm: client, registry: reg}
}

// Extract runs one extraction exchange: prompt, model call, reply parse,
// subject resolution. Business rules such as debit/credit balancing are
// intentionally not checked.
func (x *Extractor) Extract(ctx context.Context, ocrText string) (*VoucherRecord, error) {
	reply, err := x.llm.Complete(ctx, systemPrompt, buildPrompt(x.registry, ocrText))
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	rec, err := parseReply(reply)
	if err != nil {
		return nil, err
	}
	resolveSubjects(x.registry, rec)
	return rec, nil
}
