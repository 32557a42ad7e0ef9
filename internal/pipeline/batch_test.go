package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hzhu/voucher-scan/internal/chart"
	"github.com/hzhu/voucher-scan/internal/ocr"
)

// mockProvider implements ocr.Provider with a function field.
type mockProvider struct {
	recognizeFunc func(ctx context.Context, image []byte) (map[string]interface{}, error)
}

func (m *mockProvider) Recognize(ctx context.Context, image []byte) (map[string]interface{}, error) {
	return m.recognizeFunc(ctx, image)
}

var _ ocr.Provider = (*mockProvider)(nil)

func wordsResponse(lines ...string) map[string]interface{} {
	items := make([]interface{}, 0, len(lines))
	for _, l := range lines {
		items = append(items, map[string]interface{}{"words": l})
	}
	return map[string]interface{}{"words_result": items}
}

const goodReply = `{"voucher_date":"2024-06-30","entries":[{"subject_code":"1001","direction":"借","amount":100}]}`

func TestRunBatch_IsolatesFailures(t *testing.T) {
	provider := &mockProvider{
		recognizeFunc: func(ctx context.Context, image []byte) (map[string]interface{}, error) {
			switch string(image) {
			case "good":
				return wordsResponse("记账凭证", "金额:100.00"), nil
			case "ocr-down":
				return nil, fmt.Errorf("dial tcp: connection refused")
			case "blank":
				return wordsResponse("   "), nil
			default:
				return nil, fmt.Errorf("unexpected image %q", image)
			}
		},
	}

	var mu sync.Mutex
	llmCalls := []string{}
	llm := &mockLLM{
		completeFunc: func(ctx context.Context, system, user string) (string, error) {
			mu.Lock()
			llmCalls = append(llmCalls, user)
			mu.Unlock()
			if strings.Contains(user, "金额:100.00") {
				return goodReply, nil
			}
			return "not json", nil
		},
	}

	r := NewRecognizer(provider, nil, NewExtractor(llm, chart.NewRegistry()), 2, zerolog.Nop())

	items := []Item{
		{Filename: "a.jpg", Image: []byte("good")},
		{Filename: "b.jpg", Image: []byte("ocr-down")},
		{Filename: "c.jpg", Image: []byte("blank")},
	}
	result := r.RunBatch(context.Background(), items)

	if result.Total != 3 || result.SuccessCount != 1 || result.FailedCount != 2 {
		t.Fatalf("counts = %d/%d/%d, want 3/1/2", result.Total, result.SuccessCount, result.FailedCount)
	}

	// Outcomes keep input order.
	if result.Outcomes[0].Filename != "a.jpg" || result.Outcomes[1].Filename != "b.jpg" || result.Outcomes[2].Filename != "c.jpg" {
		t.Error("outcomes not in input order")
	}

	if result.Outcomes[0].Status != OutcomeSucceeded {
		t.Errorf("outcome 0 = %+v, want succeeded", result.Outcomes[0])
	}
	if result.Outcomes[0].Voucher == nil || len(result.Outcomes[0].Voucher.Entries) != 1 {
		t.Error("succeeded outcome missing voucher")
	}

	if result.Outcomes[1].Status != OutcomeFailedOCR {
		t.Errorf("outcome 1 status = %q, want failed_ocr", result.Outcomes[1].Status)
	}
	if !strings.HasPrefix(result.Outcomes[1].Reason, "ocr failed: ") {
		t.Errorf("outcome 1 reason = %q", result.Outcomes[1].Reason)
	}

	if result.Outcomes[2].Status != OutcomeFailedOCR || result.Outcomes[2].Reason != ReasonNoText {
		t.Errorf("outcome 2 = %q/%q, want failed_ocr/%q", result.Outcomes[2].Status, result.Outcomes[2].Reason, ReasonNoText)
	}

	// The blank item must never reach the model.
	mu.Lock()
	defer mu.Unlock()
	if len(llmCalls) != 1 {
		t.Errorf("llm called %d times, want 1", len(llmCalls))
	}
}

func TestRunBatch_ExtractionFailure(t *testing.T) {
	provider := &mockProvider{
		recognizeFunc: func(ctx context.Context, image []byte) (map[string]interface{}, error) {
			return wordsResponse("some text"), nil
		},
	}
	llm := &mockLLM{
		completeFunc: func(ctx context.Context, system, user string) (string, error) {
			return "图片无法识别", nil
		},
	}

	r := NewRecognizer(provider, nil, NewExtractor(llm, chart.NewRegistry()), 0, zerolog.Nop())
	result := r.RunBatch(context.Background(), []Item{{Filename: "x.jpg", Image: []byte("img")}})

	out := result.Outcomes[0]
	if out.Status != OutcomeFailedExtraction {
		t.Fatalf("status = %q, want failed_extraction", out.Status)
	}
	if !strings.HasPrefix(out.Reason, "extraction failed: ") {
		t.Errorf("reason = %q", out.Reason)
	}
	// Intermediate OCR text survives the failure.
	if out.OCRText != "some text" || out.LineCount != 1 {
		t.Errorf("ocr text = %q (%d lines), want preserved", out.OCRText, out.LineCount)
	}
	// So does the unparseable model reply.
	if out.RawReply != "图片无法识别" {
		t.Errorf("raw reply = %q, want the model reply", out.RawReply)
	}
}

func TestRecognizeOne_PanicBecomesOutcome(t *testing.T) {
	provider := &mockProvider{
		recognizeFunc: func(ctx context.Context, image []byte) (map[string]interface{}, error) {
			panic("provider exploded")
		},
	}

	r := NewRecognizer(provider, nil, NewExtractor(&mockLLM{}, chart.NewRegistry()), 1, zerolog.Nop())
	out := r.RecognizeOne(context.Background(), Item{Filename: "boom.jpg", Image: []byte("img")})

	if out.Status != OutcomeFailedUnexpected {
		t.Fatalf("status = %q, want failed_unexpected", out.Status)
	}
	if !strings.Contains(out.Reason, "provider exploded") {
		t.Errorf("reason = %q", out.Reason)
	}
}

func TestRunBatch_Empty(t *testing.T) {
	r := NewRecognizer(&mockProvider{}, nil, NewExtractor(&mockLLM{}, chart.NewRegistry()), 1, zerolog.Nop())

	result := r.RunBatch(context.Background(), nil)
	if result.Total != 0 || result.SuccessCount != 0 || result.FailedCount != 0 {
		t.Errorf("counts = %+v, want all zero", result)
	}
}

func TestRecognizeOne_KeepsImageRef(t *testing.T) {
	provider := &mockProvider{
		recognizeFunc: func(ctx context.Context, image []byte) (map[string]interface{}, error) {
			return nil, fmt.Errorf("down")
		},
	}
	r := NewRecognizer(provider, nil, NewExtractor(&mockLLM{}, chart.NewRegistry()), 1, zerolog.Nop())

	out := r.RecognizeOne(context.Background(), Item{Filename: "a.jpg", Image: []byte("x"), ImageRef: "/uploads/abc.jpg"})
	if out.ImageRef != "/uploads/abc.jpg" {
		t.Errorf("ImageRef = %q, want carried through on failure", out.ImageRef)
	}
}
