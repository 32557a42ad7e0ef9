package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hzhu/voucher-scan/internal/ocr"
)

// ReasonNoText is the failure reason recorded when OCR succeeds but yields
// no usable text.
const ReasonNoText = "no text recognized"

// DefaultConcurrency caps in-flight vendor calls per batch.
const DefaultConcurrency = 4

// Item is one image submitted for recognition.
type Item struct {
	Filename string
	Image    []byte
	// ImageRef is the stored-image reference shown next to the result,
	// when the caller persisted the upload.
	ImageRef string
}

// OutcomeStatus tells at which stage an item ended.
type OutcomeStatus string

const (
	OutcomeSucceeded        OutcomeStatus = "succeeded"
	OutcomeFailedOCR        OutcomeStatus = "failed_ocr"
	OutcomeFailedExtraction OutcomeStatus = "failed_extraction"
	OutcomeFailedUnexpected OutcomeStatus = "failed_unexpected"
)

// RecognitionOutcome is the immutable per-item result. Failed outcomes carry
// a human-readable reason and whatever intermediate data existed when the
// item failed, so the caller can show the source image next to the error.
type RecognitionOutcome struct {
	Status    OutcomeStatus  `json:"status"`
	Filename  string         `json:"filename"`
	ImageRef  string         `json:"image_ref,omitempty"`
	OCRText   string         `json:"ocr_text,omitempty"`
	LineCount int            `json:"line_count,omitempty"`
	Voucher   *VoucherRecord `json:"voucher,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	// RawReply is the unparseable model reply on failed_extraction
	// outcomes, kept so prompt regressions can be diagnosed.
	RawReply string `json:"raw_reply,omitempty"`
}

// Succeeded reports whether the item produced a voucher.
func (o *RecognitionOutcome) Succeeded() bool { return o.Status == OutcomeSucceeded }

// BatchResult aggregates one batch invocation. Outcomes keep input order and
// SuccessCount+FailedCount always equals Total.
type BatchResult struct {
	Total        int                  `json:"total"`
	SuccessCount int                  `json:"success_count"`
	FailedCount  int                  `json:"failed_count"`
	Outcomes     []RecognitionOutcome `json:"results"`
}

// Recognizer runs the OCR → normalize → extract pipeline for single images
// and batches.
type Recognizer struct {
	provider    ocr.Provider
	normalizer  *ocr.Normalizer
	extractor   *Extractor
	concurrency int
	log         zerolog.Logger
}

// NewRecognizer wires a recognizer. concurrency <= 0 uses
// DefaultConcurrency.
func NewRecognizer(provider ocr.Provider, normalizer *ocr.Normalizer, extractor *Extractor, concurrency int, log zerolog.Logger) *Recognizer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if normalizer == nil {
		normalizer = &ocr.Normalizer{}
	}
	return &Recognizer{
		provider:    provider,
		normalizer:  normalizer,
		extractor:   extractor,
		concurrency: concurrency,
		log:         log,
	}
}

// RecognizeOne processes a single image. Stage failures come back as the
// corresponding outcome variant rather than being swallowed.
func (r *Recognizer) RecognizeOne(ctx context.Context, item Item) RecognitionOutcome {
	return r.recognizeItem(ctx, item)
}

// RunBatch processes the items independently under the concurrency cap.
// A failing item never aborts the batch; outcomes land at the item's input
// index.
func (r *Recognizer) RunBatch(ctx context.Context, items []Item) BatchResult {
	outcomes := make([]RecognitionOutcome, len(items))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = r.recognizeItem(ctx, item)
			return nil
		})
	}
	// Workers only ever return nil; Wait is for completion.
	_ = g.Wait()

	result := BatchResult{Total: len(items), Outcomes: outcomes}
	for i := range outcomes {
		if outcomes[i].Succeeded() {
			result.SuccessCount++
		} else {
			result.FailedCount++
		}
	}
	return result
}

// recognizeItem is the item boundary: every error, including panics, is
// converted into a failure outcome here.
func (r *Recognizer) recognizeItem(ctx context.Context, item Item) (out RecognitionOutcome) {
	out = RecognitionOutcome{Filename: item.Filename, ImageRef: item.ImageRef}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Str("filename", item.Filename).Interface("panic", p).
				Msg("Recognition item panicked")
			out.Status = OutcomeFailedUnexpected
			out.Reason = fmt.Sprintf("unexpected failure: %v", p)
		}
	}()

	raw, err := r.provider.Recognize(ctx, item.Image)
	if err != nil {
		r.log.Warn().Err(err).Str("filename", item.Filename).Msg("OCR call failed")
		out.Status = OutcomeFailedOCR
		out.Reason = "ocr failed: " + err.Error()
		return out
	}

	lines, err := r.normalizer.Normalize(ctx, raw, item.Image)
	if err != nil {
		r.log.Warn().Err(err).Str("filename", item.Filename).Msg("OCR response unusable")
		out.Status = OutcomeFailedOCR
		out.Reason = "ocr failed: " + err.Error()
		return out
	}

	text := ocr.JoinLines(lines)
	if strings.TrimSpace(text) == "" {
		out.Status = OutcomeFailedOCR
		out.Reason = ReasonNoText
		return out
	}
	out.OCRText = text
	out.LineCount = len(lines)

	voucher, err := r.extractor.Extract(ctx, text)
	if err != nil {
		r.log.Warn().Err(err).Str("filename", item.Filename).Msg("Extraction failed")
		out.Status = OutcomeFailedExtraction
		out.Reason = "extraction failed: " + err.Error()
		var ferr *ExtractionFormatError
		if errors.As(err, &ferr) {
			out.RawReply = ferr.RawReply
		}
		return out
	}

	out.Status = OutcomeSucceeded
	out.Voucher = voucher
	r.log.Info().Str("filename", item.Filename).Int("entries", len(voucher.Entries)).
		Msg("Voucher recognized")
	return out
}
