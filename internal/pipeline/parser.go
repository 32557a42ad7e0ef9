package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractionFormatError means the model reply could not be parsed as a
// voucher. The raw reply is preserved so the malformed output can be
// inspected; nothing is silently defaulted at the voucher level.
type ExtractionFormatError struct {
	RawReply string
	Err      error
}

func (e *ExtractionFormatError) Error() string {
	return fmt.Sprintf("parse extraction reply: %v", e.Err)
}

func (e *ExtractionFormatError) Unwrap() error { return e.Err }

// parseReply locates the structured payload in a model reply and decodes it
// into a voucher record.
func parseReply(reply string) (*VoucherRecord, error) {
	payload := fencedPayload(reply)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &ExtractionFormatError{RawReply: reply, Err: err}
	}
	return transformVoucher(raw), nil
}

// fencedPayload extracts the JSON payload from a reply that may wrap it in
// Markdown fences. A block tagged "json" is preferred, then any fenced
// block, then the raw reply.
func fencedPayload(reply string) string {
	if start := strings.Index(reply, "```json"); start != -1 {
		return cutFence(reply[start+len("```json"):])
	}
	if start := strings.Index(reply, "```"); start != -1 {
		return cutFence(reply[start+len("```"):])
	}
	return strings.TrimSpace(reply)
}

func cutFence(s string) string {
	if end := strings.Index(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
