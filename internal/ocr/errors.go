package ocr

import (
	"encoding/json"
	"fmt"
)

// ProviderError is an explicit error reported by the OCR vendor in its
// response body. It is fatal for the call and never retried here.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ocr provider error: %s (code %s)", e.Message, e.Code)
}

// UnrecognizedResponseError means the normalizer cascade exhausted every
// known format without extracting a single line. The raw response is kept so
// the unfamiliar shape can be diagnosed.
type UnrecognizedResponseError struct {
	Raw map[string]interface{}
}

func (e *UnrecognizedResponseError) Error() string {
	raw, err := json.Marshal(e.Raw)
	if err != nil {
		return fmt.Sprintf("no text extracted from ocr response: %v", e.Raw)
	}
	return fmt.Sprintf("no text extracted from ocr response: %s", raw)
}
