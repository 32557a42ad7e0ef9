// Package ocr defines the OCR provider abstraction and the response
// normalizer that flattens vendor-specific payloads into plain text lines.
package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Provider recognizes text in an image and returns the vendor's raw decoded
// JSON response. Authentication and transport details live inside each
// implementation.
type Provider interface {
	Recognize(ctx context.Context, image []byte) (map[string]interface{}, error)
}

// BankReceiptRecognizer is the specialized endpoint used when the primary
// call returns only a document classification (e.g. type "others" for bank
// receipts) without any recognized fields.
type BankReceiptRecognizer interface {
	RecognizeBankReceipt(ctx context.Context, image []byte) (map[string]interface{}, error)
}

// maxWalkDepth bounds the generic fallback traversal so adversarial nesting
// cannot recurse forever.
const maxWalkDepth = 10

// textKeys are the conventional field names the generic fallback collects.
var textKeys = map[string]bool{
	"words":   true,
	"word":    true,
	"text":    true,
	"content": true,
	"value":   true,
	"name":    true,
}

// Normalizer converts a raw OCR response into an ordered sequence of
// non-blank text lines. Bank, when set, handles the classification-only
// escalation; without it that stage is skipped and the cascade continues.
type Normalizer struct {
	Bank BankReceiptRecognizer
}

// Normalize applies the extraction cascade to a raw response. The original
// image is needed only for the bank-receipt escalation. Unknown shapes fall
// through the cascade silently; the only errors are an explicit provider
// error, a failed escalation call, and the final nothing-extracted case.
func (n *Normalizer) Normalize(ctx context.Context, raw map[string]interface{}, image []byte) ([]string, error) {
	if err := providerError(raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &UnrecognizedResponseError{Raw: raw}
	}

	var lines []string

	if wr, ok := raw["words_result"]; ok {
		var err error
		lines, err = n.fromWordsResult(ctx, wr, image)
		if err != nil {
			return nil, err
		}
	} else if data, ok := raw["data"]; ok {
		lines = fromDataContainer(data)
	}

	if len(lines) == 0 {
		walk(raw, 0, &lines)
	}
	if len(lines) == 0 {
		return nil, &UnrecognizedResponseError{Raw: raw}
	}
	return lines, nil
}

// JoinLines renders normalized lines as the newline-joined text consumed by
// the extraction pipeline.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// providerError reports the vendor's own error signal, which takes precedence
// over any extractable content in the same response.
func providerError(raw map[string]interface{}) error {
	code, ok := raw["error_code"]
	if !ok {
		return nil
	}
	msg := "未知错误"
	if m, ok := raw["error_msg"].(string); ok && m != "" {
		msg = m
	}
	return &ProviderError{Code: scalarString(code), Message: msg}
}

// fromWordsResult handles the grouped "words_result" family of formats.
func (n *Normalizer) fromWordsResult(ctx context.Context, wr interface{}, image []byte) ([]string, error) {
	items, ok := wr.([]interface{})
	if !ok || len(items) == 0 {
		return nil, nil
	}
	first, ok := items[0].(map[string]interface{})
	if !ok {
		return nil, nil
	}

	if _, grouped := first["result"]; grouped {
		// Multi-document classification format: every document carries a
		// "result" map of field name to word list.
		var lines []string
		for _, item := range items {
			doc, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			result, ok := doc["result"].(map[string]interface{})
			if !ok {
				continue
			}
			collectFieldWords(result, &lines)
		}
		return lines, nil
	}

	if _, tagged := first["type"]; tagged {
		// Classification-only response: the primary endpoint identified the
		// document class but recognized nothing. Escalate to the dedicated
		// recognizer when one is configured.
		if n.Bank == nil {
			return nil, nil
		}
		raw, err := n.Bank.RecognizeBankReceipt(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("bank receipt escalation: %w", err)
		}
		return normalizeBankReceipt(raw)
	}

	// Simple flat format: one line per element's "words" string.
	var lines []string
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if words, ok := m["words"].(string); ok && words != "" {
			lines = append(lines, words)
		}
	}
	return lines, nil
}

// fromDataContainer handles responses that wrap results in a "data" field.
func fromDataContainer(data interface{}) []string {
	var lines []string
	switch d := data.(type) {
	case []interface{}:
		for _, item := range d {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			lines = append(lines, dataItemLines(m)...)
		}
	case map[string]interface{}:
		lines = dataItemLines(d)
	}
	return lines
}

func dataItemLines(m map[string]interface{}) []string {
	var lines []string
	if wr, ok := m["words_result"].([]interface{}); ok {
		for _, item := range wr {
			wm, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if words, ok := wm["words"].(string); ok && words != "" {
				lines = append(lines, words)
			}
		}
		return lines
	}
	if w, ok := m["words"]; ok {
		if s := scalarString(w); s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

// normalizeBankReceipt flattens the bank-receipt response, whose
// "words_result" is a map of named fields to word lists.
func normalizeBankReceipt(raw map[string]interface{}) ([]string, error) {
	if err := providerError(raw); err != nil {
		return nil, err
	}
	var lines []string
	switch wr := raw["words_result"].(type) {
	case map[string]interface{}:
		collectFieldWords(wr, &lines)
	case []interface{}:
		for _, item := range wr {
			appendWordValue(item, &lines)
		}
	}
	return lines, nil
}

// collectFieldWords gathers "word" strings from a field-name → word-list map.
// encoding/json does not keep object key order, so fields are visited in
// sorted order to stay deterministic.
func collectFieldWords(fields map[string]interface{}, lines *[]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch v := fields[name].(type) {
		case []interface{}:
			for _, item := range v {
				appendWordValue(item, lines)
			}
		case string:
			if s := strings.TrimSpace(v); s != "" {
				*lines = append(*lines, s)
			}
		}
	}
}

func appendWordValue(item interface{}, lines *[]string) {
	switch v := item.(type) {
	case map[string]interface{}:
		if word, ok := v["word"].(string); ok {
			if s := strings.TrimSpace(word); s != "" {
				*lines = append(*lines, s)
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			*lines = append(*lines, s)
		}
	}
}

// walk is the generic fallback: a depth-bounded depth-first traversal that
// collects every non-blank string found under a conventional text key.
func walk(node interface{}, depth int, lines *[]string) {
	if depth > maxWalkDepth {
		return
	}
	switch v := node.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := v[k]
			if s, ok := child.(string); ok && textKeys[k] && strings.TrimSpace(s) != "" {
				*lines = append(*lines, s)
				continue
			}
			switch child.(type) {
			case map[string]interface{}, []interface{}:
				walk(child, depth+1, lines)
			}
		}
	case []interface{}:
		for _, item := range v {
			walk(item, depth+1, lines)
		}
	}
}

func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
