package ocr

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// bankMock implements BankReceiptRecognizer with a function field.
type bankMock struct {
	recognizeFunc func(ctx context.Context, image []byte) (map[string]interface{}, error)
}

func (m *bankMock) RecognizeBankReceipt(ctx context.Context, image []byte) (map[string]interface{}, error) {
	return m.recognizeFunc(ctx, image)
}

var _ BankReceiptRecognizer = (*bankMock)(nil)

func TestNormalize_FlatWordsResult(t *testing.T) {
	n := &Normalizer{}
	raw := map[string]interface{}{
		"words_result": []interface{}{
			map[string]interface{}{"words": "记账凭证"},
			map[string]interface{}{"words": "2024年06月30日"},
			map[string]interface{}{"words": ""},
			map[string]interface{}{"words": "金额:100.00"},
		},
	}

	lines, err := n.Normalize(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	want := []string{"记账凭证", "2024年06月30日", "金额:100.00"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}
}

func TestNormalize_ProviderErrorTakesPrecedence(t *testing.T) {
	n := &Normalizer{}
	raw := map[string]interface{}{
		"error_code": float64(17),
		"error_msg":  "Open api daily request limit reached",
		"words_result": []interface{}{
			map[string]interface{}{"words": "should be ignored"},
		},
	}

	_, err := n.Normalize(context.Background(), raw, nil)
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if perr.Code != "17" {
		t.Errorf("code = %q, want 17", perr.Code)
	}
	if perr.Message != "Open api daily request limit reached" {
		t.Errorf("message = %q", perr.Message)
	}
}

func TestNormalize_ProviderErrorDefaultMessage(t *testing.T) {
	n := &Normalizer{}
	raw := map[string]interface{}{"error_code": "110"}

	_, err := n.Normalize(context.Background(), raw, nil)
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if perr.Message != "未知错误" {
		t.Errorf("message = %q, want 未知错误", perr.Message)
	}
}

func TestNormalize_GroupedResult(t *testing.T) {
	n := &Normalizer{}
	raw := map[string]interface{}{
		"words_result": []interface{}{
			map[string]interface{}{
				"result": map[string]interface{}{
					"b_total": []interface{}{map[string]interface{}{"word": "1000.00"}},
					"a_payee": []interface{}{
						map[string]interface{}{"word": "某某公司"},
						map[string]interface{}{"word": " "},
					},
				},
			},
			map[string]interface{}{
				"result": map[string]interface{}{
					"c_date": []interface{}{map[string]interface{}{"word": "2024-06-30"}},
				},
			},
		},
	}

	lines, err := n.Normalize(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	// Fields are visited in sorted name order within each document.
	want := []string{"某某公司", "1000.00", "2024-06-30"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}
}

func TestNormalize_ClassificationEscalation(t *testing.T) {
	classified := map[string]interface{}{
		"words_result": []interface{}{
			map[string]interface{}{"type": "others", "probability": 0.99},
		},
	}

	t.Run("with bank recognizer", func(t *testing.T) {
		bank := &bankMock{
			recognizeFunc: func(ctx context.Context, image []byte) (map[string]interface{}, error) {
				return map[string]interface{}{
					"words_result": map[string]interface{}{
						"amount": []interface{}{map[string]interface{}{"word": "5000.00"}},
						"payer":  []interface{}{map[string]interface{}{"word": "张三"}},
					},
				}, nil
			},
		}
		n := &Normalizer{Bank: bank}

		lines, err := n.Normalize(context.Background(), classified, []byte("img"))
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		want := []string{"5000.00", "张三"}
		if !reflect.DeepEqual(lines, want) {
			t.Errorf("lines = %v, want %v", lines, want)
		}
	})

	t.Run("escalation call fails", func(t *testing.T) {
		bank := &bankMock{
			recognizeFunc: func(ctx context.Context, image []byte) (map[string]interface{}, error) {
				return nil, fmt.Errorf("connection refused")
			},
		}
		n := &Normalizer{Bank: bank}

		_, err := n.Normalize(context.Background(), classified, []byte("img"))
		if err == nil {
			t.Fatal("Normalize() expected error")
		}
	})

	t.Run("without bank recognizer", func(t *testing.T) {
		n := &Normalizer{}

		_, err := n.Normalize(context.Background(), classified, []byte("img"))
		var uerr *UnrecognizedResponseError
		if !errors.As(err, &uerr) {
			t.Fatalf("error = %v, want *UnrecognizedResponseError", err)
		}
	})
}

func TestNormalize_DataContainer(t *testing.T) {
	n := &Normalizer{}
	raw := map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{"words": "第一行"},
			map[string]interface{}{"words": "第二行"},
		},
	}

	lines, err := n.Normalize(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := []string{"第一行", "第二行"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}
}

func TestNormalize_WalkFallback(t *testing.T) {
	n := &Normalizer{}
	raw := map[string]interface{}{
		"foo": map[string]interface{}{"text": "hello"},
		"bar": []interface{}{
			map[string]interface{}{"content": "world"},
		},
		"meta": map[string]interface{}{"request_id": "ignored"},
	}

	lines, err := n.Normalize(context.Background(), raw, nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	// Keys are walked in sorted order: bar before foo.
	want := []string{"world", "hello"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}
}

func TestNormalize_WalkDepthBounded(t *testing.T) {
	n := &Normalizer{}

	node := map[string]interface{}{"text": "too deep"}
	for i := 0; i < maxWalkDepth+2; i++ {
		node = map[string]interface{}{"nested": node}
	}

	_, err := n.Normalize(context.Background(), node, nil)
	var uerr *UnrecognizedResponseError
	if !errors.As(err, &uerr) {
		t.Fatalf("error = %v, want *UnrecognizedResponseError", err)
	}
}

func TestNormalize_EmptyResponse(t *testing.T) {
	n := &Normalizer{}

	_, err := n.Normalize(context.Background(), map[string]interface{}{}, nil)
	var uerr *UnrecognizedResponseError
	if !errors.As(err, &uerr) {
		t.Fatalf("error = %v, want *UnrecognizedResponseError", err)
	}
}

func TestJoinLines(t *testing.T) {
	got := JoinLines([]string{"a", "b", "c"})
	if got != "a\nb\nc" {
		t.Errorf("JoinLines = %q", got)
	}
}
