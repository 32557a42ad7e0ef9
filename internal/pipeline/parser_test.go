package pipeline

import (
	"errors"
	"strings"
	"testing"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{
			name:  "bare json",
			reply: `{"voucher_date":"2024-06-30","entries":[]}`,
		},
		{
			name:  "json fence",
			reply: "好的，识别结果如下：\n```json\n{\"voucher_date\":\"2024-06-30\"}\n```\n以上。",
		},
		{
			name:  "untagged fence",
			reply: "```\n{\"voucher_date\":\"2024-06-30\"}\n```",
		},
		{
			name:  "surrounding whitespace",
			reply: "\n\n  {\"voucher_date\":\"2024-06-30\"}  \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := parseReply(tt.reply)
			if err != nil {
				t.Fatalf("parseReply() error = %v", err)
			}
			if rec.VoucherDate != "2024-06-30" {
				t.Errorf("VoucherDate = %q, want 2024-06-30", rec.VoucherDate)
			}
		})
	}
}

func TestParseReply_PrefersJSONFence(t *testing.T) {
	reply := "```\n{\"voucher_no\":\"wrong\"}\n```\n```json\n{\"voucher_no\":\"right\"}\n```"

	rec, err := parseReply(reply)
	if err != nil {
		t.Fatalf("parseReply() error = %v", err)
	}
	if rec.VoucherNo != "right" {
		t.Errorf("VoucherNo = %q, want right", rec.VoucherNo)
	}
}

func TestParseReply_Malformed(t *testing.T) {
	reply := "抱歉，图片太模糊，无法识别有效内容。"

	_, err := parseReply(reply)
	var ferr *ExtractionFormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("error = %v, want *ExtractionFormatError", err)
	}
	if ferr.RawReply != reply {
		t.Errorf("RawReply = %q, want original reply preserved", ferr.RawReply)
	}
	if ferr.Unwrap() == nil {
		t.Error("Unwrap() = nil, want underlying decode error")
	}
}

func TestFencedPayload(t *testing.T) {
	got := fencedPayload("prefix ```json\n{\"a\":1}\n``` suffix")
	if got != `{"a":1}` {
		t.Errorf("fencedPayload = %q", got)
	}

	got = fencedPayload("no fences at all")
	if !strings.Contains(got, "no fences") {
		t.Errorf("fencedPayload = %q", got)
	}
}
