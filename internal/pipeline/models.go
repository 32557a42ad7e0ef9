// Package pipeline turns normalized OCR text into validated voucher records
// and runs batches of recognition jobs.
package pipeline

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Debit/credit direction values as they appear on Chinese vouchers.
const (
	DirectionDebit  = "借"
	DirectionCredit = "贷"
)

// Defaults applied when the extraction reply leaves a field empty.
const (
	DefaultVoucherType = "记"
	DefaultCurrency    = "人民币"
)

// NullFloat is a float that knows whether the source value was present.
// Absent values stay absent all the way to the export row, never becoming a
// zero placeholder.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Float returns a valid NullFloat.
func Float(v float64) NullFloat { return NullFloat{Float64: v, Valid: true} }

// MarshalJSON renders the value as a number, or null when absent.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Float64, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a number, a numeric string, an empty string, or
// null. Anything non-numeric decodes as absent rather than failing, matching
// the lenient handling of model output.
func (n *NullFloat) UnmarshalJSON(b []byte) error {
	*n = NullFloat{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*n = Float(f)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = Float(f)
	}
	return nil
}

// VoucherEntry is one debit or credit line of a voucher.
type VoucherEntry struct {
	SubjectCode      string    `json:"subject_code"`
	SubjectName      string    `json:"subject_name"`
	Summary          string    `json:"summary"`
	Direction        string    `json:"direction"`
	Amount           NullFloat `json:"amount"`
	Currency         string    `json:"currency"`
	ExchangeRate     NullFloat `json:"exchange_rate"`
	OriginalAmount   NullFloat `json:"original_amount"`
	Quantity         NullFloat `json:"quantity"`
	UnitPrice        NullFloat `json:"unit_price"`
	SettlementMethod string    `json:"settlement_method"`
	SettlementDate   string    `json:"settlement_date"`
	SettlementNo     string    `json:"settlement_no"`
	BusinessDate     string    `json:"business_date"`
	EmployeeNo       string    `json:"employee_no"`
	EmployeeName     string    `json:"employee_name"`
	PartnerNo        string    `json:"partner_no"`
	PartnerName      string    `json:"partner_name"`
	ProductNo        string    `json:"product_no"`
	ProductName      string    `json:"product_name"`
	Department       string    `json:"department"`
	Project          string    `json:"project"`
}

// ApplyDefaults fills the fields that carry standing defaults when the
// source left them empty: voucher type 记, entry currency 人民币 and
// exchange rate 1. Both the extraction transform and externally supplied
// records go through here; the export mapper never invents values itself.
func (r *VoucherRecord) ApplyDefaults() {
	if r.VoucherType == "" {
		r.VoucherType = DefaultVoucherType
	}
	for i := range r.Entries {
		r.Entries[i].applyDefaults()
	}
}

func (e *VoucherEntry) applyDefaults() {
	if e.Currency == "" {
		e.Currency = DefaultCurrency
	}
	if !e.ExchangeRate.Valid {
		e.ExchangeRate = Float(1)
	}
}

// VoucherRecord is one recognized voucher: header metadata plus its entries.
// Entries may be empty; the export mapper still emits a header-only row then.
type VoucherRecord struct {
	VoucherDate     string         `json:"voucher_date"`
	VoucherType     string         `json:"voucher_type"`
	VoucherNo       string         `json:"voucher_no"`
	Preparer        string         `json:"preparer"`
	AttachmentCount NullFloat      `json:"attachment_count"`
	FiscalYear      string         `json:"fiscal_year"`
	Entries         []VoucherEntry `json:"entries"`
}
