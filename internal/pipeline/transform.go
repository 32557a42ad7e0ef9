package pipeline

import (
	"strconv"
	"strings"
)

// transformVoucher converts the decoded model reply into a typed record.
// Missing or malformed fields fall back to their defaults instead of
// failing: a reply that parsed as JSON is always usable, field by field.
func transformVoucher(raw map[string]interface{}) *VoucherRecord {
	rec := &VoucherRecord{
		VoucherDate:     getString(raw, "voucher_date"),
		VoucherType:     getString(raw, "voucher_type"),
		VoucherNo:       getString(raw, "voucher_no"),
		Preparer:        getString(raw, "preparer"),
		AttachmentCount: getNullFloat(raw, "attachment_count"),
		FiscalYear:      getString(raw, "fiscal_year"),
	}
	entries, _ := raw["entries"].([]interface{})
	for _, item := range entries {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		rec.Entries = append(rec.Entries, transformEntry(obj))
	}
	rec.ApplyDefaults()
	return rec
}

func transformEntry(obj map[string]interface{}) VoucherEntry {
	e := VoucherEntry{
		SubjectCode:      getString(obj, "subject_code"),
		SubjectName:      getString(obj, "subject_name"),
		Summary:          getString(obj, "summary"),
		Direction:        getString(obj, "direction"),
		Amount:           getNullFloat(obj, "amount"),
		Currency:         getString(obj, "currency"),
		ExchangeRate:     getNullFloat(obj, "exchange_rate"),
		OriginalAmount:   getNullFloat(obj, "original_amount"),
		Quantity:         getNullFloat(obj, "quantity"),
		UnitPrice:        getNullFloat(obj, "unit_price"),
		SettlementMethod: getString(obj, "settlement_method"),
		SettlementDate:   getString(obj, "settlement_date"),
		SettlementNo:     getString(obj, "settlement_no"),
		BusinessDate:     getString(obj, "business_date"),
		EmployeeNo:       getString(obj, "employee_no"),
		EmployeeName:     getString(obj, "employee_name"),
		PartnerNo:        getString(obj, "partner_no"),
		PartnerName:      getString(obj, "partner_name"),
		ProductNo:        getString(obj, "product_no"),
		ProductName:      getString(obj, "product_name"),
		Department:       getString(obj, "department"),
		Project:          getString(obj, "project"),
	}
	return e
}

// getString reads a field as a string. Models occasionally emit numbers for
// code-like fields (fiscal year, voucher number), so numbers are formatted
// rather than rejected.
func getString(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// getNullFloat reads a field as a number, also accepting numeric strings.
// Empty and non-numeric values are absent, not zero.
func getNullFloat(m map[string]interface{}, key string) NullFloat {
	v, ok := m[key]
	if !ok || v == nil {
		return NullFloat{}
	}
	switch val := v.(type) {
	case float64:
		return Float(val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return NullFloat{}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f)
		}
		return NullFloat{}
	default:
		return NullFloat{}
	}
}
