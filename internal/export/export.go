// Package export flattens voucher records into the fixed-column table
// consumed by downstream spreadsheet tooling.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/hzhu/voucher-scan/internal/pipeline"
)

// Headers is the column contract, in order. Downstream consumers import
// these rows positionally, so neither labels nor order may change.
var Headers = []string{
	"编制日期",
	"凭证类型",
	"凭证序号",
	"凭证号",
	"制单人",
	"附件张数",
	"会计年度",
	"科目编码",
	"科目名称",
	"凭证摘要",
	"借贷方向",
	"金额",
	"币种",
	"汇率",
	"原币金额",
	"数量",
	"单价",
	"结算方式名称",
	"结算日期",
	"结算票号",
	"业务日期",
	"员工编号",
	"员工姓名",
	"往来单位编号",
	"往来单位名称",
	"货品编号",
	"货品名称",
	"部门名称",
	"项目名称",
}

// ToRows flattens records into one row per entry. Records are numbered from
// one in the order given here, independent of any batch position. A record
// without entries still yields one row carrying only its header fields.
func ToRows(records []pipeline.VoucherRecord) [][]string {
	var rows [][]string
	for i := range records {
		rows = append(rows, recordRows(&records[i], i+1)...)
	}
	return rows
}

func recordRows(rec *pipeline.VoucherRecord, seq int) [][]string {
	header := []string{
		rec.VoucherDate,
		rec.VoucherType,
		strconv.Itoa(seq),
		rec.VoucherNo,
		rec.Preparer,
		numCell(rec.AttachmentCount),
		rec.FiscalYear,
	}

	if len(rec.Entries) == 0 {
		row := make([]string, len(Headers))
		copy(row, header)
		return [][]string{row}
	}

	rows := make([][]string, 0, len(rec.Entries))
	for i := range rec.Entries {
		e := &rec.Entries[i]
		row := make([]string, 0, len(Headers))
		row = append(row, header...)
		row = append(row,
			e.SubjectCode,
			e.SubjectName,
			e.Summary,
			e.Direction,
			numCell(e.Amount),
			e.Currency,
			numCell(e.ExchangeRate),
			numCell(e.OriginalAmount),
			numCell(e.Quantity),
			numCell(e.UnitPrice),
			e.SettlementMethod,
			e.SettlementDate,
			e.SettlementNo,
			e.BusinessDate,
			e.EmployeeNo,
			e.EmployeeName,
			e.PartnerNo,
			e.PartnerName,
			e.ProductNo,
			e.ProductName,
			e.Department,
			e.Project,
		)
		rows = append(rows, row)
	}
	return rows
}

// numCell renders a numeric cell, leaving it empty when the source value
// was absent.
func numCell(n pipeline.NullFloat) string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}

// WriteCSV writes the header row followed by the flattened records. A UTF-8
// BOM is emitted first so spreadsheet applications pick up the Chinese
// headers correctly.
func WriteCSV(w io.Writer, records []pipeline.VoucherRecord) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	for _, row := range ToRows(records) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
