package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hzhu/voucher-scan/internal/chart"
)

// systemPrompt frames the extraction exchange.
const systemPrompt = "你是一个专业的财务凭证识别助手，擅长从OCR文本中提取结构化的财务数据。"

// recognitionPrompt is the extraction prompt. It embeds the full chart of
// accounts and the normalized OCR text, and pins the exact JSON shape the
// parser expects.
const recognitionPrompt = `你是一个专业的财务凭证识别助手。请根据OCR识别的凭证文本内容，提取并整理成结构化的财务凭证数据。

## 会计科目表（请严格按照此表匹配科目编码和名称）：
%s

## OCR识别的凭证内容：
%s

## 请按照以下JSON格式输出识别结果（可能有多条分录，请全部提取）：
` + "```json" + `
{
    "voucher_date": "编制日期，格式YYYY-MM-DD",
    "voucher_type": "凭证类型，如：记账凭证、收款凭证、付款凭证、转账凭证",
    "voucher_no": "凭证号",
    "preparer": "制单人",
    "attachment_count": "附件张数，数字",
    "fiscal_year": "会计年度，如202511",
    "entries": [
        {
            "subject_code": "科目编码，必须从会计科目表中匹配",
            "subject_name": "科目名称，必须从会计科目表中匹配",
            "summary": "凭证摘要",
            "direction": "借贷方向，借或贷",
            "amount": "金额，数字",
            "currency": "币种，默认人民币",
            "exchange_rate": "汇率，默认1",
            "original_amount": "原币金额，数字",
            "quantity": "数量，数字或空",
            "unit_price": "单价，数字或空",
            "settlement_method": "结算方式名称",
            "settlement_date": "结算日期",
            "settlement_no": "结算票号",
            "business_date": "业务日期",
            "employee_no": "员工编号",
            "employee_name": "员工姓名",
            "partner_no": "往来单位编号",
            "partner_name": "往来单位名称",
            "product_no": "货品编号",
            "product_name": "货品名称",
            "department": "部门名称",
            "project": "项目名称"
        }
    ]
}
` + "```" + `

## 注意事项：
1. 科目编码和科目名称必须严格匹配上面提供的会计科目表
2. 如果凭证中的科目名称与科目表不完全匹配，请选择最接近的科目
3. 金额必须是数字，不要包含货币符号
4. 如果某个字段无法识别，请填写空字符串
5. 借贷方向只能是"借"或"贷"
6. 请确保借贷金额平衡

只输出JSON，不要输出其他内容。`

// BuildSubjectsTable renders the chart of accounts as "code: name" lines
// sorted by code, the shape the prompt embeds.
func BuildSubjectsTable(reg *chart.Registry) string {
	entries := reg.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Code)
		b.WriteString(": ")
		b.WriteString(e.Name)
	}
	return b.String()
}

// buildPrompt assembles the full user prompt for one extraction call.
func buildPrompt(reg *chart.Registry, ocrText string) string {
	return fmt.Sprintf(recognitionPrompt, BuildSubjectsTable(reg), ocrText)
}
