package chart

// subjectTable is the built-in 常用会计科目表. Order matters: fuzzy matching
// scans entries in this order and the first hit wins.
var subjectTable = []Entry{
	// 资产类
	{Code: "1001", Name: "库存现金"},
	{Code: "1002", Name: "银行存款"},
	{Code: "1101", Name: "交易性金融资产"},
	{Code: "1121", Name: "应收票据"},
	{Code: "1122", Name: "应收账款"},
	{Code: "1123", Name: "预付账款"},
	{Code: "1131", Name: "应收股利"},
	{Code: "1221", Name: "其他应收款"},
	{Code: "1231", Name: "坏账准备"},
	{Code: "1401", Name: "材料采购"},
	{Code: "1402", Name: "在途物资"},
	{Code: "1403", Name: "原材料"},
	{Code: "1404", Name: "材料成本差异"},
	{Code: "1405", Name: "库存商品"},
	{Code: "1411", Name: "周转材料"},
	{Code: "1471", Name: "存货跌价准备"},
	{Code: "1511", Name: "长期股权投资"},
	{Code: "1512", Name: "长期股权投资减值准备"},
	{Code: "1601", Name: "固定资产"},
	{Code: "1602", Name: "累计折旧"},
	{Code: "1603", Name: "固定资产减值准备"},
	{Code: "1604", Name: "在建工程"},
	{Code: "1606", Name: "固定资产清理"},
	{Code: "1701", Name: "无形资产"},
	{Code: "1702", Name: "累计摊销"},
	{Code: "1703", Name: "无形资产减值准备"},
	{Code: "1801", Name: "长期待摊费用"},
	{Code: "1901", Name: "待处理财产损溢"},

	// 负债类
	{Code: "2001", Name: "短期借款"},
	{Code: "2201", Name: "应付票据"},
	{Code: "2202", Name: "应付账款"},
	{Code: "2203", Name: "预收账款"},
	{Code: "2211", Name: "应付职工薪酬"},
	{Code: "2221", Name: "应交税费"},
	{Code: "2231", Name: "应付利息"},
	{Code: "2232", Name: "应付股利"},
	{Code: "2241", Name: "其他应付款"},
	{Code: "2501", Name: "长期借款"},
	{Code: "2502", Name: "应付债券"},
	{Code: "2701", Name: "长期应付款"},
	{Code: "2801", Name: "预计负债"},
	{Code: "2901", Name: "递延收益"},

	// 所有者权益类
	{Code: "4001", Name: "实收资本"},
	{Code: "4002", Name: "资本公积"},
	{Code: "4101", Name: "盈余公积"},
	{Code: "4103", Name: "本年利润"},
	{Code: "4104", Name: "利润分配"},
	{Code: "4201", Name: "其他综合收益"},

	// 成本类
	{Code: "5001", Name: "生产成本"},
	{Code: "5101", Name: "制造费用"},

	// 损益类
	{Code: "6001", Name: "主营业务收入"},
	{Code: "6051", Name: "其他业务收入"},
	{Code: "6101", Name: "公允价值变动损益"},
	{Code: "6111", Name: "投资收益"},
	{Code: "6301", Name: "营业外收入"},
	{Code: "6401", Name: "主营业务成本"},
	{Code: "6402", Name: "其他业务成本"},
	{Code: "6403", Name: "营业税金及附加"},
	{Code: "6601", Name: "销售费用"},
	{Code: "6602", Name: "管理费用"},
	{Code: "6603", Name: "财务费用"},
	{Code: "6701", Name: "资产减值损失"},
	{Code: "6711", Name: "营业外支出"},
	{Code: "6801", Name: "所得税费用"},
}

// categoryNames maps the first digit of a subject code to its category.
var categoryNames = map[byte]string{
	'1': "资产类",
	'2': "负债类",
	'4': "所有者权益类",
	'5': "成本类",
	'6': "损益类",
}
