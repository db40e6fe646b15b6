// Package prompt は型付き入力から生成APIに渡すプロンプトを組み立てる。
// 同一入力に対して常にバイト単位で同一のテキストを出力する（キャッシュキーの安定性に必要）。
package prompt

// Template はプロンプトの用途別テンプレートを表す。
type Template int

const (
	// TemplateProfileAnalysis はプロフィール分析用テンプレート。
	TemplateProfileAnalysis Template = iota
	// TemplateFinancialAdvice は財務アドバイス生成用テンプレート。
	TemplateFinancialAdvice
	// TemplateChat はチャット応答用テンプレート。
	TemplateChat
	// TemplateCustomPlan は目標達成プラン生成用テンプレート。
	TemplateCustomPlan
	// TemplateSimulation は投資シミュレーション用テンプレート。
	TemplateSimulation
	// TemplateUpdateAdvice はアドバイス更新用テンプレート。
	TemplateUpdateAdvice
)

// String はテンプレートの識別子を返す。キャッシュキーの一部として使用される。
func (t Template) String() string {
	switch t {
	case TemplateProfileAnalysis:
		return "profile_analysis"
	case TemplateFinancialAdvice:
		return "financial_advice"
	case TemplateChat:
		return "chat"
	case TemplateCustomPlan:
		return "custom_plan"
	case TemplateSimulation:
		return "simulation"
	case TemplateUpdateAdvice:
		return "update_advice"
	default:
		return "unknown"
	}
}

// Prompt は生成APIに渡す確定済みプロンプト。Build後は不変として扱う。
type Prompt struct {
	Template Template
	Text     string
}

// CacheKey はテンプレート識別子とプロンプト本文から成るキャッシュキーを返す。
// テンプレート識別子を含めることで、異なるテンプレートが偶然同一の本文を
// 生成した場合のキー衝突を防ぐ。
func (p Prompt) CacheKey() string {
	return p.Template.String() + "\x00" + p.Text
}

// fieldSpec はテンプレート内の1行分の定義。
// keyが空文字列の場合はlabelをそのまま1行として出力する（セクション見出し等）。
type fieldSpec struct {
	label       string
	key         string
	required    bool
	placeholder string // 任意フィールドが空の場合に使用する値
	omitIfEmpty bool   // 値が空なら行ごと省略する
}

// templateSpec はテンプレート全体の定義。固定の前文と順序付きの行リストを持つ。
type templateSpec struct {
	preamble string
	fields   []fieldSpec
}

// profileAnalysisPreamble はプロフィール分析の前文。
// 役割の指定と番号付きの分析観点により、モデルの応答構造を安定させる。
const profileAnalysisPreamble = `As a professional financial advisor, please provide a comprehensive user profile analysis and personalized financial advice based on the following information.
Please analyze from these aspects:

1. Basic Financial Status Analysis
2. Income and Expense Structure Assessment
3. Risk Tolerance Assessment
4. Investment Recommendations
5. Financial Goal Planning
6. Risk Warnings

User Information:
`

// simulationAdvicePoints はシミュレーションで求める助言項目の一覧。
const simulationAdvicePoints = `
Please provide the following detailed advice:
1. Investment Portfolio Allocation (based on user risk preference)
2. Specific Investment Product Recommendations and Ratios
3. Phased Investment Plan
4. Risk Control Measures
5. Regular Adjustment Suggestions
6. Market Volatility Response Strategies
7. Tax and Fee Considerations
8. Investment Goal Key Milestones
9. Emergency Fund Arrangements
10. Regular Review and Adjustment Plan

Please ensure the advice fully aligns with the user's risk tolerance and financial status.`

// templates は各テンプレートの定義。行の順序は固定であり変更してはならない。
var templates = map[Template]templateSpec{
	TemplateProfileAnalysis: {
		preamble: profileAnalysisPreamble,
		fields: []fieldSpec{
			{label: "age", key: "age", required: true},
			{label: "occupation", key: "occupation", required: true},
			{label: "monthly_income", key: "monthly_income", required: true},
			{label: "monthly_expenses", key: "monthly_expenses", required: true},
			{label: "assets", key: "assets", required: true},
			{label: "risk_preference", key: "risk_preference", required: true},
		},
	},
	TemplateFinancialAdvice: {
		preamble: "Generate personalized financial advice based on the following data:\n",
		fields: []fieldSpec{
			{label: "Income", key: "income"},
			{label: "Expenses", key: "expenses"},
			{label: "Assets", key: "assets"},
			{label: "Risk Profile", key: "risk_profile"},
		},
	},
	TemplateCustomPlan: {
		preamble: "Based on the following financial goals and current financial status, please provide a reasonable achievement plan and risk warnings:\n",
		fields: []fieldSpec{
			{label: "Goal Type", key: "goal_type"},
			{label: "Target Amount", key: "target_amount"},
			{label: "Time Horizon", key: "time_horizon"},
			// current_financeは呼び出し側が整形済みの1行を渡し、空なら行ごと省略する
			{label: "Current Financial Status", key: "current_finance", omitIfEmpty: true},
		},
	},
	TemplateSimulation: {
		preamble: "As a professional investment advisor, please create a detailed investment plan based on the following user information and investment parameters:\n\nUser Profile Information:\n",
		fields: []fieldSpec{
			{label: "- Age", key: "age", placeholder: "Unknown"},
			{label: "- Occupation", key: "occupation", placeholder: "Unknown"},
			{label: "- Monthly Income", key: "monthly_income", placeholder: "Unknown"},
			{label: "- Monthly Expenses", key: "monthly_expenses", placeholder: "Unknown"},
			{label: "- Asset Status", key: "assets", placeholder: "Unknown"},
			{label: "- Risk Preference", key: "risk_preference", placeholder: "Unknown"},
			{key: "", label: "\nInvestment Parameters:"},
			{label: "- Planned Investment Amount", key: "initial_amount", required: true},
			{label: "- Expected Annual Return Rate", key: "annual_rate", required: true},
			{label: "- Investment Period", key: "years", required: true},
			{label: "- Monthly Average Investment", key: "monthly_investment", required: true},
			{label: "- Expected Final Amount", key: "future_value", required: true},
			{key: "", label: simulationAdvicePoints},
		},
	},
}
