package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/finman/internal/model"
)

func validProfileFields() map[string]string {
	return map[string]string{
		"age":              "30",
		"occupation":       "engineer",
		"monthly_income":   "5000",
		"monthly_expenses": "3000",
		"assets":           "savings 100000",
		"risk_preference":  "moderate",
	}
}

func TestBuild_Deterministic(t *testing.T) {
	// 同一入力からは常にバイト単位で同一のプロンプトが生成されること
	fields := validProfileFields()

	p1, err := Build(TemplateProfileAnalysis, fields)
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}
	p2, err := Build(TemplateProfileAnalysis, fields)
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}

	if p1.Text != p2.Text {
		t.Error("同一入力に対するプロンプトが一致しない")
	}
	if p1.CacheKey() != p2.CacheKey() {
		t.Error("同一入力に対するキャッシュキーが一致しない")
	}
}

func TestBuild_ProfileAnalysis_ContainsPreambleAndFields(t *testing.T) {
	p, err := Build(TemplateProfileAnalysis, validProfileFields())
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}

	if !strings.HasPrefix(p.Text, "As a professional financial advisor") {
		t.Error("前文（役割指定）がプロンプトの先頭にない")
	}
	if !strings.Contains(p.Text, "1. Basic Financial Status Analysis") {
		t.Error("番号付き分析観点がプロンプトに含まれない")
	}
	if !strings.Contains(p.Text, "age: 30\n") {
		t.Error("フィールド行 age が含まれない")
	}
	if !strings.Contains(p.Text, "risk_preference: moderate\n") {
		t.Error("フィールド行 risk_preference が含まれない")
	}
}

func TestBuild_ProfileAnalysis_MissingRequiredField(t *testing.T) {
	fields := validProfileFields()
	delete(fields, "assets")

	_, err := Build(TemplateProfileAnalysis, fields)
	if err == nil {
		t.Fatal("必須フィールド欠落でエラーが返らなかった")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("エラー型が *model.APIError ではない: %T", err)
	}
	if apiErr.Code != model.ErrCodeMissingFields {
		t.Errorf("エラーコード = %s, want %s", apiErr.Code, model.ErrCodeMissingFields)
	}
	if !strings.Contains(apiErr.Message, "assets") {
		t.Errorf("エラーメッセージに欠落フィールド名が含まれない: %s", apiErr.Message)
	}
}

func TestBuild_ProfileAnalysis_EmptyFieldTreatedAsMissing(t *testing.T) {
	fields := validProfileFields()
	fields["occupation"] = ""

	_, err := Build(TemplateProfileAnalysis, fields)
	if err == nil {
		t.Fatal("空文字列の必須フィールドでエラーが返らなかった")
	}
}

func TestBuild_Simulation_UnknownPlaceholderForMissingProfile(t *testing.T) {
	// プロフィール項目は任意（欠落時はUnknown）、投資パラメータは必須
	fields := map[string]string{
		"initial_amount":     "$1000.00",
		"annual_rate":        "5%",
		"years":              "10 years",
		"monthly_investment": "$8.33",
		"future_value":       "$1628.89",
	}

	p, err := Build(TemplateSimulation, fields)
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}

	if !strings.Contains(p.Text, "- Age: Unknown\n") {
		t.Error("欠落プロフィール項目がUnknownで埋められていない")
	}
	if !strings.Contains(p.Text, "- Expected Final Amount: $1628.89\n") {
		t.Error("計算済みの将来価値がプロンプトに含まれない")
	}
	if !strings.Contains(p.Text, "10. Regular Review and Adjustment Plan") {
		t.Error("助言項目リストがプロンプトに含まれない")
	}
}

func TestBuild_Simulation_MissingParameters(t *testing.T) {
	_, err := Build(TemplateSimulation, map[string]string{
		"initial_amount": "$1000.00",
	})
	if err == nil {
		t.Fatal("投資パラメータ欠落でエラーが返らなかった")
	}
}

func TestBuild_Chat_Layout(t *testing.T) {
	p, err := Build(TemplateChat, map[string]string{
		"conversation_history": "User: hello\nAdvisor: hi",
		"message":              "how should I invest?",
	})
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}

	want := "User: hello\nAdvisor: hi\nUser: how should I invest?"
	if p.Text != want {
		t.Errorf("チャットプロンプト = %q, want %q", p.Text, want)
	}
}

func TestBuild_Chat_MissingMessage(t *testing.T) {
	_, err := Build(TemplateChat, map[string]string{"conversation_history": "..."})
	if err == nil {
		t.Fatal("message欠落でエラーが返らなかった")
	}
}

func TestBuild_CustomPlan_OmitsEmptyCurrentFinance(t *testing.T) {
	fields := map[string]string{
		"goal_type":     "house purchase",
		"target_amount": "500000",
		"time_horizon":  "10 years",
	}

	p, err := Build(TemplateCustomPlan, fields)
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}
	if strings.Contains(p.Text, "Current Financial Status") {
		t.Error("current_financeが空の場合は行ごと省略されるべき")
	}

	fields["current_finance"] = "Income 5000, Expenses 3000, Assets 100000, Risk Profile moderate"
	p2, err := Build(TemplateCustomPlan, fields)
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}
	if !strings.Contains(p2.Text, "Current Financial Status: Income 5000") {
		t.Error("current_finance指定時に行が出力されない")
	}
}

func TestBuild_UpdateAdvice_SortedKeys(t *testing.T) {
	// マップの反復順序に依存せず、キーの辞書順で出力されること
	fields := map[string]string{
		"market_trend": "bullish",
		"assets":       "120000",
		"income":       "5500",
	}

	p1, err := Build(TemplateUpdateAdvice, fields)
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}

	assetsIdx := strings.Index(p1.Text, "assets:")
	incomeIdx := strings.Index(p1.Text, "income:")
	trendIdx := strings.Index(p1.Text, "market_trend:")
	if !(assetsIdx < incomeIdx && incomeIdx < trendIdx) {
		t.Errorf("キーが辞書順に出力されていない: %s", p1.Text)
	}

	for i := 0; i < 10; i++ {
		p2, err := Build(TemplateUpdateAdvice, fields)
		if err != nil {
			t.Fatalf("Build がエラーを返した: %v", err)
		}
		if p1.Text != p2.Text {
			t.Fatal("update_adviceプロンプトが決定的でない")
		}
	}
}

func TestCacheKey_DistinguishesTemplates(t *testing.T) {
	// 本文が同一でもテンプレートが異なればキーは衝突しない
	p1 := Prompt{Template: TemplateChat, Text: "same"}
	p2 := Prompt{Template: TemplateFinancialAdvice, Text: "same"}

	if p1.CacheKey() == p2.CacheKey() {
		t.Error("異なるテンプレート間でキャッシュキーが衝突している")
	}
}
