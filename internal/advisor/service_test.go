package advisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/finman/internal/gemini"
	"github.com/hitoshi/finman/internal/model"
	"github.com/hitoshi/finman/internal/prompt"
	"github.com/hitoshi/finman/internal/repository"
)

// fakeGenerator は固定の応答またはエラーを返すテスト用Generator。
type fakeGenerator struct {
	text    string
	err     error
	prompts []prompt.Prompt
}

func (f *fakeGenerator) GenerateText(ctx context.Context, p prompt.Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(gen *fakeGenerator) (*Service, *repository.MemoryProfileRepo) {
	repo := repository.NewMemoryProfileRepo()
	s := NewService(gen, repo, testLogger())
	s.now = func() time.Time {
		return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	}
	return s, repo
}

func validProfileFields() map[string]string {
	return map[string]string{
		"age":              "30",
		"occupation":       "engineer",
		"monthly_income":   "5000",
		"monthly_expenses": "3000",
		"assets":           "20000",
		"risk_preference":  "moderate",
	}
}

func TestProfileQuestions(t *testing.T) {
	s, _ := newTestService(&fakeGenerator{})

	questions := s.ProfileQuestions()
	if len(questions) != 6 {
		t.Fatalf("len(questions) = %d, want 6", len(questions))
	}
	if questions[0] != "What is your age?" {
		t.Errorf("questions[0] = %q", questions[0])
	}
}

func TestAnalyzeProfile_SavesAndReturns(t *testing.T) {
	gen := &fakeGenerator{text: "balanced financial outlook"}
	s, repo := newTestService(gen)

	got, err := s.AnalyzeProfile(context.Background(), "session-1", validProfileFields())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if got.Analysis != "balanced financial outlook" {
		t.Errorf("Analysis = %q", got.Analysis)
	}
	if got.ProfileData["age"] != "30" {
		t.Errorf("ProfileData[age] = %q", got.ProfileData["age"])
	}
	if got.Timestamp == "" {
		t.Error("Timestampが空")
	}

	// セッションにプロフィールが保存されている
	profile, err := repo.Find(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if profile == nil {
		t.Fatal("プロフィールが保存されていない")
	}
	if profile.Analysis != "balanced financial outlook" {
		t.Errorf("保存されたAnalysis = %q", profile.Analysis)
	}
	if profile.RiskPreference != "moderate" {
		t.Errorf("RiskPreference = %q", profile.RiskPreference)
	}
}

func TestAnalyzeProfile_MissingFields(t *testing.T) {
	gen := &fakeGenerator{text: "unused"}
	s, _ := newTestService(gen)

	fields := validProfileFields()
	delete(fields, "assets")

	_, err := s.AnalyzeProfile(context.Background(), "session-1", fields)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorを期待したが %T", err)
	}
	if apiErr.Code != model.ErrCodeMissingFields {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeMissingFields)
	}
	if len(gen.prompts) != 0 {
		t.Error("バリデーション失敗時にも生成が呼ばれた")
	}
}

func TestAnalyzeProfile_Overwrites(t *testing.T) {
	gen := &fakeGenerator{text: "analysis"}
	s, repo := newTestService(gen)
	ctx := context.Background()

	s.AnalyzeProfile(ctx, "session-1", validProfileFields())

	updated := validProfileFields()
	updated["age"] = "45"
	s.AnalyzeProfile(ctx, "session-1", updated)

	profile, _ := repo.Find(ctx, "session-1")
	if profile.Age != "45" {
		t.Errorf("再分析で上書きされていない: Age = %q", profile.Age)
	}
}

func TestChat_MissingMessage(t *testing.T) {
	s, _ := newTestService(&fakeGenerator{text: "unused"})

	_, err := s.Chat(context.Background(), "", "history")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMissingFields {
		t.Errorf("err = %v, want MISSING_FIELDS", err)
	}
}

func TestChat_IncludesHistory(t *testing.T) {
	gen := &fakeGenerator{text: "reply"}
	s, _ := newTestService(gen)

	got, err := s.Chat(context.Background(), "How should I save?", "Advisor: Hello")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if got.Response != "reply" {
		t.Errorf("Response = %q", got.Response)
	}
	want := "Advisor: Hello\nUser: How should I save?"
	if gen.prompts[0].Text != want {
		t.Errorf("prompt = %q, want %q", gen.prompts[0].Text, want)
	}
}

func TestCustomPlan_OmitsEmptyFinance(t *testing.T) {
	gen := &fakeGenerator{text: "plan"}
	s, _ := newTestService(gen)

	_, err := s.CustomPlan(context.Background(), CustomPlanInput{
		GoalType:     "house purchase",
		TargetAmount: "300000",
		TimeHorizon:  "10 years",
	})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if strings.Contains(gen.prompts[0].Text, "Current Financial Status") {
		t.Error("財務状況なしでも行が出力された")
	}

	_, err = s.CustomPlan(context.Background(), CustomPlanInput{
		GoalType:     "house purchase",
		TargetAmount: "300000",
		TimeHorizon:  "10 years",
		CurrentFinance: &CurrentFinance{
			Income: "5000", Expenses: "3000", Assets: "20000", RiskProfile: "moderate",
		},
	})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	want := "Current Financial Status: Income 5000, Expenses 3000, Assets 20000, Risk Profile moderate"
	if !strings.Contains(gen.prompts[1].Text, want) {
		t.Errorf("財務状況の行が無い:\n%s", gen.prompts[1].Text)
	}
}

func TestSimulate_RequiresProfile(t *testing.T) {
	s, _ := newTestService(&fakeGenerator{text: "unused"})

	_, _, err := s.Simulate(context.Background(), "session-1", SimulationInput{
		InitialAmount: 1000, AnnualRate: 5, Years: 10,
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProfileRequired {
		t.Errorf("err = %v, want PROFILE_REQUIRED", err)
	}
}

func TestSimulate_Success(t *testing.T) {
	gen := &fakeGenerator{text: "detailed investment plan"}
	s, _ := newTestService(gen)
	ctx := context.Background()

	if _, err := s.AnalyzeProfile(ctx, "session-1", validProfileFields()); err != nil {
		t.Fatalf("AnalyzeProfile: %v", err)
	}

	plan, warning, err := s.Simulate(ctx, "session-1", SimulationInput{
		InitialAmount: 1000, AnnualRate: 5, Years: 10,
	})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if warning != "" {
		t.Errorf("警告は不要のはず: %q", warning)
	}
	if math.Abs(plan.ProjectedFinalAmount-1628.89) > 0.01 {
		t.Errorf("ProjectedFinalAmount = %v, want ≈1628.89", plan.ProjectedFinalAmount)
	}
	if math.Abs(plan.MonthlyInvestment-8.33) > 0.01 {
		t.Errorf("MonthlyInvestment = %v", plan.MonthlyInvestment)
	}
	if plan.DetailedPlan != "detailed investment plan" {
		t.Errorf("DetailedPlan = %q", plan.DetailedPlan)
	}
	if plan.UserProfileSummary.Age != "30" || plan.UserProfileSummary.RiskPreference != "moderate" {
		t.Errorf("UserProfileSummary = %+v", plan.UserProfileSummary)
	}

	// プロンプトには整形済みのパラメータと計算結果が含まれる
	text := gen.prompts[len(gen.prompts)-1].Text
	for _, want := range []string{
		"- Planned Investment Amount: $1,000.00",
		"- Expected Annual Return Rate: 5%",
		"- Investment Period: 10 years",
		"- Expected Final Amount: $1,628.89",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("プロンプトに %q が含まれない:\n%s", want, text)
		}
	}
}

func TestSimulate_GenerationFailureIsPartialSuccess(t *testing.T) {
	gen := &fakeGenerator{text: "profile analysis"}
	s, _ := newTestService(gen)
	ctx := context.Background()

	s.AnalyzeProfile(ctx, "session-1", validProfileFields())

	gen.err = &gemini.UpstreamError{LastKind: gemini.FailureTimeout, Attempts: 3, Err: errors.New("deadline")}
	plan, warning, err := s.Simulate(ctx, "session-1", SimulationInput{
		InitialAmount: 1000, AnnualRate: 5, Years: 10,
	})
	if err != nil {
		t.Fatalf("部分成功を期待したがエラー: %v", err)
	}
	if warning == "" {
		t.Error("警告メッセージが無い")
	}
	if plan.DetailedPlan != "" {
		t.Errorf("DetailedPlanは空のはず: %q", plan.DetailedPlan)
	}
	if math.Abs(plan.ProjectedFinalAmount-1628.89) > 0.01 {
		t.Errorf("数値予測が欠落している: %v", plan.ProjectedFinalAmount)
	}
}

func TestSimulate_RejectsNegativeInputs(t *testing.T) {
	s, _ := newTestService(&fakeGenerator{text: "unused"})
	ctx := context.Background()

	tests := []struct {
		name  string
		input SimulationInput
	}{
		{name: "負の投資金額", input: SimulationInput{InitialAmount: -100, AnnualRate: 5, Years: 10}},
		{name: "負の投資期間", input: SimulationInput{InitialAmount: 1000, AnnualRate: 5, Years: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Simulate(ctx, "session-1", tt.input)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidParameter {
				t.Errorf("err = %v, want INVALID_PARAMETER", err)
			}
		})
	}
}

func TestTranslateGenerationError(t *testing.T) {
	gen := &fakeGenerator{}
	s, _ := newTestService(gen)
	ctx := context.Background()

	fields := map[string]string{"income": "5000"}

	gen.err = &gemini.AttemptError{Kind: gemini.FailureConfiguration, Err: errors.New("no key")}
	_, err := s.Advise(ctx, fields)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAPIKeyMissing {
		t.Errorf("設定エラーの変換が不正: %v", err)
	}

	gen.err = &gemini.UpstreamError{LastKind: gemini.FailureMalformed, Attempts: 3, Err: errors.New("bad shape")}
	_, err = s.Advise(ctx, fields)
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUpstreamUnavailable {
		t.Errorf("上流エラーの変換が不正: %v", err)
	}
	if !strings.Contains(apiErr.Message, "malformed") {
		t.Errorf("失敗分類がメッセージに含まれない: %q", apiErr.Message)
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1000, "1,000.00"},
		{1628.894627, "1,628.89"},
		{8.333333, "8.33"},
		{0, "0.00"},
		{1234567.5, "1,234,567.50"},
		{-1000, "-1,000.00"},
	}
	for _, tt := range tests {
		if got := formatMoney(tt.in); got != tt.want {
			t.Errorf("formatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
