// Package advisor は財務アドバイス生成のユースケースを実装する。
// プロンプト組み立て・プロフィール永続化・決定的な複利計算を束ね、
// 文章生成は生成クライアントへ委譲する。
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/finman/internal/gemini"
	"github.com/hitoshi/finman/internal/model"
	"github.com/hitoshi/finman/internal/projection"
	"github.com/hitoshi/finman/internal/prompt"
	"github.com/hitoshi/finman/internal/repository"
)

// simulationWarning はシミュレーションの数値計算が成功し、
// 文章生成のみ失敗した場合にユーザーへ提示する警告。
const simulationWarning = "数値予測は完了しましたが、詳細プランの生成に失敗しました。しばらく待ってから再度お試しください"

// profileQuestions はプロフィール収集時にUIへ提示する質問一覧。
var profileQuestions = []string{
	"What is your age?",
	"What is your occupation?",
	"What is your monthly income?",
	"What are your monthly expenses?",
	"What is your asset status (e.g., savings, real estate)?",
	"What is your risk preference (conservative, moderate, or aggressive)?",
}

// ProfileAnalysis はプロフィール分析の応答ペイロード。
type ProfileAnalysis struct {
	Analysis    string            `json:"analysis"`
	ProfileData map[string]string `json:"profile_data"`
	Timestamp   string            `json:"timestamp"`
}

// FinancialAdvice は財務アドバイス生成の応答ペイロード。
type FinancialAdvice struct {
	Advice string `json:"financial_advice"`
}

// ChatReply はチャットの応答ペイロード。
type ChatReply struct {
	Response string `json:"response"`
}

// CustomPlanResult は目標達成プラン生成の応答ペイロード。
type CustomPlanResult struct {
	Plan string `json:"custom_plan"`
}

// UpdatedAdvice はアドバイス更新の応答ペイロード。
type UpdatedAdvice struct {
	Advice string `json:"updated_advice"`
}

// CurrentFinance は目標達成プランに添える現在の財務状況。
type CurrentFinance struct {
	Income      string `json:"income"`
	Expenses    string `json:"expenses"`
	Assets      string `json:"assets"`
	RiskProfile string `json:"risk_profile"`
}

// CustomPlanInput は目標達成プラン生成の入力。
type CustomPlanInput struct {
	GoalType       string
	TargetAmount   string
	TimeHorizon    string
	CurrentFinance *CurrentFinance
}

// SimulationInput は投資シミュレーションの入力パラメータ。
type SimulationInput struct {
	InitialAmount float64
	AnnualRate    float64
	Years         int
}

// ProfileSummary はシミュレーション応答に含めるプロフィールの要約。
type ProfileSummary struct {
	Age            string `json:"age"`
	RiskPreference string `json:"risk_preference"`
	MonthlyIncome  string `json:"monthly_income"`
}

// InvestmentPlan は投資シミュレーションの応答ペイロード。
// 数値は決定的な複利計算の結果であり、生成モデルには委譲しない。
type InvestmentPlan struct {
	InitialInvestment    float64        `json:"initial_investment"`
	AnnualReturnRate     float64        `json:"annual_return_rate"`
	InvestmentPeriod     int            `json:"investment_period"`
	MonthlyInvestment    float64        `json:"monthly_investment"`
	ProjectedFinalAmount float64        `json:"projected_final_amount"`
	UserProfileSummary   ProfileSummary `json:"user_profile_summary"`
	DetailedPlan         string         `json:"detailed_plan"`
}

// Service はアドバイス生成ユースケースのオーケストレーター。
type Service struct {
	generator gemini.Generator
	profiles  repository.ProfileRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewService は新しいServiceを生成する。
func NewService(generator gemini.Generator, profiles repository.ProfileRepository, logger *slog.Logger) *Service {
	return &Service{
		generator: generator,
		profiles:  profiles,
		logger:    logger,
		now:       time.Now,
	}
}

// ProfileQuestions はプロフィール収集用の質問一覧を返す。
func (s *Service) ProfileQuestions() []string {
	return profileQuestions
}

// AnalyzeProfile はユーザープロフィールを分析し、結果をセッションに保存する。
// 既存のプロフィールはマージせず上書きする。
func (s *Service) AnalyzeProfile(ctx context.Context, sessionID string, fields map[string]string) (ProfileAnalysis, error) {
	p, err := prompt.Build(prompt.TemplateProfileAnalysis, fields)
	if err != nil {
		return ProfileAnalysis{}, err
	}

	analysis, err := s.generator.GenerateText(ctx, p)
	if err != nil {
		return ProfileAnalysis{}, s.translateGenerationError(err)
	}

	now := s.now()
	profile := &model.UserProfile{
		Age:             fields["age"],
		Occupation:      fields["occupation"],
		MonthlyIncome:   fields["monthly_income"],
		MonthlyExpenses: fields["monthly_expenses"],
		Assets:          fields["assets"],
		RiskPreference:  fields["risk_preference"],
		Analysis:        analysis,
		CreatedAt:       now,
	}
	if err := s.profiles.Save(ctx, sessionID, profile); err != nil {
		return ProfileAnalysis{}, fmt.Errorf("failed to save profile: %w", err)
	}

	data := make(map[string]string, len(model.ProfileRequiredFields))
	for _, key := range model.ProfileRequiredFields {
		data[key] = fields[key]
	}
	return ProfileAnalysis{
		Analysis:    analysis,
		ProfileData: data,
		Timestamp:   now.Format(time.RFC3339),
	}, nil
}

// Advise は財務データに基づくパーソナライズドアドバイスを生成する。
func (s *Service) Advise(ctx context.Context, fields map[string]string) (FinancialAdvice, error) {
	p, err := prompt.Build(prompt.TemplateFinancialAdvice, fields)
	if err != nil {
		return FinancialAdvice{}, err
	}

	advice, err := s.generator.GenerateText(ctx, p)
	if err != nil {
		return FinancialAdvice{}, s.translateGenerationError(err)
	}
	return FinancialAdvice{Advice: advice}, nil
}

// Chat は会話履歴を踏まえてユーザーの発言に応答する。
// 履歴は呼び出し側が保持し、リクエストごとに渡す。
func (s *Service) Chat(ctx context.Context, message, history string) (ChatReply, error) {
	p, err := prompt.Build(prompt.TemplateChat, map[string]string{
		"message":              message,
		"conversation_history": history,
	})
	if err != nil {
		return ChatReply{}, err
	}

	response, err := s.generator.GenerateText(ctx, p)
	if err != nil {
		return ChatReply{}, s.translateGenerationError(err)
	}
	return ChatReply{Response: response}, nil
}

// CustomPlan は財務目標の達成プランを生成する。
func (s *Service) CustomPlan(ctx context.Context, input CustomPlanInput) (CustomPlanResult, error) {
	fields := map[string]string{
		"goal_type":     input.GoalType,
		"target_amount": input.TargetAmount,
		"time_horizon":  input.TimeHorizon,
	}
	if input.CurrentFinance != nil {
		cf := input.CurrentFinance
		fields["current_finance"] = fmt.Sprintf("Income %s, Expenses %s, Assets %s, Risk Profile %s",
			cf.Income, cf.Expenses, cf.Assets, cf.RiskProfile)
	}

	p, err := prompt.Build(prompt.TemplateCustomPlan, fields)
	if err != nil {
		return CustomPlanResult{}, err
	}

	plan, err := s.generator.GenerateText(ctx, p)
	if err != nil {
		return CustomPlanResult{}, s.translateGenerationError(err)
	}
	return CustomPlanResult{Plan: plan}, nil
}

// UpdateAdvice は最新情報に基づいて財務アドバイスを更新する。
// 任意のキー/値をそのままプロンプトに反映する。
func (s *Service) UpdateAdvice(ctx context.Context, fields map[string]string) (UpdatedAdvice, error) {
	p, err := prompt.Build(prompt.TemplateUpdateAdvice, fields)
	if err != nil {
		return UpdatedAdvice{}, err
	}

	advice, err := s.generator.GenerateText(ctx, p)
	if err != nil {
		return UpdatedAdvice{}, s.translateGenerationError(err)
	}
	return UpdatedAdvice{Advice: advice}, nil
}

// Simulate は投資シミュレーションを実行する。
// 将来価値の計算は常にローカルで行い、生成モデルには委譲しない。
// 数値計算の成功後に文章生成が失敗した場合は、詳細プランを空にして
// 警告メッセージとともに部分的な成功として返す。
func (s *Service) Simulate(ctx context.Context, sessionID string, input SimulationInput) (InvestmentPlan, string, error) {
	if input.InitialAmount < 0 {
		return InvestmentPlan{}, "", model.NewInvalidParameterError("投資金額は0以上である必要があります")
	}
	if input.Years < 0 {
		return InvestmentPlan{}, "", model.NewInvalidParameterError("投資期間は0以上である必要があります")
	}

	profile, err := s.profiles.Find(ctx, sessionID)
	if err != nil {
		return InvestmentPlan{}, "", fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return InvestmentPlan{}, "", model.NewProfileRequiredError()
	}

	result := projection.Compute(input.InitialAmount, input.AnnualRate, input.Years)

	plan := InvestmentPlan{
		InitialInvestment:    input.InitialAmount,
		AnnualReturnRate:     input.AnnualRate,
		InvestmentPeriod:     input.Years,
		MonthlyInvestment:    result.MonthlyInvestment,
		ProjectedFinalAmount: result.FutureValue,
		UserProfileSummary: ProfileSummary{
			Age:            profile.Age,
			RiskPreference: profile.RiskPreference,
			MonthlyIncome:  profile.MonthlyIncome,
		},
	}

	p, err := prompt.Build(prompt.TemplateSimulation, map[string]string{
		"age":                profile.Age,
		"occupation":         profile.Occupation,
		"monthly_income":     profile.MonthlyIncome,
		"monthly_expenses":   profile.MonthlyExpenses,
		"assets":             profile.Assets,
		"risk_preference":    profile.RiskPreference,
		"initial_amount":     "$" + formatMoney(input.InitialAmount),
		"annual_rate":        formatNumber(input.AnnualRate) + "%",
		"years":              fmt.Sprintf("%d years", input.Years),
		"monthly_investment": "$" + formatMoney(result.MonthlyInvestment),
		"future_value":       "$" + formatMoney(result.FutureValue),
	})
	if err != nil {
		return InvestmentPlan{}, "", err
	}

	advice, err := s.generator.GenerateText(ctx, p)
	if err != nil {
		// 数値予測は確定済みのため、文章生成の失敗は警告付きの部分成功とする
		s.logger.Warn("シミュレーション文章生成失敗",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return plan, simulationWarning, nil
	}

	plan.DetailedPlan = advice
	return plan, "", nil
}

// translateGenerationError は生成クライアントのエラーをAPIエラーへ変換する。
// 上流の生エラー内容はユーザーへ露出させない。
func (s *Service) translateGenerationError(err error) error {
	var aerr *gemini.AttemptError
	if errors.As(err, &aerr) && aerr.Kind == gemini.FailureConfiguration {
		return model.NewConfigurationError()
	}

	var uerr *gemini.UpstreamError
	if errors.As(err, &uerr) {
		return model.NewUpstreamUnavailableError(uerr.LastKind.String())
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewUpstreamUnavailableError("unknown")
}

// formatMoney は金額を3桁区切り・小数2桁で整形する（例: 1628.89 → "1,628.89"）。
func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}

// formatNumber は数値を余分なゼロを付けずに整形する（例: 5.0 → "5", 4.5 → "4.5"）。
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
