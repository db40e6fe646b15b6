package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hitoshi/finman/internal/advisor"
	"github.com/hitoshi/finman/internal/middleware"
	"github.com/hitoshi/finman/internal/model"
)

// AdvisorServiceInterface はアドバイスハンドラーが必要とするサービスインターフェース。
type AdvisorServiceInterface interface {
	// ProfileQuestions はプロフィール収集用の質問一覧を返す。
	ProfileQuestions() []string
	// AnalyzeProfile はプロフィールを分析し、結果をセッションに保存する。
	AnalyzeProfile(ctx context.Context, sessionID string, fields map[string]string) (advisor.ProfileAnalysis, error)
	// Advise は財務データに基づくアドバイスを生成する。
	Advise(ctx context.Context, fields map[string]string) (advisor.FinancialAdvice, error)
	// Chat は会話履歴を踏まえてユーザーの発言に応答する。
	Chat(ctx context.Context, message, history string) (advisor.ChatReply, error)
	// CustomPlan は財務目標の達成プランを生成する。
	CustomPlan(ctx context.Context, input advisor.CustomPlanInput) (advisor.CustomPlanResult, error)
	// UpdateAdvice は最新情報に基づいてアドバイスを更新する。
	UpdateAdvice(ctx context.Context, fields map[string]string) (advisor.UpdatedAdvice, error)
	// Simulate は投資シミュレーションを実行する。警告文字列は部分成功を表す。
	Simulate(ctx context.Context, sessionID string, input advisor.SimulationInput) (advisor.InvestmentPlan, string, error)
}

// AdvisorHandler は財務アドバイス関連のHTTPハンドラー。
type AdvisorHandler struct {
	service AdvisorServiceInterface
}

// NewAdvisorHandler はAdvisorHandlerを生成する。
func NewAdvisorHandler(service AdvisorServiceInterface) *AdvisorHandler {
	return &AdvisorHandler{service: service}
}

// GetProfileQuestions はプロフィール収集用の質問一覧を返す。
// GET /api/engagement/profile/questions
func (h *AdvisorHandler) GetProfileQuestions(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string][]string{"questions": h.service.ProfileQuestions()})
}

// AnalyzeProfile はユーザープロフィールを分析する。
// POST /api/engagement/profile
func (h *AdvisorHandler) AnalyzeProfile(w http.ResponseWriter, r *http.Request) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	fields, err := decodeStringMap(r.Body)
	if err != nil {
		writeError(w, model.NewInvalidJSONError())
		return
	}

	result, err := h.service.AnalyzeProfile(r.Context(), sessionID, fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, result)
}

// FinancialAdvice はパーソナライズドアドバイスを生成する。
// POST /api/engagement/financial_advice
func (h *AdvisorHandler) FinancialAdvice(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeStringMap(r.Body)
	if err != nil {
		writeError(w, model.NewInvalidJSONError())
		return
	}

	result, err := h.service.Advise(r.Context(), fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, result)
}

// chatRequest はチャットリクエストのボディ。
type chatRequest struct {
	Message             string `json:"message"`
	ConversationHistory string `json:"conversation_history"`
}

// Chat はチャットメッセージに応答する。
// POST /api/engagement/chat
func (h *AdvisorHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.NewInvalidJSONError())
		return
	}

	result, err := h.service.Chat(r.Context(), req.Message, req.ConversationHistory)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, result)
}

// customPlanRequest は目標達成プランリクエストのボディ。
// 数値フィールドは文字列・数値のどちらでも受け付ける。
type customPlanRequest struct {
	GoalType       any            `json:"goal_type"`
	TargetAmount   any            `json:"target_amount"`
	TimeHorizon    any            `json:"time_horizon"`
	CurrentFinance map[string]any `json:"current_finance"`
}

// CustomPlan は財務目標の達成プランを生成する。
// POST /api/engagement/custom_plan
func (h *AdvisorHandler) CustomPlan(w http.ResponseWriter, r *http.Request) {
	var req customPlanRequest
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, model.NewInvalidJSONError())
		return
	}

	input := advisor.CustomPlanInput{
		GoalType:     stringify(req.GoalType),
		TargetAmount: stringify(req.TargetAmount),
		TimeHorizon:  stringify(req.TimeHorizon),
	}
	if len(req.CurrentFinance) > 0 {
		input.CurrentFinance = &advisor.CurrentFinance{
			Income:      stringify(req.CurrentFinance["income"]),
			Expenses:    stringify(req.CurrentFinance["expenses"]),
			Assets:      stringify(req.CurrentFinance["assets"]),
			RiskProfile: stringify(req.CurrentFinance["risk_profile"]),
		}
	}

	result, err := h.service.CustomPlan(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, result)
}

// simulationRequest は投資シミュレーションリクエストのボディ。
type simulationRequest struct {
	InitialAmount any `json:"initial_amount"`
	AnnualRate    any `json:"annual_rate"`
	Years         any `json:"years"`
}

// Simulation は投資シミュレーションを実行する。
// POST /api/engagement/simulation
func (h *AdvisorHandler) Simulation(w http.ResponseWriter, r *http.Request) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req simulationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, model.NewInvalidJSONError())
		return
	}

	var missing []string
	for _, f := range []struct {
		name  string
		value any
	}{
		{"initial_amount", req.InitialAmount},
		{"annual_rate", req.AnnualRate},
		{"years", req.Years},
	} {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		writeError(w, model.NewMissingFieldsError(missing))
		return
	}

	initialAmount, err1 := toFloat(req.InitialAmount)
	annualRate, err2 := toFloat(req.AnnualRate)
	years, err3 := toFloat(req.Years)
	if err1 != nil || err2 != nil || err3 != nil {
		writeError(w, model.NewInvalidParameterError("金額・利回り・期間は数値で指定してください"))
		return
	}

	plan, warning, err := h.service.Simulate(r.Context(), sessionID, advisor.SimulationInput{
		InitialAmount: initialAmount,
		AnnualRate:    annualRate,
		Years:         int(years),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if warning != "" {
		writeSuccessWithWarning(w, plan, warning)
		return
	}
	writeSuccess(w, plan)
}

// UpdateAdvice は最新情報に基づいてアドバイスを更新する。
// POST /api/engagement/update_advice
func (h *AdvisorHandler) UpdateAdvice(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeStringMap(r.Body)
	if err != nil {
		writeError(w, model.NewInvalidJSONError())
		return
	}

	result, err := h.service.UpdateAdvice(r.Context(), fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, result)
}

// decodeStringMap はJSONオブジェクトをフィールド名→文字列値のマップへ変換する。
// 数値・真偽値はプロンプトに埋め込める文字列表現へ変換する。
func decodeStringMap(body io.Reader) (map[string]string, error) {
	var raw map[string]any
	decoder := json.NewDecoder(body)
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = stringify(v)
	}
	return fields, nil
}

// stringify はJSON値をプロンプト向けの文字列表現へ変換する。
func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// toFloat はJSON値（数値または数値文字列）をfloat64へ変換する。
func toFloat(v any) (float64, error) {
	switch value := v.(type) {
	case json.Number:
		return value.Float64()
	case string:
		return strconv.ParseFloat(value, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
