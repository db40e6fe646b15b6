package model

import "time"

// UserProfile はセッションに紐づくユーザーの財務プロフィール。
// プロフィール分析で作成され、シミュレーションで参照される。
// 再分析時はマージせず全体を上書きする。
type UserProfile struct {
	Age             string    `json:"age"`
	Occupation      string    `json:"occupation"`
	MonthlyIncome   string    `json:"monthly_income"`
	MonthlyExpenses string    `json:"monthly_expenses"`
	Assets          string    `json:"assets"`
	RiskPreference  string    `json:"risk_preference"`
	Analysis        string    `json:"analysis"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProfileRequiredFields はプロフィール分析の必須フィールド名（リクエストJSONキー順）。
var ProfileRequiredFields = []string{
	"age",
	"occupation",
	"monthly_income",
	"monthly_expenses",
	"assets",
	"risk_preference",
}
