// Package repository はセッションスコープのプロファイル永続化を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/finman/internal/model"
)

// ProfileRepository はセッションに紐づくユーザープロファイルのリポジトリ。
// プロファイル分析で作成され、シミュレーションで参照され、再分析で上書きされる。
type ProfileRepository interface {
	// Find は指定セッションのプロファイルを取得する。存在しない場合は(nil, nil)を返す。
	Find(ctx context.Context, sessionID string) (*model.UserProfile, error)
	// Save は指定セッションのプロファイルを保存する。既存のプロファイルは上書きする。
	Save(ctx context.Context, sessionID string, profile *model.UserProfile) error
	// Delete は指定セッションのプロファイルを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, sessionID string) error
}
