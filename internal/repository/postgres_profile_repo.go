package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/finman/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロファイルリポジトリ。
// プロファイル本体はJSONBカラムに格納する。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Find は指定セッションのプロファイルを取得する。存在しない場合は(nil, nil)を返す。
func (r *PostgresProfileRepo) Find(ctx context.Context, sessionID string) (*model.UserProfile, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT profile
		 FROM session_profiles
		 WHERE session_id = $1`,
		sessionID,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	profile := &model.UserProfile{}
	if err := json.Unmarshal(raw, profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return profile, nil
}

// Save は指定セッションのプロファイルを保存する。既存のプロファイルは上書きする。
func (r *PostgresProfileRepo) Save(ctx context.Context, sessionID string, profile *model.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO session_profiles (session_id, profile, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (session_id)
		 DO UPDATE SET profile = EXCLUDED.profile, updated_at = now()`,
		sessionID, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Delete は指定セッションのプロファイルを削除する。
func (r *PostgresProfileRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_profiles WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
