package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/finman/internal/model"
)

// MemoryProfileRepo はインメモリのプロファイルリポジトリ。
// DATABASE_URL未設定時に使用する。プロセス再起動で内容は失われる。
type MemoryProfileRepo struct {
	mu       sync.RWMutex
	profiles map[string]*model.UserProfile
}

// NewMemoryProfileRepo はMemoryProfileRepoを生成する。
func NewMemoryProfileRepo() *MemoryProfileRepo {
	return &MemoryProfileRepo{
		profiles: make(map[string]*model.UserProfile),
	}
}

// Find は指定セッションのプロファイルを取得する。存在しない場合は(nil, nil)を返す。
func (r *MemoryProfileRepo) Find(ctx context.Context, sessionID string) (*model.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[sessionID]
	if !ok {
		return nil, nil
	}
	// 呼び出し側の変更が格納値へ波及しないようコピーを返す
	copied := *profile
	return &copied, nil
}

// Save は指定セッションのプロファイルを保存する。既存のプロファイルは上書きする。
func (r *MemoryProfileRepo) Save(ctx context.Context, sessionID string, profile *model.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *profile
	r.profiles[sessionID] = &copied
	return nil
}

// Delete は指定セッションのプロファイルを削除する。
func (r *MemoryProfileRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.profiles, sessionID)
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*MemoryProfileRepo)(nil)
