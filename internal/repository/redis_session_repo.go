package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/campusauth/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultSessionKeyPrefix はRedis上のセッションキーの既定プレフィックス。
const DefaultSessionKeyPrefix = "session:"

// redisSession はRedisに保存するセッションの表現。
// Dataはアカウントのスナップショット（JSON）をそのまま埋め込む。
type redisSession struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Role      model.Role      `json:"role"`
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// キーのTTLをセッションのExpiresAtに合わせるため、期限切れの削除はRedisに任せる。
type RedisSessionRepo struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
// prefixが空の場合はDefaultSessionKeyPrefixを使用する。
func NewRedisSessionRepo(client redis.UniversalClient, prefix string) *RedisSessionRepo {
	if prefix == "" {
		prefix = DefaultSessionKeyPrefix
	}
	return &RedisSessionRepo{client: client, prefix: prefix}
}

// Create はセッションを作成する。既に期限切れのセッションは保存しない。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(redisSession{
		ID:        session.ID,
		AccountID: session.AccountID,
		Role:      session.Role,
		Data:      json.RawMessage(session.Data),
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.prefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れまたは存在しない場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}

	raw, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	// TTLの丸めで期限切れのキーが一瞬残る場合がある
	if !time.Now().Before(rs.ExpiresAt) {
		if err := r.DeleteByID(ctx, id); err != nil {
			return nil, fmt.Errorf("cleanup expired session: %w", err)
		}
		return nil, nil
	}

	return &model.Session{
		ID:        rs.ID,
		AccountID: rs.AccountID,
		Role:      rs.Role,
		Data:      []byte(rs.Data),
		ExpiresAt: rs.ExpiresAt,
		CreatedAt: rs.CreatedAt,
	}, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired はRedisのTTLで期限切れキーが消えるため、常に0を返す。
func (r *RedisSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
