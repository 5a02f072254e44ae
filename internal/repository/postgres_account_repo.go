package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/campusauth/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// accountTables はロールとテーブル名の対応。
// テーブル名はこの固定値からのみ選ばれ、外部入力がSQLに入ることはない。
var accountTables = map[model.Role]string{
	model.RoleAdmin:   "admins",
	model.RoleFaculty: "faculty",
	model.RoleStudent: "students",
}

// PostgresAccountRepo はPostgreSQLを使用したロール別アカウントリポジトリ。
// 1インスタンスが1テーブル（1ストア）を担当する。
type PostgresAccountRepo struct {
	db    *sql.DB
	role  model.Role
	table string
}

// NewPostgresAccountRepo は指定ロールのPostgresAccountRepoを生成する。
// 未知のロールを指定した場合はエラーを返す。
func NewPostgresAccountRepo(db *sql.DB, role model.Role) (*PostgresAccountRepo, error) {
	table, ok := accountTables[role]
	if !ok {
		return nil, fmt.Errorf("unknown account role: %q", role)
	}
	return &PostgresAccountRepo{db: db, role: role, table: table}, nil
}

// NewPostgresAccountRepos は探索順（Admin → Faculty → Student）に並んだ全ストアを生成する。
func NewPostgresAccountRepos(db *sql.DB) ([]AccountRepository, error) {
	repos := make([]AccountRepository, 0, len(model.ResolutionOrder()))
	for _, role := range model.ResolutionOrder() {
		repo, err := NewPostgresAccountRepo(db, role)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// Role はこのストアが表すロールを返す。
func (r *PostgresAccountRepo) Role() model.Role {
	return r.role
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	account, err := r.scanOne(ctx,
		`SELECT id, name, email, avatar, created_at, updated_at FROM `+r.table+` WHERE email = $1`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s by email: %w", r.role, err)
	}
	return account, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
// idカラムはUUID型のため、UUIDとして解釈できないIDは問い合わせずに未存在として扱う。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	account, err := r.scanOne(ctx,
		`SELECT id, name, email, avatar, created_at, updated_at FROM `+r.table+` WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s by ID: %w", r.role, err)
	}
	return account, nil
}

// Create はアカウントを作成する。単一レコードのINSERTのみで、部分的な状態は残らない。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+r.table+` (id, name, email, avatar, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.Name, account.Email, nullString(account.Avatar), account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("failed to insert %s: %w", r.role, model.ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to insert %s: %w", r.role, err)
	}
	account.Role = r.role
	return nil
}

func (r *PostgresAccountRepo) scanOne(ctx context.Context, query string, arg string) (*model.Account, error) {
	account := &model.Account{Role: r.role}
	var avatar sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &account.Name, &account.Email, &avatar, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	account.Avatar = avatar.String
	return account, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
