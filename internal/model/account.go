// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアカウントが所属するストア（＝ロール）を表す。
// 空文字列は分類不能なアカウントを示す。
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

var resolutionOrder = [...]Role{RoleAdmin, RoleFaculty, RoleStudent}

// ResolutionOrder はメールアドレス照合時にストアを探索する順序（Admin → Faculty → Student）を返す。
// 同一メールが複数ストアに存在した場合はこの順序で先に見つかった方が優先される。
// 呼び出しごとに新しいスライスを返すため、変更しても順序には影響しない。
func ResolutionOrder() []Role {
	order := resolutionOrder
	return order[:]
}

// Valid はロールが既知の値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return true
	default:
		return false
	}
}

// Account は認証可能なプリンシパルを表す。
// Roleはレコードを返却・作成したストアによって決まり、呼び出し側が設定することはない。
type Account struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assertion は外部IdPから受け取ったアイデンティティ情報を表す。
// コールバックごとに生成され、解決後は破棄される。
// プロバイダー側のトークンは永続化しない。
type Assertion struct {
	ProviderUserID string
	Email          string
	Name           string
	Avatar         string
	AccessToken    string
	RefreshToken   string
}

// Session はセッションストアに保存されるレコード。
// Dataには解決済みアカウント全体のスナップショットが入る（IDへの縮約はしない）。
// AccountIDとRoleは検索・一括削除用に非正規化して保持する。
type Session struct {
	ID        string
	AccountID string
	Role      Role
	Data      []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}
