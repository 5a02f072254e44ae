package model

import (
	"errors"
	"fmt"
)

// 認証フローで使用するエラー分類。
// 呼び出し側はerrors.Isで判定する。
var (
	// ErrUnauthenticated はトークンが欠落・不正・期限切れであることを示す。
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrResolutionFailed はアイデンティティ解決中にストアへアクセスできなかったことを示す。
	ErrResolutionFailed = errors.New("identity resolution failed")

	// ErrInvalidAssertion はIdPのプロフィールに必須項目が欠けていることを示す。
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	// ErrAccountNotFound は指定されたアカウントがストアに存在しないことを示す。
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateEmail はストア内でメールアドレスが重複したことを示す。
	ErrDuplicateEmail = errors.New("duplicate email")
)

// APIError はAPIレスポンスで返すエラーを表す。
// クライアントにはMessageのみを返し、内部の詳細はログに記録する。
type APIError struct {
	Status  int
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

// Auth Gateが返すメッセージ。
const (
	MsgTokenMissing        = "Authorization token missing"
	MsgInvalidTokenFormat  = "Invalid token format"
	MsgInvalidOrExpired    = "Invalid or expired token"
	MsgAuthenticationError = "Server error in authentication"
)

// NewAccountNotFoundError はロールのストアにアカウントが存在しない場合のエラーを生成する。
func NewAccountNotFoundError(role Role) *APIError {
	return &APIError{
		Status:  404,
		Message: fmt.Sprintf("%s account not found", role),
	}
}
