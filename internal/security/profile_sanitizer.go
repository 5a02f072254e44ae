// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer はIdPから受け取った表示名などのプロフィール文字列を
// 永続化前にプレーンテキスト化する。bluemondayのStrictPolicyを使用し、
// すべてのHTMLタグを除去する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// maxDisplayNameLength は保存する表示名の最大文字数。
const maxDisplayNameLength = 200

// ProfileSanitizer はプロフィール文字列のサニタイズ機能を提供する。
// bluemondayのポリシーは並行利用に対して安全。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerを生成する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// DisplayName はタグを除去し、前後の空白を取り除いた表示名を返す。
// bluemondayがエスケープした実体参照は元の文字に戻す。
// 長すぎる名前はmaxDisplayNameLength文字で切り詰める。
func (s *ProfileSanitizer) DisplayName(raw string) string {
	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if utf8.RuneCountInString(cleaned) > maxDisplayNameLength {
		runes := []rune(cleaned)
		cleaned = string(runes[:maxDisplayNameLength])
	}
	return cleaned
}
