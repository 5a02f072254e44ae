// Package token は署名付き・有効期限付きのアクセストークンを発行・検証する。
//
// トークンはHS256のJWTで、ペイロードは {id, iat, exp} のみ。
// ヘッダーのkidで署名鍵を選択するため、鍵をローテーションしても
// 発行済みトークンを一斉に無効化せずに済む。
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSignature は署名検証に失敗したか、トークンとして解釈できないことを示す。
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired はトークンが有効期限を過ぎていることを示す。
	ErrExpired = errors.New("token expired")
)

// DefaultKeyID はJWT_SECRET単体で構成した場合の鍵ID。
const DefaultKeyID = "default"

// DefaultTTL はトークンの既定の有効期間。
const DefaultTTL = time.Hour

// Key はkidと署名シークレットの組。
type Key struct {
	ID     string
	Secret []byte
}

// Config はCodecの設定。
// Keysの先頭が署名に使用するアクティブ鍵で、全ての鍵が検証に使用される。
type Config struct {
	Keys []Key
	TTL  time.Duration
}

// Claims はトークンのペイロード。
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Codec はトークンの発行と検証を行う。
type Codec struct {
	active Key
	keys   map[string][]byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec はCodecを生成する。
// 鍵が1つもない場合、空のシークレットやkidの重複がある場合はエラーを返す。
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Keys) == 0 {
		return nil, fmt.Errorf("at least one signing key is required")
	}

	keys := make(map[string][]byte, len(cfg.Keys))
	for _, k := range cfg.Keys {
		if k.ID == "" {
			return nil, fmt.Errorf("signing key id must not be empty")
		}
		if len(k.Secret) == 0 {
			return nil, fmt.Errorf("signing key %q has empty secret", k.ID)
		}
		if _, dup := keys[k.ID]; dup {
			return nil, fmt.Errorf("duplicate signing key id %q", k.ID)
		}
		keys[k.ID] = k.Secret
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Codec{
		active: cfg.Keys[0],
		keys:   keys,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue はユーザーIDを埋め込んだトークンをアクティブ鍵で署名して返す。
func (c *Codec) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := c.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = c.active.ID

	signed, err := t.SignedString(c.active.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証しユーザーIDを返す。
// 有効期限切れは署名の正否に関わらずErrExpiredを返す。
// expクレームのないトークンを含め、それ以外の失敗はすべてErrInvalidSignatureとなる。
func (c *Codec) Verify(tokenString string) (string, error) {
	// 1. 署名検証前に有効期限を確認する
	unverified := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return "", ErrInvalidSignature
	}
	if unverified.ExpiresAt != nil && !c.now().Before(unverified.ExpiresAt.Time) {
		return "", ErrExpired
	}

	// 2. 署名とクレームを検証する
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	t, err := parser.ParseWithClaims(tokenString, claims, c.keyFor)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", ErrInvalidSignature
	}
	if !t.Valid || claims.UserID == "" {
		return "", ErrInvalidSignature
	}

	return claims.UserID, nil
}

// keyFor はヘッダーのkidに対応する検証鍵を返す。
// kidのない旧形式のトークンはアクティブ鍵で検証する。
func (c *Codec) keyFor(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return c.active.Secret, nil
	}
	secret, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return secret, nil
}

// ParseKeys は "kid1:secret1,kid2:secret2" 形式の文字列を鍵の一覧に変換する。
// 空文字列の場合はnilを返す。
func ParseKeys(raw string) ([]Key, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var keys []Key
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, secret, ok := strings.Cut(entry, ":")
		if !ok || id == "" || secret == "" {
			return nil, fmt.Errorf("invalid key entry %q (want kid:secret)", entry)
		}
		keys = append(keys, Key{ID: id, Secret: []byte(secret)})
	}
	return keys, nil
}
