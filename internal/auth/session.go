package auth

import (
	"encoding/json"
	"fmt"

	"github.com/hitoshi/campusauth/internal/model"
)

// Serialize はアカウント全体をセッションペイロードに変換する。
// IDへの縮約は行わない。
func Serialize(account *model.Account) ([]byte, error) {
	if account == nil {
		return nil, fmt.Errorf("nil account")
	}
	data, err := json.Marshal(account)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize account: %w", err)
	}
	return data, nil
}

// Deserialize はセッションペイロードからアカウントを復元する。
// JSONデコード以外の検証は行わず、保存時の内容をそのまま信頼する。
func Deserialize(data []byte) (*model.Account, error) {
	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to deserialize session payload: %w", err)
	}
	return &account, nil
}
