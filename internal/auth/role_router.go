package auth

import (
	"strings"

	"github.com/hitoshi/campusauth/internal/model"
)

// Destinations はロール別のリダイレクト先。
type Destinations struct {
	AdminHome   string
	FacultyHome string
	StudentHome string
	Login       string
}

// DefaultDestinations はフロントエンドのベースURLから既定のリダイレクト先を組み立てる。
func DefaultDestinations(frontendURL string) Destinations {
	base := strings.TrimRight(frontendURL, "/")
	return Destinations{
		AdminHome:   base + "/admin/home",
		FacultyHome: base + "/faculty/home",
		StudentHome: base + "/student/home",
		Login:       base + "/login",
	}
}

// Destination はアカウントの所属ストアに応じたリダイレクト先を返す。
// アカウントがnil、またはロールが判別できない場合はログイン画面に戻す。
func (d Destinations) Destination(account *model.Account) string {
	if account == nil {
		return d.Login
	}
	switch account.Role {
	case model.RoleAdmin:
		return d.AdminHome
	case model.RoleFaculty:
		return d.FacultyHome
	case model.RoleStudent:
		return d.StudentHome
	default:
		return d.Login
	}
}
