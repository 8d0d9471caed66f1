// Package identity 提供登录身份与上下文传递
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kaoqin/kaoqin/internal/security"
)

var (
	ErrNoIdentity      = errors.New("上下文中无登录身份")
	ErrInvalidIdentity = errors.New("无效的登录身份")
)

// 角色
const (
	RoleAdmin   = "admin"
	RoleHR      = "hr"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// Identity 登录身份
type Identity struct {
	EmployeeID uuid.UUID `json:"employee_id"`
	OrgID      uuid.UUID `json:"org_id"`
	Role       string    `json:"role"`
	Name       string    `json:"name"`
}

// FromClaims 从令牌声明构建登录身份
func FromClaims(claims *security.Claims) (*Identity, error) {
	empID, err := claims.EmployeeID()
	if err != nil {
		return nil, ErrInvalidIdentity
	}

	orgID, err := uuid.Parse(claims.OrgID)
	if err != nil {
		return nil, ErrInvalidIdentity
	}

	return &Identity{
		EmployeeID: empID,
		OrgID:      orgID,
		Role:       claims.Role,
		Name:       claims.Name,
	}, nil
}

// HasRole 检查是否具备指定角色之一
func (i *Identity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// IsReviewer 检查是否具备审核权限（加班审核、补卡复核）
func (i *Identity) IsReviewer() bool {
	return i.Role == RoleAdmin || i.Role == RoleHR
}

// CanManage 检查是否具备管理权限（员工档案、组织配置）
func (i *Identity) CanManage() bool {
	return i.Role == RoleAdmin || i.Role == RoleHR || i.Role == RoleManager
}

// identityContextKey 身份上下文键
type identityContextKey struct{}

// WithIdentity 将登录身份添加到上下文
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext 从上下文获取登录身份
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok
}

// MustFromContext 从上下文获取登录身份，缺失时返回错误
func MustFromContext(ctx context.Context) (*Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}
	return id, nil
}
