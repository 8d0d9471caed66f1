package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/internal/security"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// AuthHandler 登录认证处理器
type AuthHandler struct {
	orgs      *repository.OrganizationRepository
	employees *repository.EmployeeRepository
	tokens    *security.TokenManager
	tokenTTL  time.Duration
}

// NewAuthHandler 创建登录认证处理器
func NewAuthHandler(
	orgs *repository.OrganizationRepository,
	employees *repository.EmployeeRepository,
	tokens *security.TokenManager,
	tokenTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		orgs:      orgs,
		employees: employees,
		tokens:    tokens,
		tokenTTL:  tokenTTL,
	}
}

// RegisterRoutes 注册路由
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
}

// LoginRequest 登录请求
type LoginRequest struct {
	OrgCode  string `json:"org_code"`
	Code     string `json:"code"` // 工号
	Password string `json:"password"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresIn int             `json:"expires_in"` // 秒
	Employee  *model.Employee `json:"employee"`
}

// Login 登录换取令牌
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}

	ve := &errors.ValidationErrors{}
	if req.OrgCode == "" {
		ve.Add("org_code", "组织编码不能为空")
	}
	if req.Code == "" {
		ve.Add("code", "工号不能为空")
	}
	if req.Password == "" {
		ve.Add("password", "密码不能为空")
	}
	if ve.HasErrors() {
		respondError(w, ve.ToAppError())
		return
	}

	org, err := h.orgs.GetByCode(r.Context(), req.OrgCode)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询组织失败"))
		return
	}
	if org == nil {
		respondError(w, errors.New(errors.CodeUnauthorized, "工号或密码错误"))
		return
	}

	emp, err := h.employees.GetByCode(r.Context(), org.ID, req.Code)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if emp == nil || !security.VerifyPassword(req.Password, emp.PasswordHash) {
		logger.Warn().
			Str("org_code", req.OrgCode).
			Str("code", req.Code).
			Msg("登录失败")
		respondError(w, errors.New(errors.CodeUnauthorized, "工号或密码错误"))
		return
	}
	if !emp.IsActive() {
		respondError(w, errors.New(errors.CodeForbidden, "账号已停用"))
		return
	}

	token, err := h.tokens.Generate(emp)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInternal, "签发令牌失败"))
		return
	}

	logger.Info().
		Str("employee_id", emp.ID.String()).
		Str("role", emp.Role).
		Msg("登录成功")

	respondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: int(h.tokenTTL.Seconds()),
		Employee:  emp,
	})
}
