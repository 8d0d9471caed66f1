package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/identity"
	"github.com/kaoqin/kaoqin/internal/middleware"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/internal/roster"
	"github.com/kaoqin/kaoqin/internal/security"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// maxRosterUpload 花名册上传大小上限
const maxRosterUpload = 10 << 20

// EmployeeHandler 员工管理处理器
type EmployeeHandler struct {
	employees *repository.EmployeeRepository
	importer  *roster.Importer
}

// NewEmployeeHandler 创建员工管理处理器
func NewEmployeeHandler(employees *repository.EmployeeRepository, importer *roster.Importer) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, importer: importer}
}

// RegisterRoutes 注册路由，员工管理仅限人事与管理员
func (h *EmployeeHandler) RegisterRoutes(r *mux.Router) {
	guard := middleware.RequireRole(identity.RoleAdmin, identity.RoleHR)
	r.Handle("/employees/import", guard(http.HandlerFunc(h.Import))).Methods(http.MethodPost)
	r.Handle("/employees", guard(http.HandlerFunc(h.Create))).Methods(http.MethodPost)
	r.Handle("/employees", guard(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	r.Handle("/employees/{id}", guard(http.HandlerFunc(h.Get))).Methods(http.MethodGet)
	r.Handle("/employees/{id}", guard(http.HandlerFunc(h.Update))).Methods(http.MethodPut)
	r.Handle("/employees/{id}", guard(http.HandlerFunc(h.Delete))).Methods(http.MethodDelete)
}

// EmployeeRequest 员工创建/更新请求
type EmployeeRequest struct {
	Name       string   `json:"name"`
	Code       string   `json:"code"`       // 工号，组织内唯一
	Department string   `json:"department"` // technical/marketing/admin/hr/office
	Position   string   `json:"position,omitempty"`
	Role       string   `json:"role,omitempty"` // admin/hr/manager/staff，默认staff
	Phone      string   `json:"phone,omitempty"`
	Email      string   `json:"email,omitempty"`
	Password   string   `json:"password,omitempty"` // 创建登录账号时提供，至少8位
	Skills     []string `json:"skills,omitempty"`
	WorkStart  string   `json:"work_start,omitempty"` // HH:MM
	WorkEnd    string   `json:"work_end,omitempty"`
	Status     string   `json:"status,omitempty"` // active/inactive/on_leave
	HireDate   string   `json:"hire_date,omitempty"`
}

func validateEmployeeRequest(req *EmployeeRequest, creating bool) *errors.AppError {
	ve := &errors.ValidationErrors{}
	if creating {
		if req.Name == "" {
			ve.Add("name", "姓名不能为空")
		}
		if req.Code == "" {
			ve.Add("code", "工号不能为空")
		}
		if req.Department == "" {
			ve.Add("department", "部门不能为空")
		}
	}
	switch model.Department(req.Department) {
	case "", model.DeptTechnical, model.DeptMarketing, model.DeptAdmin, model.DeptHR, model.DeptOffice:
	default:
		ve.Add("department", "必须是 technical/marketing/admin/hr/office 之一")
	}
	switch req.Role {
	case "", identity.RoleAdmin, identity.RoleHR, identity.RoleManager, identity.RoleStaff:
	default:
		ve.Add("role", "必须是 admin/hr/manager/staff 之一")
	}
	switch req.Status {
	case "", "active", "inactive", "on_leave":
	default:
		ve.Add("status", "必须是 active/inactive/on_leave 之一")
	}
	for _, field := range []struct{ name, value string }{
		{"work_start", req.WorkStart},
		{"work_end", req.WorkEnd},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.Parse("15:04", field.value); err != nil {
			ve.Add(field.name, "时间格式应为HH:MM")
		}
	}
	if req.HireDate != "" {
		if _, err := time.Parse("2006-01-02", req.HireDate); err != nil {
			ve.Add("hire_date", "日期格式应为YYYY-MM-DD")
		}
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// Create 创建员工
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req EmployeeRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	if aerr := validateEmployeeRequest(&req, true); aerr != nil {
		respondError(w, aerr)
		return
	}

	existing, err := h.employees.GetByCode(r.Context(), id.OrgID, req.Code)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if existing != nil {
		respondError(w, errors.New(errors.CodeAlreadyExists, "该工号已存在: "+req.Code))
		return
	}

	emp := &model.Employee{
		BaseModel:  model.NewBaseModel(),
		OrgID:      id.OrgID,
		Name:       req.Name,
		Code:       req.Code,
		Phone:      req.Phone,
		Email:      req.Email,
		Status:     req.Status,
		HireDate:   req.HireDate,
		Department: model.Department(req.Department),
		Position:   req.Position,
		Role:       req.Role,
		Skills:     req.Skills,
		WorkStart:  req.WorkStart,
		WorkEnd:    req.WorkEnd,
	}
	if emp.Status == "" {
		emp.Status = "active"
	}
	if emp.Role == "" {
		emp.Role = identity.RoleStaff
	}
	if emp.HireDate == "" {
		emp.HireDate = time.Now().Format("2006-01-02")
	}
	if req.Password != "" {
		hash, err := security.HashPassword(req.Password)
		if err != nil {
			respondError(w, errors.InvalidInput("password", err.Error()))
			return
		}
		emp.PasswordHash = hash
	}

	if err := h.employees.Create(r.Context(), emp); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "创建员工失败"))
		return
	}

	logger.Info().
		Str("employee_id", emp.ID.String()).
		Str("code", emp.Code).
		Str("department", string(emp.Department)).
		Msg("员工已创建")

	respondJSON(w, http.StatusCreated, emp)
}

// List 查询员工列表
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	filter, aerr := listFilterFromQuery(r, id.OrgID)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filter.Search = search
	}

	employees, total, err := h.employees.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if employees == nil {
		employees = []*model.Employee{}
	}

	respondJSON(w, http.StatusOK, ListResponse{
		Items:  employees,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get 查询单个员工
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	empID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	emp, err := h.employees.GetByID(r.Context(), empID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if emp == nil || emp.OrgID != id.OrgID {
		respondError(w, errors.NotFound("员工", empID.String()))
		return
	}

	respondJSON(w, http.StatusOK, emp)
}

// Update 更新员工信息，仅覆盖请求中给出的字段
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	empID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req EmployeeRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	if aerr := validateEmployeeRequest(&req, false); aerr != nil {
		respondError(w, aerr)
		return
	}

	emp, err := h.employees.GetByID(r.Context(), empID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if emp == nil || emp.OrgID != id.OrgID {
		respondError(w, errors.NotFound("员工", empID.String()))
		return
	}

	if req.Name != "" {
		emp.Name = req.Name
	}
	if req.Department != "" {
		emp.Department = model.Department(req.Department)
	}
	if req.Position != "" {
		emp.Position = req.Position
	}
	if req.Role != "" {
		emp.Role = req.Role
	}
	if req.Phone != "" {
		emp.Phone = req.Phone
	}
	if req.Email != "" {
		emp.Email = req.Email
	}
	if req.Skills != nil {
		emp.Skills = req.Skills
	}
	if req.WorkStart != "" {
		emp.WorkStart = req.WorkStart
	}
	if req.WorkEnd != "" {
		emp.WorkEnd = req.WorkEnd
	}
	if req.Status != "" {
		emp.Status = req.Status
	}
	if req.HireDate != "" {
		emp.HireDate = req.HireDate
	}
	var newHash string
	if req.Password != "" {
		hash, err := security.HashPassword(req.Password)
		if err != nil {
			respondError(w, errors.InvalidInput("password", err.Error()))
			return
		}
		newHash = hash
	}

	if err := h.employees.Update(r.Context(), emp); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新员工失败"))
		return
	}
	// 口令单独落库，常规更新不触碰凭证
	if newHash != "" {
		if err := h.employees.UpdatePassword(r.Context(), emp.ID, newHash); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新口令失败"))
			return
		}
	}

	logger.Info().Str("employee_id", emp.ID.String()).Str("code", emp.Code).Msg("员工信息已更新")

	respondJSON(w, http.StatusOK, emp)
}

// Delete 删除员工（软删除）
func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	empID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	emp, err := h.employees.GetByID(r.Context(), empID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if emp == nil || emp.OrgID != id.OrgID {
		respondError(w, errors.NotFound("员工", empID.String()))
		return
	}

	if err := h.employees.Delete(r.Context(), empID); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "删除员工失败"))
		return
	}

	logger.Info().Str("employee_id", empID.String()).Str("code", emp.Code).Msg("员工已删除")

	respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// Import 导入花名册表格，按工号与现有员工对账
func (h *EmployeeHandler) Import(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRosterUpload+4096)
	if err := r.ParseMultipartForm(maxRosterUpload); err != nil {
		respondError(w, errors.New(errors.CodeImportFailed, "花名册文件超过10MB大小上限"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, errors.InvalidInput("file", "需要上传花名册文件"))
		return
	}
	defer file.Close()

	result, err := h.importer.Import(r.Context(), id.OrgID, file, header.Filename)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeImportFailed, "花名册导入失败").WithDetails(err.Error()))
		return
	}

	respondJSON(w, http.StatusOK, result)
}
