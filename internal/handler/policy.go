package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/identity"
	"github.com/kaoqin/kaoqin/internal/metrics"
	"github.com/kaoqin/kaoqin/internal/middleware"
	policylib "github.com/kaoqin/kaoqin/internal/policy"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/policy"
	"github.com/kaoqin/kaoqin/pkg/policy/builtin"
)

// evaluateWorkers 规则评估的并行度
const evaluateWorkers = 4

// PolicyHandler 考勤规则引擎处理器
type PolicyHandler struct {
	employees  *repository.EmployeeRepository
	attendance *repository.AttendanceRepository
	ot         *repository.OTSessionRepository
	visits     *repository.SiteVisitRepository
}

// NewPolicyHandler 创建规则引擎处理器
func NewPolicyHandler(
	employees *repository.EmployeeRepository,
	attendance *repository.AttendanceRepository,
	ot *repository.OTSessionRepository,
	visits *repository.SiteVisitRepository,
) *PolicyHandler {
	return &PolicyHandler{
		employees:  employees,
		attendance: attendance,
		ot:         ot,
		visits:     visits,
	}
}

// RegisterRoutes 注册路由，全量评估限人事与管理员
func (h *PolicyHandler) RegisterRoutes(r *mux.Router) {
	reviewer := middleware.RequireRole(identity.RoleAdmin, identity.RoleHR)
	r.HandleFunc("/policy/templates", h.Templates).Methods(http.MethodGet)
	r.HandleFunc("/policy/rules", h.Rules).Methods(http.MethodGet)
	r.Handle("/policy/evaluate", reviewer(http.HandlerFunc(h.Evaluate))).Methods(http.MethodPost)
}

// Templates 返回场景模板目录
func (h *PolicyHandler) Templates(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, policylib.TemplatesResponse{Templates: policylib.GetTemplates()})
}

// Rules 返回规则库定义
func (h *PolicyHandler) Rules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, policylib.LibraryResponse{Library: policylib.GetLibrary()})
}

// PolicyEvaluateRequest 规则评估请求
type PolicyEvaluateRequest struct {
	Month       string                 `json:"month"`                  // YYYY-MM
	Template    string                 `json:"template,omitempty"`     // office/field，默认office
	EmployeeIDs []uuid.UUID            `json:"employee_ids,omitempty"` // 留空评估全员
	Overrides   map[string]interface{} `json:"overrides,omitempty"`    // 规则参数覆盖项
}

// EmployeeEvaluation 单个员工的评估结果
type EmployeeEvaluation struct {
	EmployeeID   uuid.UUID       `json:"employee_id"`
	EmployeeName string          `json:"employee_name"`
	Department   model.Department `json:"department"`
	Result       *policy.Result  `json:"result"`
}

// PolicyEvaluateResponse 规则评估响应，员工按得分从低到高排列
type PolicyEvaluateResponse struct {
	Month     string               `json:"month"`
	Template  string               `json:"template"`
	Total     int                  `json:"total"`
	Passed    int                  `json:"passed"`
	Failed    int                  `json:"failed"`
	Employees []EmployeeEvaluation `json:"employees"`
}

// Evaluate 对指定月份的考勤数据运行规则引擎
func (h *PolicyHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req PolicyEvaluateRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	if req.Month == "" {
		req.Month = time.Now().Format("2006-01")
	}
	monthStart, err := time.Parse("2006-01", req.Month)
	if err != nil {
		respondError(w, errors.InvalidInput("month", "月份格式应为YYYY-MM"))
		return
	}
	start := monthStart.Format("2006-01-02")
	end := monthStart.AddDate(0, 1, -1).Format("2006-01-02")

	if req.Template == "" {
		req.Template = "office"
	}
	tmpl, ok := policylib.FindTemplate(req.Template)
	if !ok {
		respondError(w, errors.InvalidInput("template", "未知的场景模板: "+req.Template))
		return
	}
	cfg := tmpl.MergedConfig(req.Overrides)

	manager := policy.NewManager()
	if tmpl.Name == "field" {
		builtin.RegisterFieldRules(manager, cfg)
	} else {
		builtin.RegisterDefaultRules(manager, cfg)
	}

	employees, aerr := h.loadEmployees(r, id.OrgID, req.EmployeeIDs)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	if len(employees) == 0 {
		respondJSON(w, http.StatusOK, PolicyEvaluateResponse{
			Month:     req.Month,
			Template:  tmpl.Name,
			Employees: []EmployeeEvaluation{},
		})
		return
	}

	rangeFilter := repository.DefaultListFilter().
		WithOrgID(id.OrgID).
		WithDateRange(start, end).
		WithLimit(100000)

	records, _, err := h.attendance.List(r.Context(), rangeFilter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询考勤记录失败"))
		return
	}
	sessions, _, err := h.ot.List(r.Context(), rangeFilter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班时段失败"))
		return
	}
	visits, _, err := h.visits.List(r.Context(), rangeFilter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}

	pctx := policy.NewContext(id.OrgID, start, end)
	pctx.Config = cfg
	pctx.SetEmployees(employees)
	pctx.SetRecords(records)
	pctx.SetOTSessions(sessions)
	pctx.SetVisits(visits)

	evaluator := policy.NewParallelEvaluator(evaluateWorkers, manager)
	results := evaluator.EvaluateEmployees(r.Context(), pctx)

	resp := PolicyEvaluateResponse{
		Month:     req.Month,
		Template:  tmpl.Name,
		Total:     len(results),
		Employees: make([]EmployeeEvaluation, 0, len(results)),
	}
	// 得分低的排前面，便于优先处理
	for _, empID := range evaluator.WorstEmployees(results, len(results)) {
		res := results[empID]
		emp := pctx.GetEmployee(empID)
		if emp == nil {
			continue
		}
		if res.IsValid {
			resp.Passed++
		} else {
			resp.Failed++
		}
		metrics.RecordPolicyEvaluation(tmpl.Name, res.IsValid)
		resp.Employees = append(resp.Employees, EmployeeEvaluation{
			EmployeeID:   empID,
			EmployeeName: emp.Name,
			Department:   emp.Department,
			Result:       res,
		})
	}

	logger.Info().
		Str("month", req.Month).
		Str("template", tmpl.Name).
		Int("total", resp.Total).
		Int("failed", resp.Failed).
		Msg("规则评估完成")

	respondJSON(w, http.StatusOK, resp)
}

// loadEmployees 取评估对象，指定了员工ID时只取本组织内能找到的
func (h *PolicyHandler) loadEmployees(r *http.Request, orgID uuid.UUID, ids []uuid.UUID) ([]*model.Employee, *errors.AppError) {
	if len(ids) == 0 {
		employees, err := h.employees.ListActive(r.Context(), orgID)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败")
		}
		return employees, nil
	}

	employees, err := h.employees.ListByIDs(r.Context(), ids)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败")
	}
	scoped := make([]*model.Employee, 0, len(employees))
	for _, emp := range employees {
		if emp.OrgID == orgID {
			scoped = append(scoped, emp)
		}
	}
	return scoped, nil
}
