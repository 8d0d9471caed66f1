package handler

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/config"
	"github.com/kaoqin/kaoqin/internal/database"
	"github.com/kaoqin/kaoqin/internal/metrics"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/photo"
	"github.com/kaoqin/kaoqin/pkg/validator"
	"github.com/kaoqin/kaoqin/pkg/visitflow"
)

// VisitHandler 外访处理器
type VisitHandler struct {
	db        *database.DB
	visits    *repository.SiteVisitRepository
	customers *repository.CustomerRepository
	employees *repository.EmployeeRepository
	validator *validator.VisitValidator
	photos    *photo.Processor
	visitCfg  *config.VisitConfig
}

// NewVisitHandler 创建外访处理器
func NewVisitHandler(
	db *database.DB,
	visits *repository.SiteVisitRepository,
	customers *repository.CustomerRepository,
	employees *repository.EmployeeRepository,
	visitValidator *validator.VisitValidator,
	photos *photo.Processor,
	visitCfg *config.VisitConfig,
) *VisitHandler {
	return &VisitHandler{
		db:        db,
		visits:    visits,
		customers: customers,
		employees: employees,
		validator: visitValidator,
		photos:    photos,
		visitCfg:  visitCfg,
	}
}

// RegisterRoutes 注册路由
func (h *VisitHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/visits/check-in", h.CheckIn).Methods(http.MethodPost)
	r.HandleFunc("/visits/validate", h.Validate).Methods(http.MethodPost)
	r.HandleFunc("/visits/by-customer", h.ByCustomer).Methods(http.MethodGet)
	r.HandleFunc("/visits/{id}/check-out", h.CheckOut).Methods(http.MethodPost)
	r.HandleFunc("/visits/{id}/photos", h.UploadPhoto).Methods(http.MethodPost)
	r.HandleFunc("/visits/{id}/follow-up", h.FollowUp).Methods(http.MethodPost)
	r.HandleFunc("/visits/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/visits", h.List).Methods(http.MethodGet)
}

// CustomerInput 现场建档客户信息
type CustomerInput struct {
	Name     string          `json:"name"`
	Phone    string          `json:"phone,omitempty"`
	Address  string          `json:"address,omitempty"`
	Location *model.Location `json:"location,omitempty"`
	Industry string          `json:"industry,omitempty"`
	Type     string          `json:"type,omitempty"` // company/individual
}

// VisitCheckInRequest 外访签到请求
type VisitCheckInRequest struct {
	CustomerID *uuid.UUID      `json:"customer_id,omitempty"`
	Customer   *CustomerInput  `json:"customer,omitempty"`
	Department string          `json:"department"`
	Purpose    string          `json:"purpose"`
	Location   *model.Location `json:"location,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// VisitCheckInResponse 外访签到响应
type VisitCheckInResponse struct {
	Visit    *model.SiteVisit `json:"visit"`
	Customer *model.Customer  `json:"customer"`
}

// stepPayload 将签到请求转换为校验载荷
func (req *VisitCheckInRequest) stepPayload() *validator.StepPayload {
	p := &validator.StepPayload{
		CustomerID: req.CustomerID,
		Department: req.Department,
		Purpose:    req.Purpose,
		Location:   req.Location,
	}
	if req.Customer != nil {
		p.Customer = &validator.CustomerDraft{
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
		}
	}
	return p
}

// generateCustomerCode 现场建档的客户编码
func generateCustomerCode(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("CU-%s-%s", now.Format("20060102"), suffix)
}

// CheckIn 外访签到，必要时现场建档客户
func (h *VisitHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	emp, err := h.employees.GetByID(r.Context(), id.EmployeeID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if emp == nil {
		respondError(w, errors.NotFound("员工", id.EmployeeID.String()))
		return
	}
	if !emp.IsFieldWorker() {
		respondError(w, errors.New(errors.CodeForbidden, "仅外勤部门员工可进行外访打卡"))
		return
	}

	var req VisitCheckInRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	if ve := h.validator.ValidateCheckIn(req.stepPayload()); ve.HasErrors() {
		respondError(w, ve.ToAppError())
		return
	}

	open, err := h.visits.GetOpenByEmployee(r.Context(), id.EmployeeID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}
	if open != nil {
		respondError(w, errors.VisitConflict(id.EmployeeID.String(), open.VisitNo))
		return
	}

	now := time.Now()
	today := now.Format("2006-01-02")
	if h.visitCfg.MaxDailyVisits > 0 {
		count, err := h.visits.CountByEmployeeAndDate(r.Context(), id.EmployeeID, today)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
			return
		}
		if count >= h.visitCfg.MaxDailyVisits {
			respondError(w, errors.RuleViolation("max_daily_visits",
				fmt.Sprintf("当日外访已达%d次上限", h.visitCfg.MaxDailyVisits)))
			return
		}
	}

	// 既有客户直接使用，现场建档先按电话去重
	var customer *model.Customer
	if req.CustomerID != nil {
		customer, err = h.customers.GetByID(r.Context(), *req.CustomerID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
			return
		}
		if customer == nil || customer.OrgID != id.OrgID {
			respondError(w, errors.NotFound("客户", req.CustomerID.String()))
			return
		}
	} else if req.Customer.Phone != "" {
		customer, err = h.customers.GetByPhone(r.Context(), id.OrgID, req.Customer.Phone)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
			return
		}
	}

	var loc model.Location
	if req.Location != nil {
		loc = *req.Location
	}

	var visit *model.SiteVisit
	err = h.db.Transaction(r.Context(), func(tx *sql.Tx) error {
		if customer == nil {
			customerType := req.Customer.Type
			if customerType == "" {
				customerType = "company"
			}
			customer = &model.Customer{
				OrgID:    id.OrgID,
				Name:     req.Customer.Name,
				Code:     generateCustomerCode(now),
				Phone:    req.Customer.Phone,
				Address:  req.Customer.Address,
				Location: req.Customer.Location,
				Industry: req.Customer.Industry,
				Type:     customerType,
				Status:   "active",
				Source:   "visit",
			}
			if err := repository.NewCustomerRepository(tx).Create(r.Context(), customer); err != nil {
				return err
			}
		}

		visit = &model.SiteVisit{
			OrgID:           id.OrgID,
			EmployeeID:      id.EmployeeID,
			CustomerID:      customer.ID,
			Department:      model.Department(req.Department),
			Purpose:         req.Purpose,
			CheckInTime:     now,
			CheckInLocation: loc,
			Status:          model.VisitCheckedIn,
			Notes:           req.Notes,
		}
		return repository.NewSiteVisitRepository(tx).Create(r.Context(), visit)
	})
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "创建外访记录失败"))
		return
	}

	metrics.RecordVisit(req.Department, model.VisitCheckedIn)
	logger.Info().
		Str("employee_id", id.EmployeeID.String()).
		Str("visit_no", visit.VisitNo).
		Str("customer_id", customer.ID.String()).
		Msg("外访签到")

	respondJSON(w, http.StatusCreated, VisitCheckInResponse{
		Visit:    visit,
		Customer: customer,
	})
}

// VisitCheckOutRequest 外访签退请求
type VisitCheckOutRequest struct {
	Location      *model.Location `json:"location,omitempty"`
	Outcome       string          `json:"outcome"`
	NextVisitDate string          `json:"next_visit_date,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// CheckOut 外访签退，填写访问结果
func (h *VisitHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	visitID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	visit, err := h.visits.GetByID(r.Context(), visitID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}
	if visit == nil || visit.OrgID != id.OrgID {
		respondError(w, errors.NotFound("外访记录", visitID.String()))
		return
	}
	if visit.EmployeeID != id.EmployeeID {
		respondError(w, errors.New(errors.CodeForbidden, "只能签退本人的外访"))
		return
	}
	if !visit.IsOpen() {
		respondError(w, errors.New(errors.CodeVisitClosed, "外访已签退"))
		return
	}

	var req VisitCheckOutRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	ve := h.validator.ValidateCheckOut(&validator.StepPayload{
		Outcome:       req.Outcome,
		NextVisitDate: req.NextVisitDate,
		CancelReason:  req.CancelReason,
	})
	if h.visitCfg.RequireLocation && req.Location == nil {
		ve.Add("location", "需要提供签退定位")
	}
	if ve.HasErrors() {
		respondError(w, ve.ToAppError())
		return
	}

	now := time.Now()
	visit.CheckOutTime = &now
	visit.CheckOutLocation = req.Location
	visit.Outcome = req.Outcome
	visit.NextVisitDate = req.NextVisitDate
	visit.CancelReason = req.CancelReason
	visit.Status = model.VisitCheckedOut
	if req.Notes != "" {
		visit.Notes = req.Notes
	}

	if err := h.visits.Update(r.Context(), visit); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新外访记录失败"))
		return
	}

	metrics.RecordVisit(string(visit.Department), model.VisitCheckedOut)
	logger.Info().
		Str("visit_no", visit.VisitNo).
		Str("outcome", req.Outcome).
		Int("duration_minutes", visit.DurationMinutes()).
		Msg("外访签退")

	respondJSON(w, http.StatusOK, visit)
}

// UploadPhoto 上传外访照片
func (h *VisitHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	visitID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	visit, err := h.visits.GetByID(r.Context(), visitID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}
	if visit == nil || visit.OrgID != id.OrgID {
		respondError(w, errors.NotFound("外访记录", visitID.String()))
		return
	}
	if visit.EmployeeID != id.EmployeeID {
		respondError(w, errors.New(errors.CodeForbidden, "只能为本人的外访上传照片"))
		return
	}
	if len(visit.Photos) >= h.visitCfg.MaxPhotos {
		respondError(w, errors.New(errors.CodeTooManyPhotos,
			fmt.Sprintf("单次外访最多上传%d张照片", h.visitCfg.MaxPhotos)))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.visitCfg.MaxPhotoBytes+4096)
	if err := r.ParseMultipartForm(h.visitCfg.MaxPhotoBytes); err != nil {
		respondError(w, errors.New(errors.CodePhotoTooLarge,
			fmt.Sprintf("照片超过%dMB大小上限", h.visitCfg.MaxPhotoBytes/(1<<20))))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		respondError(w, errors.InvalidInput("photo", "缺少photo文件字段"))
		return
	}
	defer file.Close()

	if header.Size > h.visitCfg.MaxPhotoBytes {
		respondError(w, errors.New(errors.CodePhotoTooLarge,
			fmt.Sprintf("照片超过%dMB大小上限", h.visitCfg.MaxPhotoBytes/(1<<20))))
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "读取上传内容失败"))
		return
	}

	name, err := h.photos.Save(raw, visit.ID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "照片处理失败").WithDetails(err.Error()))
		return
	}

	visit.Photos = append(visit.Photos, name)
	if err := h.visits.Update(r.Context(), visit); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新外访记录失败"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"visit_no": visit.VisitNo,
		"photos":   visit.Photos,
	})
}

// FollowUpRequest 回访签到请求
type FollowUpRequest struct {
	Purpose  string          `json:"purpose"`
	Location *model.Location `json:"location,omitempty"`
	Notes    string          `json:"notes,omitempty"`
}

// FollowUp 基于已有外访开启回访
func (h *VisitHandler) FollowUp(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	originalID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	original, err := h.visits.GetByID(r.Context(), originalID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}
	if original == nil || original.OrgID != id.OrgID {
		respondError(w, errors.NotFound("外访记录", originalID.String()))
		return
	}
	// 回访只挂在首访上，不允许链式回访
	if original.IsFollowUp() {
		respondError(w, errors.InvalidInput("id", "不能为回访再创建回访"))
		return
	}
	if original.IsOpen() {
		respondError(w, errors.New(errors.CodeVisitConflict, "原访仍未签退，不能开启回访"))
		return
	}

	emp, err := h.employees.GetByID(r.Context(), id.EmployeeID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if emp == nil {
		respondError(w, errors.NotFound("员工", id.EmployeeID.String()))
		return
	}
	if !emp.IsFieldWorker() {
		respondError(w, errors.New(errors.CodeForbidden, "仅外勤部门员工可进行外访打卡"))
		return
	}

	var req FollowUpRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	ve := h.validator.ValidateCheckIn(&validator.StepPayload{
		CustomerID: &original.CustomerID,
		Department: string(original.Department),
		Purpose:    req.Purpose,
		Location:   req.Location,
	})
	if ve.HasErrors() {
		respondError(w, ve.ToAppError())
		return
	}

	open, err := h.visits.GetOpenByEmployee(r.Context(), id.EmployeeID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}
	if open != nil {
		respondError(w, errors.VisitConflict(id.EmployeeID.String(), open.VisitNo))
		return
	}

	now := time.Now()
	var loc model.Location
	if req.Location != nil {
		loc = *req.Location
	}

	visit := &model.SiteVisit{
		OrgID:           id.OrgID,
		EmployeeID:      id.EmployeeID,
		CustomerID:      original.CustomerID,
		Department:      original.Department,
		Purpose:         req.Purpose,
		CheckInTime:     now,
		CheckInLocation: loc,
		Status:          model.VisitCheckedIn,
		FollowUpOf:      &original.ID,
		Notes:           req.Notes,
	}
	if err := h.visits.Create(r.Context(), visit); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "创建回访记录失败"))
		return
	}

	metrics.RecordVisit(string(visit.Department), model.VisitCheckedIn)
	logger.Info().
		Str("visit_no", visit.VisitNo).
		Str("follow_up_of", original.VisitNo).
		Msg("回访签到")

	respondJSON(w, http.StatusCreated, visit)
}

// CustomerGroupView 客户外访链路视图
type CustomerGroupView struct {
	*visitflow.CustomerGroup
	Customer *model.Customer `json:"customer,omitempty"`
}

// ByCustomer 按客户聚合外访链路
func (h *VisitHandler) ByCustomer(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	q := r.URL.Query()
	filter := repository.DefaultListFilter().WithOrgID(id.OrgID).WithLimit(100000)
	if dept := q.Get("department"); dept != "" {
		filter = filter.WithDepartment(dept)
	}
	if month := q.Get("month"); month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的月份格式，应为YYYY-MM"))
			return
		}
		filter = filter.WithDateRange(t.Format("2006-01-02"), t.AddDate(0, 1, -1).Format("2006-01-02"))
	}

	visits, _, err := h.visits.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}

	groups := visitflow.GroupByCustomer(visits)

	customers := make(map[uuid.UUID]*model.Customer, len(groups))
	for _, g := range groups {
		if _, ok := customers[g.CustomerID]; ok {
			continue
		}
		c, err := h.customers.GetByID(r.Context(), g.CustomerID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
			return
		}
		customers[g.CustomerID] = c
	}

	views := make([]*CustomerGroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, &CustomerGroupView{
			CustomerGroup: g,
			Customer:      customers[g.CustomerID],
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"groups": views,
		"total":  len(views),
	})
}

// ValidateStepRequest 分步校验请求
type ValidateStepRequest struct {
	Step    int                   `json:"step"`
	Payload validator.StepPayload `json:"payload"`
}

// ValidateStepResponse 分步校验响应
type ValidateStepResponse struct {
	Valid  bool                     `json:"valid"`
	Errors []errors.ValidationError `json:"errors"`
}

// Validate 多步表单的逐步校验，不落库
func (h *VisitHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateStepRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}

	ve := h.validator.ValidateStep(req.Step, &req.Payload)
	resp := ValidateStepResponse{
		Valid:  !ve.HasErrors(),
		Errors: ve.Errors,
	}
	if resp.Errors == nil {
		resp.Errors = []errors.ValidationError{}
	}

	respondJSON(w, http.StatusOK, resp)
}

// List 查询外访记录列表
func (h *VisitHandler) List(w http.ResponseWriter, r *http.Request) {
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
	// 普通员工只能查询本人外访
	if !id.CanManage() {
		filter = filter.WithEmployee(id.EmployeeID)
	}

	q := r.URL.Query()
	if outcome := q.Get("outcome"); outcome != "" {
		if filter.Extra == nil {
			filter.Extra = make(map[string]interface{})
		}
		filter.Extra["outcome"] = outcome
	}
	if raw := q.Get("customer_id"); raw != "" {
		customerID, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的客户ID格式"))
			return
		}
		if filter.Extra == nil {
			filter.Extra = make(map[string]interface{})
		}
		filter.Extra["customer_id"] = customerID
	}

	visits, total, err := h.visits.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}
	if visits == nil {
		visits = []*model.SiteVisit{}
	}

	respondJSON(w, http.StatusOK, ListResponse{
		Items:  visits,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get 查询单条外访记录
func (h *VisitHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	visitID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	visit, err := h.visits.GetByID(r.Context(), visitID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}
	if visit == nil || visit.OrgID != id.OrgID {
		respondError(w, errors.NotFound("外访记录", visitID.String()))
		return
	}

	respondJSON(w, http.StatusOK, visit)
}
