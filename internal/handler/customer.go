package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// CustomerHandler 客户档案处理器
type CustomerHandler struct {
	customers *repository.CustomerRepository
}

// NewCustomerHandler 创建客户档案处理器
func NewCustomerHandler(customers *repository.CustomerRepository) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// RegisterRoutes 注册路由
func (h *CustomerHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/customers", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/customers", h.List).Methods(http.MethodGet)
	r.HandleFunc("/customers/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/customers/{id}", h.Update).Methods(http.MethodPut)
}

// CustomerRequest 客户创建与更新请求
type CustomerRequest struct {
	Name     string          `json:"name"`
	Code     string          `json:"code,omitempty"`
	Phone    string          `json:"phone,omitempty"`
	Address  string          `json:"address,omitempty"`
	Location *model.Location `json:"location,omitempty"`
	Industry string          `json:"industry,omitempty"`
	Type     string          `json:"type,omitempty"`   // company/individual
	Status   string          `json:"status,omitempty"` // active/inactive
	Notes    string          `json:"notes,omitempty"`
}

// validateCustomerRequest 验证客户请求
func validateCustomerRequest(req *CustomerRequest, creating bool) *errors.AppError {
	ve := &errors.ValidationErrors{}

	if creating && req.Name == "" {
		ve.Add("name", "客户名称不能为空")
	}
	switch req.Type {
	case "", "company", "individual":
	default:
		ve.Add("type", "客户类型必须是 company/individual 之一")
	}
	switch req.Status {
	case "", "active", "inactive":
	default:
		ve.Add("status", "客户状态必须是 active/inactive 之一")
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// Create 手工创建客户
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req CustomerRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	if aerr := validateCustomerRequest(&req, true); aerr != nil {
		respondError(w, aerr)
		return
	}

	// 同号客户拒绝重复建档
	if req.Phone != "" {
		existing, err := h.customers.GetByPhone(r.Context(), id.OrgID, req.Phone)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
			return
		}
		if existing != nil {
			respondError(w, errors.New(errors.CodeAlreadyExists, "该电话已有客户档案: "+existing.Name))
			return
		}
	}

	customerType := req.Type
	if customerType == "" {
		customerType = "company"
	}
	code := req.Code
	if code == "" {
		code = generateCustomerCode(time.Now())
	}

	customer := &model.Customer{
		OrgID:    id.OrgID,
		Name:     req.Name,
		Code:     code,
		Phone:    req.Phone,
		Address:  req.Address,
		Location: req.Location,
		Industry: req.Industry,
		Type:     customerType,
		Status:   "active",
		Source:   "manual",
		Notes:    req.Notes,
	}
	if err := h.customers.Create(r.Context(), customer); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "创建客户失败"))
		return
	}

	respondJSON(w, http.StatusCreated, customer)
}

// List 查询客户列表，支持search模糊匹配名称、电话与地址
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
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
	q := r.URL.Query()
	if search := q.Get("search"); search != "" {
		filter.Search = search
	}
	if source := q.Get("source"); source != "" {
		if filter.Extra == nil {
			filter.Extra = make(map[string]interface{})
		}
		filter.Extra["source"] = source
	}

	customers, total, err := h.customers.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
		return
	}
	if customers == nil {
		customers = []*model.Customer{}
	}

	respondJSON(w, http.StatusOK, ListResponse{
		Items:  customers,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get 查询单个客户
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	customerID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	customer, err := h.customers.GetByID(r.Context(), customerID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
		return
	}
	if customer == nil || customer.OrgID != id.OrgID {
		respondError(w, errors.NotFound("客户", customerID.String()))
		return
	}

	respondJSON(w, http.StatusOK, customer)
}

// Update 更新客户档案，仅覆盖提交的字段
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	customerID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	customer, err := h.customers.GetByID(r.Context(), customerID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
		return
	}
	if customer == nil || customer.OrgID != id.OrgID {
		respondError(w, errors.NotFound("客户", customerID.String()))
		return
	}

	var req CustomerRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	if aerr := validateCustomerRequest(&req, false); aerr != nil {
		respondError(w, aerr)
		return
	}

	if req.Name != "" {
		customer.Name = req.Name
	}
	if req.Code != "" {
		customer.Code = req.Code
	}
	if req.Phone != "" {
		customer.Phone = req.Phone
	}
	if req.Address != "" {
		customer.Address = req.Address
	}
	if req.Location != nil {
		customer.Location = req.Location
	}
	if req.Industry != "" {
		customer.Industry = req.Industry
	}
	if req.Type != "" {
		customer.Type = req.Type
	}
	if req.Status != "" {
		customer.Status = req.Status
	}
	if req.Notes != "" {
		customer.Notes = req.Notes
	}

	if err := h.customers.Update(r.Context(), customer); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新客户失败"))
		return
	}

	respondJSON(w, http.StatusOK, customer)
}
