package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/quotation"
)

// QuotationHandler 报价单处理器
type QuotationHandler struct {
	quotations *repository.QuotationRepository
	customers  *repository.CustomerRepository
	visits     *repository.SiteVisitRepository
	employees  *repository.EmployeeRepository
	orgs       *repository.OrganizationRepository
	builder    *quotation.Builder
	renderer   *quotation.Renderer
}

// NewQuotationHandler 创建报价单处理器
func NewQuotationHandler(
	quotations *repository.QuotationRepository,
	customers *repository.CustomerRepository,
	visits *repository.SiteVisitRepository,
	employees *repository.EmployeeRepository,
	orgs *repository.OrganizationRepository,
	builder *quotation.Builder,
	renderer *quotation.Renderer,
) *QuotationHandler {
	return &QuotationHandler{
		quotations: quotations,
		customers:  customers,
		visits:     visits,
		employees:  employees,
		orgs:       orgs,
		builder:    builder,
		renderer:   renderer,
	}
}

// RegisterRoutes 注册路由
func (h *QuotationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/quotations", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/quotations", h.List).Methods(http.MethodGet)
	r.HandleFunc("/quotations/default-items", h.DefaultItems).Methods(http.MethodGet)
	r.HandleFunc("/quotations/{id}/status", h.UpdateStatus).Methods(http.MethodPost)
	r.HandleFunc("/quotations/{id}/document", h.Document).Methods(http.MethodGet)
	r.HandleFunc("/quotations/{id}", h.Get).Methods(http.MethodGet)
}

// CreateQuotationRequest 报价单创建请求
type CreateQuotationRequest struct {
	CustomerID uuid.UUID             `json:"customer_id"`
	VisitID    *uuid.UUID            `json:"visit_id,omitempty"`
	Title      string                `json:"title,omitempty"`
	Items      []model.QuotationItem `json:"items"`
	TaxRate    *float64              `json:"tax_rate,omitempty"`
	ValidUntil string                `json:"valid_until,omitempty"` // YYYY-MM-DD
	Notes      string                `json:"notes,omitempty"`
}

// Create 创建报价单
func (h *QuotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req CreateQuotationRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	if req.CustomerID == uuid.Nil {
		respondError(w, errors.InvalidInput("customer_id", "客户ID不能为空"))
		return
	}
	if req.ValidUntil != "" {
		if _, err := time.Parse("2006-01-02", req.ValidUntil); err != nil {
			respondError(w, errors.InvalidInput("valid_until", "日期格式应为YYYY-MM-DD"))
			return
		}
	}

	customer, err := h.customers.GetByID(r.Context(), req.CustomerID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
		return
	}
	if customer == nil || customer.OrgID != id.OrgID {
		respondError(w, errors.NotFound("客户", req.CustomerID.String()))
		return
	}

	// 关联外访必须属于同一客户
	if req.VisitID != nil {
		visit, err := h.visits.GetByID(r.Context(), *req.VisitID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
			return
		}
		if visit == nil || visit.OrgID != id.OrgID {
			respondError(w, errors.NotFound("外访记录", req.VisitID.String()))
			return
		}
		if visit.CustomerID != req.CustomerID {
			respondError(w, errors.InvalidInput("visit_id", "外访不属于该客户"))
			return
		}
	}

	q, err := h.builder.Build(&quotation.BuildRequest{
		OrgID:      id.OrgID,
		CustomerID: req.CustomerID,
		VisitID:    req.VisitID,
		Title:      req.Title,
		Items:      req.Items,
		TaxRate:    req.TaxRate,
		ValidUntil: req.ValidUntil,
		CreatedBy:  id.EmployeeID,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(w, errors.New(errors.CodeValidationFail, err.Error()))
		return
	}

	if err := h.quotations.Create(r.Context(), q); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "创建报价单失败"))
		return
	}

	logger.Info().
		Str("quote_no", q.QuoteNo).
		Str("customer_id", q.CustomerID.String()).
		Float64("total", q.Total).
		Msg("报价单已创建")

	respondJSON(w, http.StatusCreated, q)
}

// DefaultItems 查询部门默认报价条目
func (h *QuotationHandler) DefaultItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dept := model.Department(q.Get("department"))
	level := 1
	if raw := q.Get("level"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, errors.InvalidInput("level", "档位必须是整数"))
			return
		}
		level = n
	}

	items := h.builder.DefaultItems(dept, level)
	if items == nil {
		items = []model.QuotationItem{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"department": dept,
		"level":      level,
		"items":      items,
	})
}

// QuoteStatusRequest 报价单状态流转请求
type QuoteStatusRequest struct {
	Status string `json:"status"` // sent/accepted/declined
}

// UpdateStatus 流转报价单状态
func (h *QuotationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	quoteID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req QuoteStatusRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}

	q, err := h.quotations.GetByID(r.Context(), quoteID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询报价单失败"))
		return
	}
	if q == nil || q.OrgID != id.OrgID {
		respondError(w, errors.NotFound("报价单", quoteID.String()))
		return
	}

	// 过期在先，过期单不再流转
	if quotation.MarkIfExpired(q, time.Now()) {
		if err := h.quotations.UpdateStatus(r.Context(), q.ID, q.Status); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新报价单状态失败"))
			return
		}
	}

	if err := quotation.Transition(q, req.Status); err != nil {
		respondError(w, errors.New(errors.CodeInvalidInput, err.Error()))
		return
	}

	if err := h.quotations.UpdateStatus(r.Context(), q.ID, q.Status); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新报价单状态失败"))
		return
	}

	logger.Info().
		Str("quote_no", q.QuoteNo).
		Str("status", q.Status).
		Msg("报价单状态已流转")

	respondJSON(w, http.StatusOK, q)
}

// Document 渲染打印版报价单
func (h *QuotationHandler) Document(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	quoteID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	q, aerrOrNil := h.loadQuotation(r, id.OrgID, quoteID)
	if aerrOrNil != nil {
		respondError(w, aerrOrNil)
		return
	}

	customer, err := h.customers.GetByID(r.Context(), q.CustomerID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
		return
	}
	org, err := h.orgs.GetByID(r.Context(), q.OrgID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询组织失败"))
		return
	}
	creator, err := h.employees.GetByID(r.Context(), q.CreatedBy)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.RenderDocument(w, &quotation.DocumentData{
		Quotation:  q,
		Customer:   customer,
		Org:        org,
		Creator:    creator,
		RenderedAt: time.Now(),
	}); err != nil {
		logger.Error().Err(err).Str("quote_no", q.QuoteNo).Msg("渲染报价单失败")
	}
}

// List 查询报价单列表
func (h *QuotationHandler) List(w http.ResponseWriter, r *http.Request) {
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
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		customerID, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, errors.InvalidInput("customer_id", "无效的客户ID格式"))
			return
		}
		if filter.Extra == nil {
			filter.Extra = make(map[string]interface{})
		}
		filter.Extra["customer_id"] = customerID
	}

	quotes, total, err := h.quotations.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询报价单失败"))
		return
	}
	if quotes == nil {
		quotes = []*model.Quotation{}
	}

	// 读取时顺带落实过期状态
	now := time.Now()
	for _, q := range quotes {
		if quotation.MarkIfExpired(q, now) {
			if err := h.quotations.UpdateStatus(r.Context(), q.ID, q.Status); err != nil {
				logger.Warn().Err(err).Str("quote_no", q.QuoteNo).Msg("标记报价单过期失败")
			}
		}
	}

	respondJSON(w, http.StatusOK, ListResponse{
		Items:  quotes,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get 查询单张报价单
func (h *QuotationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	quoteID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	q, aerrOrNil := h.loadQuotation(r, id.OrgID, quoteID)
	if aerrOrNil != nil {
		respondError(w, aerrOrNil)
		return
	}

	respondJSON(w, http.StatusOK, q)
}

// loadQuotation 读取报价单并落实过期状态
func (h *QuotationHandler) loadQuotation(r *http.Request, orgID, quoteID uuid.UUID) (*model.Quotation, *errors.AppError) {
	q, err := h.quotations.GetByID(r.Context(), quoteID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询报价单失败")
	}
	if q == nil || q.OrgID != orgID {
		return nil, errors.NotFound("报价单", quoteID.String())
	}
	if quotation.MarkIfExpired(q, time.Now()) {
		if err := h.quotations.UpdateStatus(r.Context(), q.ID, q.Status); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "更新报价单状态失败")
		}
	}
	return q, nil
}
