package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/followup"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/visitflow"
)

// FollowUpHandler 回访推荐处理器
type FollowUpHandler struct {
	visits      *repository.SiteVisitRepository
	customers   *repository.CustomerRepository
	employees   *repository.EmployeeRepository
	recommender *followup.Recommender
}

// NewFollowUpHandler 创建回访推荐处理器
func NewFollowUpHandler(
	visits *repository.SiteVisitRepository,
	customers *repository.CustomerRepository,
	employees *repository.EmployeeRepository,
	recommender *followup.Recommender,
) *FollowUpHandler {
	return &FollowUpHandler{
		visits:      visits,
		customers:   customers,
		employees:   employees,
		recommender: recommender,
	}
}

// RegisterRoutes 注册路由
func (h *FollowUpHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/followups/recommend", h.Recommend).Methods(http.MethodPost)
	r.HandleFunc("/followups/worklist", h.Worklist).Methods(http.MethodGet)
}

// RecommendRequest 无状态推荐请求，数据全部由调用方提供
type RecommendRequest struct {
	Groups     []*visitflow.CustomerGroup    `json:"groups"`
	Customers  []*model.Customer             `json:"customers,omitempty"`
	Employees  []*model.Employee             `json:"employees"`
	History    []model.CustomerVisitHistory  `json:"history,omitempty"`
	OpenVisits []*model.SiteVisit            `json:"open_visits,omitempty"`
	Locations  map[uuid.UUID]*model.Location `json:"locations,omitempty"` // 员工ID -> 最近位置
	MaxResults int                           `json:"max_results,omitempty"`
}

// RecommendResponse 推荐响应，候选按分数倒序
type RecommendResponse struct {
	Candidates []*followup.Recommendation `json:"candidates"`
	Total      int                        `json:"total"`
}

// Recommend 对调用方提供的客户分组计算回访建议
func (h *FollowUpHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	if len(req.Groups) == 0 {
		respondError(w, errors.InvalidInput("groups", "客户分组不能为空"))
		return
	}
	if len(req.Employees) == 0 {
		respondError(w, errors.InvalidInput("employees", "员工列表不能为空"))
		return
	}

	candidates := h.recommender.Recommend(&followup.Request{
		Groups:     req.Groups,
		Customers:  req.Customers,
		Employees:  req.Employees,
		History:    req.History,
		OpenVisits: req.OpenVisits,
		Locations:  req.Locations,
		MaxResults: req.MaxResults,
	})
	if candidates == nil {
		candidates = []*followup.Recommendation{}
	}

	respondJSON(w, http.StatusOK, RecommendResponse{Candidates: candidates, Total: len(candidates)})
}

// WorklistResponse 回访工作清单响应
type WorklistResponse struct {
	Month      string                     `json:"month"`
	Candidates []*followup.Recommendation `json:"candidates"`
	Total      int                        `json:"total"`
}

// Worklist 基于库内外访数据生成当月回访工作清单
func (h *FollowUpHandler) Worklist(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	month, start, end, aerr := monthParam(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	visits, _, err := h.visits.List(r.Context(), repository.DefaultListFilter().
		WithOrgID(id.OrgID).
		WithDateRange(start, end).
		WithLimit(100000))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}

	groups := visitflow.GroupByCustomer(visits)
	if len(groups) == 0 {
		respondJSON(w, http.StatusOK, WorklistResponse{Month: month, Candidates: []*followup.Recommendation{}})
		return
	}

	employees, err := h.employees.ListActive(r.Context(), id.OrgID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}

	historyRows, err := h.visits.VisitHistory(r.Context(), id.OrgID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访历史失败"))
		return
	}
	history := make([]model.CustomerVisitHistory, 0, len(historyRows))
	for _, row := range historyRows {
		history = append(history, *row)
	}

	// 在访记录不限当月，负载以当前实际在访为准
	openVisits, _, err := h.visits.List(r.Context(), repository.DefaultListFilter().
		WithOrgID(id.OrgID).
		WithStatus(model.VisitCheckedIn).
		WithLimit(10000))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询在访记录失败"))
		return
	}

	customers := make([]*model.Customer, 0, len(groups))
	for _, g := range groups {
		customer, err := h.customers.GetByID(r.Context(), g.CustomerID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
			return
		}
		if customer != nil {
			customers = append(customers, customer)
		}
	}

	candidates := h.recommender.Recommend(&followup.Request{
		Groups:     groups,
		Customers:  customers,
		Employees:  employees,
		History:    history,
		OpenVisits: openVisits,
		Locations:  lastKnownLocations(visits),
	})
	if candidates == nil {
		candidates = []*followup.Recommendation{}
	}

	respondJSON(w, http.StatusOK, WorklistResponse{
		Month:      month,
		Candidates: candidates,
		Total:      len(candidates),
	})
}

// lastKnownLocations 取每名员工最近一次签退的定位
func lastKnownLocations(visits []*model.SiteVisit) map[uuid.UUID]*model.Location {
	locations := make(map[uuid.UUID]*model.Location)
	latest := make(map[uuid.UUID]*model.SiteVisit)
	for _, v := range visits {
		if v.CheckOutTime == nil || v.CheckOutLocation == nil {
			continue
		}
		if prev, ok := latest[v.EmployeeID]; !ok || v.CheckOutTime.After(*prev.CheckOutTime) {
			latest[v.EmployeeID] = v
			locations[v.EmployeeID] = v.CheckOutLocation
		}
	}
	return locations
}
