package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/identity"
	"github.com/kaoqin/kaoqin/internal/metrics"
	"github.com/kaoqin/kaoqin/internal/middleware"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/othours"
	"github.com/kaoqin/kaoqin/pkg/otreview"
	"github.com/kaoqin/kaoqin/pkg/policy"
)

// OTHandler 加班申报与审核处理器
type OTHandler struct {
	ot         *repository.OTSessionRepository
	attendance *repository.AttendanceRepository
	visits     *repository.SiteVisitRepository
	employees  *repository.EmployeeRepository
	evaluator  *otreview.Evaluator
	otConfig   othours.Config
}

// NewOTHandler 创建加班处理器
func NewOTHandler(
	ot *repository.OTSessionRepository,
	attendance *repository.AttendanceRepository,
	visits *repository.SiteVisitRepository,
	employees *repository.EmployeeRepository,
	evaluator *otreview.Evaluator,
	otConfig othours.Config,
) *OTHandler {
	return &OTHandler{
		ot:         ot,
		attendance: attendance,
		visits:     visits,
		employees:  employees,
		evaluator:  evaluator,
		otConfig:   otConfig,
	}
}

// RegisterRoutes 注册路由
func (h *OTHandler) RegisterRoutes(r *mux.Router) {
	reviewer := middleware.RequireRole(identity.RoleAdmin, identity.RoleHR)
	r.HandleFunc("/ot-sessions", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/ot-sessions", h.List).Methods(http.MethodGet)
	r.Handle("/ot-sessions/{id}/review", reviewer(http.HandlerFunc(h.Review))).Methods(http.MethodPost)
	r.Handle("/ot-sessions/{id}/evaluate", reviewer(http.HandlerFunc(h.Evaluate))).Methods(http.MethodPost)
	r.HandleFunc("/ot-sessions/{id}", h.Get).Methods(http.MethodGet)
}

// CreateOTRequest 加班申报请求
type CreateOTRequest struct {
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM
	Reason    string `json:"reason"`
}

// validateCreateOTRequest 验证加班申报请求
func validateCreateOTRequest(req *CreateOTRequest) *errors.AppError {
	ve := &errors.ValidationErrors{}

	if req.Date == "" {
		ve.Add("date", "加班日期不能为空")
	} else if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		ve.Add("date", "日期格式应为YYYY-MM-DD")
	}
	if req.StartTime == "" {
		ve.Add("start_time", "开始时间不能为空")
	} else if _, err := time.Parse("15:04", req.StartTime); err != nil {
		ve.Add("start_time", "时间格式应为HH:MM")
	}
	if req.EndTime == "" {
		ve.Add("end_time", "结束时间不能为空")
	} else if _, err := time.Parse("15:04", req.EndTime); err != nil {
		ve.Add("end_time", "时间格式应为HH:MM")
	}
	if req.Reason == "" {
		ve.Add("reason", "加班事由不能为空")
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// Create 提交加班申报，时长由服务端计算
func (h *OTHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req CreateOTRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}
	if aerr := validateCreateOTRequest(&req); aerr != nil {
		respondError(w, aerr)
		return
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.StartTime, time.Local)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析开始时间失败"))
		return
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.EndTime, time.Local)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析结束时间失败"))
		return
	}
	// 结束早于开始视为跨午夜
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}

	claimed := othours.Calculate(start, end)
	if claimed*60 < float64(h.otConfig.MinClaimMinutes) {
		respondError(w, errors.New(errors.CodeInvalidTimeRange,
			"加班时长低于起报门槛"+othours.FormatMinutes(h.otConfig.MinClaimMinutes)))
		return
	}

	// 与同日待审/已批时段重叠的申报拒绝
	sameDay, err := h.ot.ListByEmployeeAndDate(r.Context(), id.EmployeeID, req.Date)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班时段失败"))
		return
	}
	newRange := model.TimeRange{Start: start, End: end}
	for _, s := range sameDay {
		if s.Status == model.OTRejected {
			continue
		}
		if s.Range().Overlaps(newRange) {
			respondError(w, errors.OTOverlap(id.EmployeeID.String(), req.Date))
			return
		}
	}

	session := &model.OTSession{
		OrgID:        id.OrgID,
		EmployeeID:   id.EmployeeID,
		Date:         req.Date,
		StartTime:    start,
		EndTime:      end,
		Reason:       req.Reason,
		ClaimedHours: claimed,
		Status:       model.OTPending,
	}
	if err := h.ot.Create(r.Context(), session); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "创建加班申报失败"))
		return
	}

	metrics.RecordOTSession(model.OTPending)
	logger.Info().
		Str("employee_id", id.EmployeeID.String()).
		Str("date", req.Date).
		Float64("claimed_hours", claimed).
		Msg("加班申报已提交")

	respondJSON(w, http.StatusCreated, session)
}

// ReviewOTRequest 加班审核请求
type ReviewOTRequest struct {
	Decision      string   `json:"decision"` // APPROVED/ADJUSTED/REJECTED
	ApprovedHours *float64 `json:"approved_hours,omitempty"`
	Note          string   `json:"note,omitempty"`
}

// Review 审核加班申报
func (h *OTHandler) Review(w http.ResponseWriter, r *http.Request) {
	reviewer, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	sessionID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req ReviewOTRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}

	session, err := h.ot.GetByID(r.Context(), sessionID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班申报失败"))
		return
	}
	if session == nil || session.OrgID != reviewer.OrgID {
		respondError(w, errors.NotFound("加班申报", sessionID.String()))
		return
	}

	var status string
	var approvedHours *float64
	switch strings.ToUpper(req.Decision) {
	case "APPROVED":
		status = model.OTApproved
		claimed := session.ClaimedHours
		approvedHours = &claimed
	case "ADJUSTED":
		status = model.OTAdjusted
		if req.ApprovedHours == nil {
			respondError(w, errors.InvalidInput("approved_hours", "调整审核必须提供核准时长"))
			return
		}
		if *req.ApprovedHours < 0 || *req.ApprovedHours > session.ClaimedHours {
			respondError(w, errors.InvalidInput("approved_hours", "核准时长必须在0与申报时长之间"))
			return
		}
		adjusted := othours.Round2(*req.ApprovedHours)
		approvedHours = &adjusted
	case "REJECTED":
		status = model.OTRejected
		zero := 0.0
		approvedHours = &zero
	default:
		respondError(w, errors.InvalidInput("decision", "必须是 APPROVED/ADJUSTED/REJECTED 之一"))
		return
	}

	ok, err := h.ot.Review(r.Context(), sessionID, status, approvedHours, reviewer.EmployeeID, req.Note)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "审核加班申报失败"))
		return
	}
	if !ok {
		respondError(w, errors.AlreadyReviewed("加班申报", sessionID.String()))
		return
	}

	metrics.RecordOTSession(status)
	logger.Info().
		Str("session_id", sessionID.String()).
		Str("reviewer", reviewer.EmployeeID.String()).
		Str("status", status).
		Msg("加班申报已审核")

	reviewed, err := h.ot.GetByID(r.Context(), sessionID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班申报失败"))
		return
	}
	respondJSON(w, http.StatusOK, reviewed)
}

// Evaluate 评估加班申报与佐证的吻合度，不改变任何数据
func (h *OTHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	sessionID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	session, err := h.ot.GetByID(r.Context(), sessionID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班申报失败"))
		return
	}
	if session == nil || session.OrgID != id.OrgID {
		respondError(w, errors.NotFound("加班申报", sessionID.String()))
		return
	}

	emp, err := h.employees.GetByID(r.Context(), session.EmployeeID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if emp == nil {
		respondError(w, errors.NotFound("员工", session.EmployeeID.String()))
		return
	}

	day, err := time.Parse("2006-01-02", session.Date)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInternal, "解析申报日期失败"))
		return
	}
	monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	monthStartStr := monthStart.Format("2006-01-02")
	monthEndStr := monthStart.AddDate(0, 1, -1).Format("2006-01-02")

	record, err := h.attendance.GetByEmployeeAndDate(r.Context(), session.EmployeeID, session.Date)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询考勤记录失败"))
		return
	}
	dayVisits, err := h.visits.ListByEmployeeAndDate(r.Context(), session.EmployeeID, session.Date)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
		return
	}
	monthRecords, err := h.attendance.ListByEmployeeRange(r.Context(), session.EmployeeID, monthStartStr, monthEndStr)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询考勤记录失败"))
		return
	}
	monthSessions, err := h.ot.ListByEmployeeRange(r.Context(), session.EmployeeID, monthStartStr, monthEndStr)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班时段失败"))
		return
	}

	pctx := policy.NewContext(id.OrgID, monthStartStr, monthEndStr)
	pctx.SetEmployees([]*model.Employee{emp})
	pctx.SetRecords(monthRecords)
	pctx.SetOTSessions(monthSessions)
	pctx.SetVisits(dayVisits)

	evaluation := h.evaluator.Evaluate(pctx, &otreview.ReviewRequest{
		Session: session,
		Record:  record,
		Visits:  dayVisits,
	})

	respondJSON(w, http.StatusOK, evaluation)
}

// List 查询加班申报列表
func (h *OTHandler) List(w http.ResponseWriter, r *http.Request) {
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
	// 普通员工只能查询本人申报
	if !id.CanManage() {
		filter = filter.WithEmployee(id.EmployeeID)
	}

	sessions, total, err := h.ot.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班申报失败"))
		return
	}
	if sessions == nil {
		sessions = []*model.OTSession{}
	}

	respondJSON(w, http.StatusOK, ListResponse{
		Items:  sessions,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get 查询单条加班申报
func (h *OTHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	sessionID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	session, err := h.ot.GetByID(r.Context(), sessionID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班申报失败"))
		return
	}
	if session == nil || session.OrgID != id.OrgID {
		respondError(w, errors.NotFound("加班申报", sessionID.String()))
		return
	}
	if !id.CanManage() && session.EmployeeID != id.EmployeeID {
		respondError(w, errors.New(errors.CodeForbidden, "无权查看他人的加班申报"))
		return
	}

	respondJSON(w, http.StatusOK, session)
}
