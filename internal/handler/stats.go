package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/identity"
	"github.com/kaoqin/kaoqin/internal/metrics"
	"github.com/kaoqin/kaoqin/internal/middleware"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/stats"
)

// StatsHandler 考勤与加班统计处理器
type StatsHandler struct {
	employees  *repository.EmployeeRepository
	attendance *repository.AttendanceRepository
	ot         *repository.OTSessionRepository

	attendanceAnalyzer *stats.AttendanceAnalyzer
	otLoadAnalyzer     *stats.OTLoadAnalyzer
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(
	employees *repository.EmployeeRepository,
	attendance *repository.AttendanceRepository,
	ot *repository.OTSessionRepository,
) *StatsHandler {
	return &StatsHandler{
		employees:          employees,
		attendance:         attendance,
		ot:                 ot,
		attendanceAnalyzer: stats.NewAttendanceAnalyzer(),
		otLoadAnalyzer:     stats.NewOTLoadAnalyzer(),
	}
}

// RegisterRoutes 注册路由，统计限主管以上
func (h *StatsHandler) RegisterRoutes(r *mux.Router) {
	guard := middleware.RequireRole(identity.RoleAdmin, identity.RoleHR, identity.RoleManager)
	r.Handle("/stats/attendance", guard(http.HandlerFunc(h.Attendance))).Methods(http.MethodGet)
	r.Handle("/stats/ot-load", guard(http.HandlerFunc(h.OTLoad))).Methods(http.MethodGet)
}

// AttendanceStatsResponse 考勤统计响应
type AttendanceStatsResponse struct {
	Month string `json:"month"`
	*stats.AttendanceMetrics
}

// Attendance 月度考勤统计
func (h *StatsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
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

	employees, err := h.employees.ListActive(r.Context(), id.OrgID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	records, _, err := h.attendance.List(r.Context(), repository.DefaultListFilter().
		WithOrgID(id.OrgID).
		WithDateRange(start, end).
		WithLimit(100000))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询考勤记录失败"))
		return
	}

	m := h.attendanceAnalyzer.Analyze(records, employees)
	metrics.SetAttendanceRate(id.OrgID.String(), m.AttendanceRate)

	respondJSON(w, http.StatusOK, AttendanceStatsResponse{Month: month, AttendanceMetrics: m})
}

// OTLoadStatsResponse 加班负荷统计响应，附带与上月的环比
type OTLoadStatsResponse struct {
	Month string `json:"month"`
	*stats.OTLoadMetrics
	VsPrevious map[string]float64 `json:"vs_previous,omitempty"`
}

// OTLoad 月度加班负荷分布
func (h *StatsHandler) OTLoad(w http.ResponseWriter, r *http.Request) {
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

	employees, err := h.employees.ListActive(r.Context(), id.OrgID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}
	sessions, _, err := h.ot.List(r.Context(), repository.DefaultListFilter().
		WithOrgID(id.OrgID).
		WithDateRange(start, end).
		WithLimit(100000))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班时段失败"))
		return
	}

	// 上月时段用于环比
	monthStart, _ := time.Parse("2006-01-02", start)
	prevStart := monthStart.AddDate(0, -1, 0).Format("2006-01-02")
	prevEnd := monthStart.AddDate(0, 0, -1).Format("2006-01-02")
	prevSessions, _, err := h.ot.List(r.Context(), repository.DefaultListFilter().
		WithOrgID(id.OrgID).
		WithDateRange(prevStart, prevEnd).
		WithLimit(100000))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班时段失败"))
		return
	}

	m := h.otLoadAnalyzer.Analyze(sessions, employees)
	metrics.SetOTGini(id.OrgID.String(), "hours", m.HoursGini)
	metrics.SetOTGini(id.OrgID.String(), "night", m.NightGini)
	metrics.SetOTGini(id.OrgID.String(), "weekend", m.WeekendGini)

	respondJSON(w, http.StatusOK, OTLoadStatsResponse{
		Month:         month,
		OTLoadMetrics: m,
		VsPrevious:    h.otLoadAnalyzer.ComparePeriods(sessions, prevSessions, employees),
	})
}
