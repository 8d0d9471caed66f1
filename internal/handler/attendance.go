package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/metrics"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/othours"
)

// AttendanceHandler 考勤打卡处理器
type AttendanceHandler struct {
	attendance *repository.AttendanceRepository
	employees  *repository.EmployeeRepository
	derive     othours.DeriveConfig
}

// NewAttendanceHandler 创建考勤打卡处理器
func NewAttendanceHandler(
	attendance *repository.AttendanceRepository,
	employees *repository.EmployeeRepository,
	derive othours.DeriveConfig,
) *AttendanceHandler {
	return &AttendanceHandler{
		attendance: attendance,
		employees:  employees,
		derive:     derive,
	}
}

// RegisterRoutes 注册路由
func (h *AttendanceHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/attendance/check-in", h.CheckIn).Methods(http.MethodPost)
	r.HandleFunc("/attendance/check-out", h.CheckOut).Methods(http.MethodPost)
	r.HandleFunc("/attendance/summary", h.Summary).Methods(http.MethodGet)
	r.HandleFunc("/attendance", h.List).Methods(http.MethodGet)
}

// CheckInRequest 签到请求
type CheckInRequest struct {
	Location *model.Location `json:"location,omitempty"`
	Source   string          `json:"source,omitempty"` // mobile/web/machine
}

// CheckIn 签到
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req CheckInRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}

	source := req.Source
	switch source {
	case "":
		source = model.SourceMobile
	case model.SourceMobile, model.SourceWeb, model.SourceMachine:
	default:
		respondError(w, errors.InvalidInput("source", "必须是 mobile/web/machine 之一"))
		return
	}

	now := time.Now()
	date := now.Format("2006-01-02")

	existing, err := h.attendance.GetByEmployeeAndDate(r.Context(), id.EmployeeID, date)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询考勤记录失败"))
		return
	}
	if existing != nil && existing.CheckInTime != nil {
		metrics.RecordCheckIn("in", "conflict")
		respondError(w, errors.AlreadyCheckedIn(id.EmployeeID.String(), date))
		return
	}

	// 导入产生的无签到记录直接补上签到时间
	if existing != nil {
		existing.CheckInTime = &now
		existing.CheckInLocation = req.Location
		existing.Status = model.AttendanceIncomplete
		if err := h.attendance.Update(r.Context(), existing); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新考勤记录失败"))
			return
		}
		metrics.RecordCheckIn("in", "ok")
		respondJSON(w, http.StatusOK, existing)
		return
	}

	rec := &model.AttendanceRecord{
		OrgID:           id.OrgID,
		EmployeeID:      id.EmployeeID,
		Date:            date,
		CheckInTime:     &now,
		CheckInLocation: req.Location,
		Status:          model.AttendanceIncomplete,
		Source:          source,
	}
	if err := h.attendance.Create(r.Context(), rec); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "创建考勤记录失败"))
		return
	}

	metrics.RecordCheckIn("in", "ok")
	logger.Info().
		Str("employee_id", id.EmployeeID.String()).
		Str("date", date).
		Str("source", source).
		Msg("员工签到")

	respondJSON(w, http.StatusCreated, rec)
}

// CheckOutRequest 签退请求
type CheckOutRequest struct {
	Location *model.Location `json:"location,omitempty"`
}

// CheckOut 签退，结算当日状态与工时
func (h *AttendanceHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req CheckOutRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}

	now := time.Now()
	date := now.Format("2006-01-02")

	rec, err := h.attendance.GetByEmployeeAndDate(r.Context(), id.EmployeeID, date)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询考勤记录失败"))
		return
	}
	if rec == nil || !rec.IsOpen() {
		respondError(w, errors.New(errors.CodeNotFound, "没有未签退的考勤记录"))
		return
	}
	if now.Before(*rec.CheckInTime) {
		respondError(w, errors.New(errors.CodeInvalidTimeRange, "签退时间早于签到时间"))
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

	day, err := time.ParseInLocation("2006-01-02", rec.Date, now.Location())
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInternal, "解析考勤日期失败"))
		return
	}

	status, minutes := othours.DeriveStatus(emp, day, *rec.CheckInTime, &now, h.derive)
	rec.CheckOutTime = &now
	rec.CheckOutLocation = req.Location
	rec.Status = status
	rec.WorkMinutes = minutes

	if err := h.attendance.Update(r.Context(), rec); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新考勤记录失败"))
		return
	}

	metrics.RecordCheckIn("out", "ok")
	logger.Info().
		Str("employee_id", id.EmployeeID.String()).
		Str("date", date).
		Str("status", status).
		Int("work_minutes", minutes).
		Msg("员工签退")

	respondJSON(w, http.StatusOK, rec)
}

// List 查询考勤记录列表
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
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
	// 普通员工只能查询本人记录
	if !id.CanManage() {
		filter = filter.WithEmployee(id.EmployeeID)
	}

	records, total, err := h.attendance.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询考勤记录失败"))
		return
	}
	if records == nil {
		records = []*model.AttendanceRecord{}
	}

	respondJSON(w, http.StatusOK, ListResponse{
		Items:  records,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// AttendanceSummary 员工月度考勤汇总
type AttendanceSummary struct {
	EmployeeID     string  `json:"employee_id"`
	EmployeeName   string  `json:"employee_name"`
	Department     string  `json:"department"`
	WorkHours      string  `json:"work_hours"` // "120h 54m"
	WorkMinutes    int     `json:"work_minutes"`
	OnTimeDays     int     `json:"on_time_days"`
	LateDays       int     `json:"late_days"`
	EarlyLeaveDays int     `json:"early_leave_days"`
	AbsentDays     int     `json:"absent_days"`
	ScheduledDays  int     `json:"scheduled_days"`
	OnTimeRate     float64 `json:"on_time_rate"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// SummaryResponse 月度考勤汇总响应
type SummaryResponse struct {
	Month     string               `json:"month"`
	Employees []*AttendanceSummary `json:"employees"`
}

// Summary 月度考勤汇总
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
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

	filter := repository.DefaultListFilter().
		WithOrgID(id.OrgID).
		WithDateRange(start, end).
		WithLimit(100000)
	records, _, err := h.attendance.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询考勤记录失败"))
		return
	}

	summaries := summarizeAttendance(employees, records, start, end, time.Now())

	respondJSON(w, http.StatusOK, SummaryResponse{
		Month:     month,
		Employees: summaries,
	})
}

// summarizeAttendance 按员工汇总区间内的考勤记录
// 缺勤按排班工作日且无记录计，统计截至today
func summarizeAttendance(
	employees []*model.Employee,
	records []*model.AttendanceRecord,
	start, end string,
	now time.Time,
) []*AttendanceSummary {
	byEmployee := make(map[uuid.UUID]map[string]*model.AttendanceRecord)
	for _, rec := range records {
		if byEmployee[rec.EmployeeID] == nil {
			byEmployee[rec.EmployeeID] = make(map[string]*model.AttendanceRecord)
		}
		byEmployee[rec.EmployeeID][rec.Date] = rec
	}

	startDay, err := time.ParseInLocation("2006-01-02", start, now.Location())
	if err != nil {
		return nil
	}
	endDay, err := time.ParseInLocation("2006-01-02", end, now.Location())
	if err != nil {
		return nil
	}
	today := now.Format("2006-01-02")

	summaries := make([]*AttendanceSummary, 0, len(employees))
	for _, emp := range employees {
		s := &AttendanceSummary{
			EmployeeID:   emp.ID.String(),
			EmployeeName: emp.Name,
			Department:   string(emp.Department),
		}
		dayRecords := byEmployee[emp.ID]

		for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
			date := day.Format("2006-01-02")
			if date > today {
				break
			}
			if !emp.WorksOn(day.Weekday()) {
				continue
			}
			s.ScheduledDays++

			rec := dayRecords[date]
			if rec == nil || rec.CheckInTime == nil {
				s.AbsentDays++
				continue
			}
			s.WorkMinutes += rec.WorkMinutes
			switch rec.Status {
			case model.AttendanceLate, model.AttendanceLateEarlyLeave:
				s.LateDays++
			case model.AttendanceEarlyLeave:
				s.EarlyLeaveDays++
			case model.AttendancePresent:
				s.OnTimeDays++
			}
			if rec.Status == model.AttendanceLateEarlyLeave {
				s.EarlyLeaveDays++
			}
		}

		s.WorkHours = othours.FormatMinutes(s.WorkMinutes)
		if s.ScheduledDays > 0 {
			s.OnTimeRate = othours.Round2(float64(s.OnTimeDays) / float64(s.ScheduledDays))
			s.AttendanceRate = othours.Round2(float64(s.ScheduledDays-s.AbsentDays) / float64(s.ScheduledDays))
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].EmployeeName < summaries[j].EmployeeName
	})

	return summaries
}
