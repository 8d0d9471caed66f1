package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/identity"
	"github.com/kaoqin/kaoqin/internal/metrics"
	"github.com/kaoqin/kaoqin/internal/middleware"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/report"
)

// xlsxContentType Excel 2007+ 的MIME类型
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler 月报导出处理器
type ReportHandler struct {
	generator  *report.Generator
	employees  *repository.EmployeeRepository
	attendance *repository.AttendanceRepository
	ot         *repository.OTSessionRepository
	visits     *repository.SiteVisitRepository
	customers  *repository.CustomerRepository
}

// NewReportHandler 创建月报导出处理器
func NewReportHandler(
	generator *report.Generator,
	employees *repository.EmployeeRepository,
	attendance *repository.AttendanceRepository,
	ot *repository.OTSessionRepository,
	visits *repository.SiteVisitRepository,
	customers *repository.CustomerRepository,
) *ReportHandler {
	return &ReportHandler{
		generator:  generator,
		employees:  employees,
		attendance: attendance,
		ot:         ot,
		visits:     visits,
		customers:  customers,
	}
}

// RegisterRoutes 注册路由，导出限主管以上
func (h *ReportHandler) RegisterRoutes(r *mux.Router) {
	guard := middleware.RequireRole(identity.RoleAdmin, identity.RoleHR, identity.RoleManager)
	r.Handle("/reports/{kind:attendance|ot|visits}.xlsx", guard(http.HandlerFunc(h.Export))).Methods(http.MethodGet)
}

// Export 导出指定月份的Excel报表
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
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
	kind := mux.Vars(r)["kind"]

	employees, err := h.employees.ListActive(r.Context(), id.OrgID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询员工失败"))
		return
	}

	rangeFilter := repository.DefaultListFilter().
		WithOrgID(id.OrgID).
		WithDateRange(start, end).
		WithLimit(100000)

	var buf *bytes.Buffer
	switch kind {
	case "attendance":
		records, _, err := h.attendance.List(r.Context(), rangeFilter)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询考勤记录失败"))
			return
		}
		buf, err = h.generator.BuildAttendance(r.Context(), month, employees, records)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInternal, "生成考勤报表失败"))
			return
		}
	case "ot":
		sessions, _, err := h.ot.List(r.Context(), rangeFilter)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询加班时段失败"))
			return
		}
		buf, err = h.generator.BuildOT(r.Context(), month, employees, sessions)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInternal, "生成加班报表失败"))
			return
		}
	case "visits":
		visits, _, err := h.visits.List(r.Context(), rangeFilter)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询外访记录失败"))
			return
		}
		customerFilter := repository.DefaultListFilter().WithOrgID(id.OrgID).WithLimit(100000)
		customers, _, err := h.customers.List(r.Context(), customerFilter)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询客户失败"))
			return
		}
		buf, err = h.generator.BuildVisits(r.Context(), month, employees, customers, visits)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInternal, "生成外访报表失败"))
			return
		}
	default:
		respondError(w, errors.NotFound("报表", kind))
		return
	}

	metrics.RecordReportGenerated(kind)
	logger.Info().
		Str("kind", kind).
		Str("month", month).
		Int("bytes", buf.Len()).
		Msg("报表已生成")

	filename := fmt.Sprintf("%s-%s.xlsx", kind, month)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logger.Error().Err(err).Str("kind", kind).Msg("写出报表失败")
	}
}
