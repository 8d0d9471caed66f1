package handler

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/database"
	"github.com/kaoqin/kaoqin/internal/identity"
	"github.com/kaoqin/kaoqin/internal/middleware"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/autocorrect"
	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// CorrectionHandler 自动补卡复核处理器
type CorrectionHandler struct {
	db          *database.DB
	corrections *repository.CorrectionRepository
	engine      *autocorrect.Engine
}

// NewCorrectionHandler 创建补卡复核处理器
func NewCorrectionHandler(db *database.DB, corrections *repository.CorrectionRepository, engine *autocorrect.Engine) *CorrectionHandler {
	return &CorrectionHandler{db: db, corrections: corrections, engine: engine}
}

// RegisterRoutes 注册路由，复核限人事与管理员，手动扫描限管理员
func (h *CorrectionHandler) RegisterRoutes(r *mux.Router) {
	reviewer := middleware.RequireRole(identity.RoleAdmin, identity.RoleHR)
	admin := middleware.RequireRole(identity.RoleAdmin)
	r.Handle("/corrections", reviewer(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	r.Handle("/corrections/run", admin(http.HandlerFunc(h.Run))).Methods(http.MethodPost)
	r.Handle("/corrections/{id}/review", reviewer(http.HandlerFunc(h.Review))).Methods(http.MethodPost)
}

// List 查询补卡记录，默认按状态过滤
func (h *CorrectionHandler) List(w http.ResponseWriter, r *http.Request) {
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

	items, total, err := h.corrections.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询补卡记录失败"))
		return
	}
	if items == nil {
		items = []*model.CorrectionItem{}
	}

	respondJSON(w, http.StatusOK, ListResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// CorrectionReviewRequest 补卡复核请求
type CorrectionReviewRequest struct {
	Decision string `json:"decision"` // confirm确认 / revert撤销
	Note     string `json:"note,omitempty"`
}

// Review 复核自动补卡
// 确认保留补全的签退时刻，撤销则清除签退并把考勤记录退回未签退状态
func (h *CorrectionHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, aerr := currentIdentity(r)
	if aerr != nil {
		respondError(w, aerr)
		return
	}
	corrID, aerr := pathUUID(r, "id")
	if aerr != nil {
		respondError(w, aerr)
		return
	}

	var req CorrectionReviewRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		respondError(w, aerr)
		return
	}

	item, err := h.corrections.GetByID(r.Context(), corrID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询补卡记录失败"))
		return
	}
	if item == nil || item.OrgID != id.OrgID {
		respondError(w, errors.NotFound("补卡记录", corrID.String()))
		return
	}

	var reviewed bool
	switch req.Decision {
	case "confirm":
		reviewed, err = h.corrections.Review(r.Context(), corrID, model.CorrectionConfirmed, id.EmployeeID, req.Note)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "复核补卡记录失败"))
			return
		}
	case "revert":
		// 复核状态与考勤回退同事务落库
		err = h.db.Transaction(r.Context(), func(tx *sql.Tx) error {
			corrections := repository.NewCorrectionRepository(tx)
			ok, err := corrections.Review(r.Context(), corrID, model.CorrectionReverted, id.EmployeeID, req.Note)
			if err != nil {
				return err
			}
			reviewed = ok
			if !ok {
				return nil
			}

			attendance := repository.NewAttendanceRepository(tx)
			rec, err := attendance.GetByID(r.Context(), item.AttendanceID)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("考勤记录不存在: %s", item.AttendanceID)
			}
			rec.CheckOutTime = nil
			rec.Status = model.AttendanceIncomplete
			rec.WorkMinutes = 0
			rec.AutoCorrected = false
			return attendance.Update(r.Context(), rec)
		})
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "撤销补卡失败"))
			return
		}
	default:
		respondError(w, errors.InvalidInput("decision", "必须是 confirm/revert 之一"))
		return
	}

	if !reviewed {
		respondError(w, errors.AlreadyReviewed("补卡记录", corrID.String()))
		return
	}

	item, err = h.corrections.GetByID(r.Context(), corrID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询补卡记录失败"))
		return
	}

	logger.Info().
		Str("correction_id", corrID.String()).
		Str("decision", req.Decision).
		Str("reviewed_by", id.EmployeeID.String()).
		Msg("补卡记录已复核")

	respondJSON(w, http.StatusOK, item)
}

// CorrectionRunRequest 手动扫描请求
type CorrectionRunRequest struct {
	Date string `json:"date,omitempty"` // YYYY-MM-DD，留空扫描所有已过截止时刻的日期
}

// Run 立即触发一次未签退扫描
func (h *CorrectionHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req CorrectionRunRequest
	if r.ContentLength > 0 {
		if aerr := decodeJSON(r, &req); aerr != nil {
			respondError(w, aerr)
			return
		}
	}
	if aerr := validateDateParam(req.Date); aerr != nil {
		respondError(w, aerr)
		return
	}

	result, err := h.engine.Sweep(r.Context(), req.Date)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInternal, "补卡扫描失败"))
		return
	}

	respondJSON(w, http.StatusOK, result)
}
