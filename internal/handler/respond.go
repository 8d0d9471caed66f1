// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kaoqin/kaoqin/internal/identity"
	"github.com/kaoqin/kaoqin/internal/repository"
	"github.com/kaoqin/kaoqin/pkg/errors"
)

// ListResponse 分页列表响应
type ListResponse struct {
	Items  interface{} `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	body := map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	}
	if len(err.Fields) > 0 {
		body["fields"] = err.Fields
	}
	json.NewEncoder(w).Encode(body)
}

// decodeJSON 解析请求体
func decodeJSON(r *http.Request, dst interface{}) *errors.AppError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}

// pathUUID 解析路径中的UUID参数
func pathUUID(r *http.Request, name string) (uuid.UUID, *errors.AppError) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CodeInvalidInput, "无效的ID格式: "+raw)
	}
	return id, nil
}

// currentIdentity 取出请求上下文中的登录身份
func currentIdentity(r *http.Request) (*identity.Identity, *errors.AppError) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		return nil, errors.New(errors.CodeUnauthorized, "未登录或令牌无效")
	}
	return id, nil
}

// listFilterFromQuery 从查询参数构建列表过滤
// 支持 employee_id/status/department/start_date/end_date/limit/offset
func listFilterFromQuery(r *http.Request, orgID uuid.UUID) (repository.ListFilter, *errors.AppError) {
	filter := repository.DefaultListFilter().WithOrgID(orgID)
	q := r.URL.Query()

	if v := q.Get("employee_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, errors.Wrap(err, errors.CodeInvalidInput, "无效的员工ID格式")
		}
		filter = filter.WithEmployee(id)
	}
	if v := q.Get("status"); v != "" {
		filter = filter.WithStatus(v)
	}
	if v := q.Get("department"); v != "" {
		filter = filter.WithDepartment(v)
	}
	if start, end := q.Get("start_date"), q.Get("end_date"); start != "" || end != "" {
		if aerr := validateDateParam(start); aerr != nil {
			return filter, aerr
		}
		if aerr := validateDateParam(end); aerr != nil {
			return filter, aerr
		}
		filter = filter.WithDateRange(start, end)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			return filter, errors.New(errors.CodeInvalidInput, "limit必须是1-200之间的整数")
		}
		filter = filter.WithLimit(n)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New(errors.CodeInvalidInput, "offset不能为负数")
		}
		filter = filter.WithOffset(n)
	}

	return filter, nil
}

// validateDateParam 校验YYYY-MM-DD日期参数，空值跳过
func validateDateParam(date string) *errors.AppError {
	if date == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "无效的日期格式，应为YYYY-MM-DD")
	}
	return nil
}

// monthParam 解析month查询参数，缺省为当月，返回当月首末日期
func monthParam(r *http.Request) (month, start, end string, aerr *errors.AppError) {
	month = r.URL.Query().Get("month")
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return "", "", "", errors.Wrap(err, errors.CodeInvalidInput, "无效的月份格式，应为YYYY-MM")
	}
	start = t.Format("2006-01-02")
	end = t.AddDate(0, 1, -1).Format("2006-01-02")
	return month, start, end, nil
}
