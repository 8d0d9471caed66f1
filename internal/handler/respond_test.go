package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kaoqin/kaoqin/pkg/errors"
)

func TestMonthParam(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantMonth string
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		{
			name:      "指定月份",
			query:     "month=2025-03",
			wantMonth: "2025-03",
			wantStart: "2025-03-01",
			wantEnd:   "2025-03-31",
		},
		{
			name:      "二月末日",
			query:     "month=2025-02",
			wantMonth: "2025-02",
			wantStart: "2025-02-01",
			wantEnd:   "2025-02-28",
		},
		{
			name:      "闰年二月",
			query:     "month=2024-02",
			wantMonth: "2024-02",
			wantStart: "2024-02-01",
			wantEnd:   "2024-02-29",
		},
		{
			name:    "格式错误",
			query:   "month=2025-3",
			wantErr: true,
		},
		{
			name:    "非法月份",
			query:   "month=2025-13",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/stats?"+tt.query, nil)
			month, start, end, aerr := monthParam(r)
			if tt.wantErr {
				if aerr == nil {
					t.Fatal("Expected error, got nil")
				}
				if aerr.Code != errors.CodeInvalidInput {
					t.Errorf("Expected code %s, got %s", errors.CodeInvalidInput, aerr.Code)
				}
				return
			}
			if aerr != nil {
				t.Fatalf("Expected no error, got %v", aerr)
			}
			if month != tt.wantMonth {
				t.Errorf("Expected month %s, got %s", tt.wantMonth, month)
			}
			if start != tt.wantStart {
				t.Errorf("Expected start %s, got %s", tt.wantStart, start)
			}
			if end != tt.wantEnd {
				t.Errorf("Expected end %s, got %s", tt.wantEnd, end)
			}
		})
	}
}

func TestMonthParamDefault(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/stats", nil)
	month, start, _, aerr := monthParam(r)
	if aerr != nil {
		t.Fatalf("Expected no error, got %v", aerr)
	}

	wantMonth := time.Now().Format("2006-01")
	if month != wantMonth {
		t.Errorf("Expected current month %s, got %s", wantMonth, month)
	}
	if start != wantMonth+"-01" {
		t.Errorf("Expected start %s-01, got %s", wantMonth, start)
	}
}

func TestValidateDateParam(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		wantErr bool
	}{
		{name: "空值跳过", date: "", wantErr: false},
		{name: "合法日期", date: "2025-03-15", wantErr: false},
		{name: "缺少补零", date: "2025-3-15", wantErr: true},
		{name: "斜杠分隔", date: "2025/03/15", wantErr: true},
		{name: "非法日", date: "2025-02-30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aerr := validateDateParam(tt.date)
			if tt.wantErr && aerr == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantErr && aerr != nil {
				t.Errorf("Expected no error, got %v", aerr)
			}
		})
	}
}

func TestListFilterFromQuery(t *testing.T) {
	orgID := uuid.New()
	empID := uuid.New()

	r := httptest.NewRequest(http.MethodGet,
		"/records?employee_id="+empID.String()+
			"&status=confirmed&department=technical"+
			"&start_date=2025-03-01&end_date=2025-03-31"+
			"&limit=50&offset=100", nil)

	filter, aerr := listFilterFromQuery(r, orgID)
	if aerr != nil {
		t.Fatalf("Expected no error, got %v", aerr)
	}

	if filter.OrgID == nil || *filter.OrgID != orgID {
		t.Error("Expected org filter to be set")
	}
	if filter.EmployeeID == nil || *filter.EmployeeID != empID {
		t.Error("Expected employee filter to be set")
	}
	if filter.Status != "confirmed" {
		t.Errorf("Expected status confirmed, got %s", filter.Status)
	}
	if filter.Department != "technical" {
		t.Errorf("Expected department technical, got %s", filter.Department)
	}
	if filter.StartDate != "2025-03-01" || filter.EndDate != "2025-03-31" {
		t.Errorf("Expected date range 2025-03-01..2025-03-31, got %s..%s", filter.StartDate, filter.EndDate)
	}
	if filter.Limit != 50 {
		t.Errorf("Expected limit 50, got %d", filter.Limit)
	}
	if filter.Offset != 100 {
		t.Errorf("Expected offset 100, got %d", filter.Offset)
	}
}

func TestListFilterFromQueryInvalid(t *testing.T) {
	orgID := uuid.New()

	tests := []struct {
		name  string
		query string
	}{
		{name: "员工ID非UUID", query: "employee_id=not-a-uuid"},
		{name: "开始日期格式错", query: "start_date=2025-3-1"},
		{name: "limit为零", query: "limit=0"},
		{name: "limit超上限", query: "limit=500"},
		{name: "limit非数字", query: "limit=abc"},
		{name: "offset为负", query: "offset=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/records?"+tt.query, nil)
			_, aerr := listFilterFromQuery(r, orgID)
			if aerr == nil {
				t.Fatal("Expected error, got nil")
			}
			if aerr.Code != errors.CodeInvalidInput {
				t.Errorf("Expected code %s, got %s", errors.CodeInvalidInput, aerr.Code)
			}
		})
	}
}

func TestPathUUID(t *testing.T) {
	id := uuid.New()

	r := httptest.NewRequest(http.MethodGet, "/employees/"+id.String(), nil)
	r = mux.SetURLVars(r, map[string]string{"id": id.String()})

	got, aerr := pathUUID(r, "id")
	if aerr != nil {
		t.Fatalf("Expected no error, got %v", aerr)
	}
	if got != id {
		t.Errorf("Expected %s, got %s", id, got)
	}

	r = httptest.NewRequest(http.MethodGet, "/employees/abc", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "abc"})
	if _, aerr := pathUUID(r, "id"); aerr == nil {
		t.Error("Expected error for malformed UUID, got nil")
	}
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()
	respondError(w, errors.NotFound("员工", "e1"))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected valid JSON body, got error: %v", err)
	}
	if body["error"] != true {
		t.Error("Expected error flag true")
	}
	if body["code"] != string(errors.CodeNotFound) {
		t.Errorf("Expected code %s, got %v", errors.CodeNotFound, body["code"])
	}
	if _, ok := body["fields"]; ok {
		t.Error("Expected no fields key without validation errors")
	}
}

func TestRespondErrorWithFields(t *testing.T) {
	ve := &errors.ValidationErrors{}
	ve.Add("name", "员工姓名不能为空")
	ve.Add("code", "工号不能为空")

	w := httptest.NewRecorder()
	respondError(w, ve.ToAppError())

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected valid JSON body, got error: %v", err)
	}
	fields, ok := body["fields"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected fields map in body")
	}
	if len(fields) != 2 {
		t.Errorf("Expected 2 field errors, got %d", len(fields))
	}
	if _, ok := fields["name"]; !ok {
		t.Error("Expected name field error")
	}
}
