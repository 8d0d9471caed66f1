// Package roster 解析员工花名册表格并与现有员工对账
// 支持 .xls 与 .xlsx，表头按列名匹配，按工号增量同步：
// 新工号建档，信息变化更新，册上消失的在职员工转为离职
package roster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/xuri/excelize/v2"
)

// maxRosterRows xls读取的行数上限
const maxRosterRows = 100000

// 表头别名，统一折到字段名
var headerAliases = map[string]string{
	"name": "name", "姓名": "name",
	"code": "code", "工号": "code", "员工编号": "code",
	"department": "department", "部门": "department",
	"phone": "phone", "电话": "phone", "手机": "phone", "手机号": "phone",
	"email": "email", "邮箱": "email", "电子邮箱": "email",
	"position": "position", "职位": "position", "岗位": "position",
}

// 部门别名
var deptAliases = map[string]model.Department{
	"technical": model.DeptTechnical, "技术部": model.DeptTechnical, "技术": model.DeptTechnical,
	"marketing": model.DeptMarketing, "市场部": model.DeptMarketing, "市场": model.DeptMarketing,
	"admin": model.DeptAdmin, "行政部": model.DeptAdmin, "行政": model.DeptAdmin,
	"hr": model.DeptHR, "人事部": model.DeptHR, "人事": model.DeptHR,
	"office": model.DeptOffice, "内勤": model.DeptOffice,
}

// Row 花名册中解析出的一行
type Row struct {
	Line       int // 表格行号，表头为第1行
	Name       string
	Code       string
	Department model.Department
	Phone      string
	Email      string
	Position   string
}

// Result 导入结果
type Result struct {
	Created     int      `json:"created"`
	Updated     int      `json:"updated"`
	Deactivated int      `json:"deactivated"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
}

// Store 对账所需的员工读写
type Store interface {
	ListEmployees(ctx context.Context, orgID uuid.UUID) ([]*model.Employee, error)
	CreateEmployee(ctx context.Context, emp *model.Employee) error
	UpdateEmployee(ctx context.Context, emp *model.Employee) error
}

// Importer 花名册导入器
type Importer struct {
	store Store
}

// NewImporter 创建花名册导入器
func NewImporter(store Store) *Importer {
	return &Importer{store: store}
}

// Import 解析表格并与组织现有员工对账
// 单行问题记入 Result.Errors 并跳过该行，不中断整批导入
func (im *Importer) Import(ctx context.Context, orgID uuid.UUID, r io.Reader, filename string) (*Result, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return nil, err
	}

	parsed, result, err := parseRows(rows)
	if err != nil {
		return nil, err
	}
	// 没有任何有效行时拒绝对账，避免整册清空在职员工
	if len(parsed) == 0 {
		return nil, errors.New("花名册没有有效员工行")
	}

	if err := im.reconcile(ctx, orgID, parsed, result); err != nil {
		return nil, err
	}

	logger.Info().
		Str("org_id", orgID.String()).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deactivated", result.Deactivated).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("花名册导入完成")
	return result, nil
}

// readRows 按扩展名读出全部单元格
func readRows(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取花名册失败: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("花名册内容为空")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("解析xls失败: %w", err)
		}
		if workbook.NumSheets() == 0 {
			return nil, errors.New("花名册缺少工作表")
		}
		rows := workbook.ReadAllCells(maxRosterRows)
		if len(rows) == 0 {
			return nil, errors.New("花名册工作表为空")
		}
		return rows, nil
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("解析xlsx失败: %w", err)
		}
		defer f.Close()

		sheet := f.GetSheetName(0)
		if sheet == "" {
			return nil, errors.New("花名册缺少工作表")
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("读取xlsx失败: %w", err)
		}
		if len(rows) == 0 {
			return nil, errors.New("花名册工作表为空")
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("不支持的花名册格式: %s", ext)
	}
}

// parseRows 定位表头并逐行解析
func parseRows(rows [][]string) ([]Row, *Result, error) {
	result := &Result{}

	headerIndex := map[string]int{}
	for i, header := range rows[0] {
		if field, ok := headerAliases[normalizeHeader(header)]; ok {
			headerIndex[field] = i
		}
	}

	nameIdx, ok := headerIndex["name"]
	if !ok {
		return nil, nil, errors.New("花名册缺少姓名列")
	}
	codeIdx, ok := headerIndex["code"]
	if !ok {
		return nil, nil, errors.New("花名册缺少工号列")
	}
	deptIdx := optionalIndex(headerIndex, "department")
	phoneIdx := optionalIndex(headerIndex, "phone")
	emailIdx := optionalIndex(headerIndex, "email")
	positionIdx := optionalIndex(headerIndex, "position")

	seen := make(map[string]int)
	var parsed []Row
	for i, row := range rows[1:] {
		line := i + 2
		if rowEmpty(row) {
			continue
		}

		name := cellValue(row, nameIdx)
		code := cellValue(row, codeIdx)
		if name == "" || code == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行: 姓名或工号缺失", line))
			continue
		}
		if prev, dup := seen[code]; dup {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行: 工号%s与第%d行重复", line, code, prev))
			continue
		}
		seen[code] = line

		dept, err := parseDepartment(cellValue(row, deptIdx))
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行: %v", line, err))
			continue
		}

		parsed = append(parsed, Row{
			Line:       line,
			Name:       name,
			Code:       code,
			Department: dept,
			Phone:      cellValue(row, phoneIdx),
			Email:      cellValue(row, emailIdx),
			Position:   cellValue(row, positionIdx),
		})
	}

	return parsed, result, nil
}

// reconcile 按工号同步到现有员工
func (im *Importer) reconcile(ctx context.Context, orgID uuid.UUID, parsed []Row, result *Result) error {
	existing, err := im.store.ListEmployees(ctx, orgID)
	if err != nil {
		return fmt.Errorf("读取现有员工失败: %w", err)
	}

	byCode := make(map[string]*model.Employee, len(existing))
	for _, emp := range existing {
		if emp != nil && emp.Code != "" {
			byCode[emp.Code] = emp
		}
	}

	inRoster := make(map[string]bool, len(parsed))
	for _, row := range parsed {
		inRoster[row.Code] = true

		emp, exists := byCode[row.Code]
		if !exists {
			if err := im.store.CreateEmployee(ctx, newEmployee(orgID, row)); err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("第%d行: 创建员工失败: %v", row.Line, err))
				continue
			}
			result.Created++
			continue
		}

		if !applyRow(emp, row) {
			result.Skipped++
			continue
		}
		if err := im.store.UpdateEmployee(ctx, emp); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行: 更新员工失败: %v", row.Line, err))
			continue
		}
		result.Updated++
	}

	// 册上消失的在职员工转为离职，休假中的不动
	for _, emp := range existing {
		if emp == nil || emp.Code == "" || inRoster[emp.Code] || !emp.IsActive() {
			continue
		}
		emp.Status = "inactive"
		emp.LeaveDate = time.Now().Format("2006-01-02")
		if err := im.store.UpdateEmployee(ctx, emp); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("停用员工%s失败: %v", emp.Code, err))
			continue
		}
		result.Deactivated++
	}

	return nil
}

// applyRow 将行数据套到现有员工上，返回是否有变化
// 空单元格不覆盖已有信息；离职员工重新入册即复职
func applyRow(emp *model.Employee, row Row) bool {
	changed := false
	if row.Name != "" && emp.Name != row.Name {
		emp.Name = row.Name
		changed = true
	}
	if row.Department != "" && emp.Department != row.Department {
		emp.Department = row.Department
		changed = true
	}
	if row.Phone != "" && emp.Phone != row.Phone {
		emp.Phone = row.Phone
		changed = true
	}
	if row.Email != "" && emp.Email != row.Email {
		emp.Email = row.Email
		changed = true
	}
	if row.Position != "" && emp.Position != row.Position {
		emp.Position = row.Position
		changed = true
	}
	if emp.Status == "inactive" {
		emp.Status = "active"
		emp.LeaveDate = ""
		changed = true
	}
	return changed
}

// newEmployee 按行数据建档
func newEmployee(orgID uuid.UUID, row Row) *model.Employee {
	dept := row.Department
	if dept == "" {
		dept = model.DeptOffice
	}
	return &model.Employee{
		BaseModel:  model.NewBaseModel(),
		OrgID:      orgID,
		Name:       row.Name,
		Code:       row.Code,
		Phone:      row.Phone,
		Email:      row.Email,
		Status:     "active",
		HireDate:   time.Now().Format("2006-01-02"),
		Department: dept,
		Position:   row.Position,
		Role:       "staff",
	}
}

// parseDepartment 解析部门单元格，空值留待调用方决定
func parseDepartment(value string) (model.Department, error) {
	if value == "" {
		return "", nil
	}
	if dept, ok := deptAliases[strings.ToLower(value)]; ok {
		return dept, nil
	}
	return "", fmt.Errorf("未知部门: %s", value)
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func optionalIndex(headerIndex map[string]int, field string) int {
	if idx, ok := headerIndex[field]; ok {
		return idx
	}
	return -1
}
