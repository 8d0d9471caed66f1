// Package report 生成月度 Excel 报表
// 考勤、加班、外访各导出独立工作簿：按员工分节并发构建行数据，
// 再顺序写入工作表，最终以字节缓冲交给处理层下发
package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/othours"
	"github.com/xuri/excelize/v2"
)

// sheetName 新建工作簿的默认工作表
const sheetName = "Sheet1"

// 各报表的列布局与表头
var (
	reportColumns = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}

	attendanceHeaders = []string{"员工", "部门", "日期", "签到时间", "签退时间", "状态", "工时", "自动补卡", "备注"}
	otHeaders         = []string{"员工", "部门", "日期", "开始", "结束", "申报时长", "审核时长", "状态", "审核备注"}
	visitHeaders      = []string{"员工", "部门", "日期", "客户", "签到", "签退", "时长", "结果", "跟进"}
)

// 工作簿内的展示标签
var (
	attendanceStatusLabels = map[string]string{
		model.AttendancePresent:        "正常",
		model.AttendanceLate:           "迟到",
		model.AttendanceEarlyLeave:     "早退",
		model.AttendanceLateEarlyLeave: "迟到早退",
		model.AttendanceHalfDay:        "半天",
		model.AttendanceAbsent:         "缺勤",
		model.AttendanceIncomplete:     "签退缺失",
	}

	otStatusLabels = map[string]string{
		model.OTPending:  "待审核",
		model.OTApproved: "已批准",
		model.OTAdjusted: "已调整",
		model.OTRejected: "已驳回",
	}

	outcomeLabels = map[string]string{
		model.OutcomeConverted: "已成交",
		model.OutcomeOnProcess: "跟进中",
		model.OutcomeCancelled: "已取消",
	}

	deptLabels = map[model.Department]string{
		model.DeptTechnical: "技术部",
		model.DeptMarketing: "市场部",
		model.DeptAdmin:     "行政部",
		model.DeptHR:        "人事部",
		model.DeptOffice:    "内勤",
	}
)

// Generator 月度报表生成器
// 工作簿不支持并发写入，各员工分节先并发算好行数据，再按序落表
type Generator struct {
	workers int
}

// NewGenerator 创建报表生成器
func NewGenerator() *Generator {
	return NewGeneratorWithWorkers(4)
}

// NewGeneratorWithWorkers 创建指定并发度的报表生成器
func NewGeneratorWithWorkers(workers int) *Generator {
	if workers <= 0 {
		workers = 4
	}
	return &Generator{workers: workers}
}

// BuildAttendance 生成考勤月报
// 每员工一节：当月逐日明细行加一行合计
func (g *Generator) BuildAttendance(ctx context.Context, month string, employees []*model.Employee, records []*model.AttendanceRecord) (*bytes.Buffer, error) {
	if err := validateMonth(month); err != nil {
		return nil, err
	}

	dir := directory(employees)
	prefix := month + "-"

	byEmployee := make(map[uuid.UUID][]*model.AttendanceRecord)
	for _, r := range records {
		if r == nil || !strings.HasPrefix(r.Date, prefix) {
			continue
		}
		byEmployee[r.EmployeeID] = append(byEmployee[r.EmployeeID], r)
	}

	order := sortEmployeeIDs(byEmployee, dir)
	sections := g.buildSections(ctx, len(order), func(i int) [][]string {
		id := order[i]
		return attendanceRows(displayName(dir[id], id), deptLabel(dir[id]), byEmployee[id])
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return g.finish(month, "考勤报表", attendanceHeaders, sections)
}

// BuildOT 生成加班月报
// 逐笔列出申报与审核时长，合计行分列累计两者
func (g *Generator) BuildOT(ctx context.Context, month string, employees []*model.Employee, sessions []*model.OTSession) (*bytes.Buffer, error) {
	if err := validateMonth(month); err != nil {
		return nil, err
	}

	dir := directory(employees)
	prefix := month + "-"

	byEmployee := make(map[uuid.UUID][]*model.OTSession)
	for _, s := range sessions {
		if s == nil || !strings.HasPrefix(s.Date, prefix) {
			continue
		}
		byEmployee[s.EmployeeID] = append(byEmployee[s.EmployeeID], s)
	}

	order := sortEmployeeIDs(byEmployee, dir)
	sections := g.buildSections(ctx, len(order), func(i int) [][]string {
		id := order[i]
		return otRows(displayName(dir[id], id), deptLabel(dir[id]), byEmployee[id])
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return g.finish(month, "加班报表", otHeaders, sections)
}

// BuildVisits 生成外访月报
// 明细行的部门取外访本身的部门，合计行回落到员工部门
func (g *Generator) BuildVisits(ctx context.Context, month string, employees []*model.Employee, customers []*model.Customer, visits []*model.SiteVisit) (*bytes.Buffer, error) {
	if err := validateMonth(month); err != nil {
		return nil, err
	}

	dir := directory(employees)
	names := make(map[uuid.UUID]string, len(customers))
	for _, c := range customers {
		if c != nil {
			names[c.ID] = c.Name
		}
	}

	byEmployee := make(map[uuid.UUID][]*model.SiteVisit)
	for _, v := range visits {
		if v == nil || v.CheckInTime.Format("2006-01") != month {
			continue
		}
		byEmployee[v.EmployeeID] = append(byEmployee[v.EmployeeID], v)
	}

	order := sortEmployeeIDs(byEmployee, dir)
	sections := g.buildSections(ctx, len(order), func(i int) [][]string {
		id := order[i]
		return visitRows(displayName(dir[id], id), deptLabel(dir[id]), names, byEmployee[id])
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return g.finish(month, "外访报表", visitHeaders, sections)
}

// section 单员工分节的构建结果
type section struct {
	index int
	rows  [][]string
}

// buildSections 并发构建各分节的行数据，返回结果保持传入顺序
func (g *Generator) buildSections(ctx context.Context, count int, build func(int) [][]string) [][][]string {
	if count == 0 {
		return nil
	}

	jobChan := make(chan int, count)
	resultChan := make(chan section, count)

	// 启动工作协程
	var wg sync.WaitGroup
	for w := 0; w < g.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
					resultChan <- section{index: idx, rows: build(idx)}
				}
			}
		}()
	}

	// 发送任务
	go func() {
		for i := 0; i < count; i++ {
			jobChan <- i
		}
		close(jobChan)
	}()

	// 等待完成
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// 收集结果
	out := make([][][]string, count)
	for s := range resultChan {
		out[s.index] = s.rows
	}
	return out
}

// finish 写入表头与分节并导出字节缓冲
func (g *Generator) finish(month, kind string, headers []string, sections [][][]string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	rows, err := writeSheet(f, headers, sections)
	if err != nil {
		return nil, fmt.Errorf("写入%s失败: %w", kind, err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("导出%s失败: %w", kind, err)
	}

	logger.Debug().
		Str("month", month).
		Int("sections", len(sections)).
		Int("rows", rows).
		Msg(kind + "生成完成")
	return buf, nil
}

// writeSheet 顺序写入表头和所有分节，返回数据行数
func writeSheet(f *excelize.File, headers []string, sections [][][]string) (int, error) {
	for i, h := range headers {
		cell := fmt.Sprintf("%s1", reportColumns[i])
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return 0, err
		}
	}

	row := 2
	for _, sec := range sections {
		for _, cells := range sec {
			for i, v := range cells {
				cell := fmt.Sprintf("%s%d", reportColumns[i], row)
				if err := f.SetCellValue(sheetName, cell, v); err != nil {
					return 0, err
				}
			}
			row++
		}
	}
	return row - 2, nil
}

// attendanceRows 构建单员工的考勤分节
func attendanceRows(name, dept string, records []*model.AttendanceRecord) [][]string {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})

	rows := make([][]string, 0, len(records)+1)
	var totalMinutes, attended, corrected int
	for _, r := range records {
		if r.CheckInTime != nil {
			attended++
		}
		if r.AutoCorrected {
			corrected++
		}
		totalMinutes += r.WorkMinutes

		note := r.Note
		if r.AutoCorrected && r.CorrectionNote != "" {
			note = r.CorrectionNote
		}
		rows = append(rows, []string{
			name, dept, r.Date,
			fmtClock(r.CheckInTime), fmtClock(r.CheckOutTime),
			label(attendanceStatusLabels, r.Status),
			othours.FormatMinutes(r.WorkMinutes),
			boolLabel(r.AutoCorrected),
			note,
		})
	}

	summary := []string{
		name, dept, "合计", "", "",
		fmt.Sprintf("出勤%d天", attended),
		othours.FormatMinutes(totalMinutes),
		"", "",
	}
	if corrected > 0 {
		summary[7] = fmt.Sprintf("补卡%d次", corrected)
	}
	return append(rows, summary)
}

// otRows 构建单员工的加班分节
// 合计的审核时长只累计已批准与已调整的时段
func otRows(name, dept string, sessions []*model.OTSession) [][]string {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Date != sessions[j].Date {
			return sessions[i].Date < sessions[j].Date
		}
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})

	rows := make([][]string, 0, len(sessions)+1)
	var claimed, approved float64
	for _, s := range sessions {
		claimed += s.ClaimedHours

		reviewed := "-"
		switch s.Status {
		case model.OTApproved, model.OTAdjusted:
			approved += s.EffectiveHours()
			reviewed = othours.FormatHours(s.EffectiveHours())
		case model.OTRejected:
			reviewed = othours.FormatHours(0)
		}

		rows = append(rows, []string{
			name, dept, s.Date,
			s.StartTime.Format("15:04"), s.EndTime.Format("15:04"),
			othours.FormatHours(s.ClaimedHours),
			reviewed,
			label(otStatusLabels, s.Status),
			s.ReviewNote,
		})
	}

	rows = append(rows, []string{
		name, dept, "合计",
		fmt.Sprintf("%d笔", len(sessions)), "",
		othours.FormatHours(claimed),
		othours.FormatHours(approved),
		"", "",
	})
	return rows
}

// visitRows 构建单员工的外访分节
func visitRows(name, dept string, customers map[uuid.UUID]string, visits []*model.SiteVisit) [][]string {
	sort.Slice(visits, func(i, j int) bool {
		return visits[i].CheckInTime.Before(visits[j].CheckInTime)
	})

	rows := make([][]string, 0, len(visits)+1)
	var totalMinutes, converted int
	for _, v := range visits {
		customer, ok := customers[v.CustomerID]
		if !ok {
			customer = "未知客户"
		}

		duration := "-"
		if v.CheckOutTime != nil {
			totalMinutes += v.DurationMinutes()
			duration = othours.FormatMinutes(v.DurationMinutes())
		}
		if v.Outcome == model.OutcomeConverted {
			converted++
		}

		outcome := "-"
		if v.Outcome != "" {
			outcome = label(outcomeLabels, v.Outcome)
		}

		rows = append(rows, []string{
			name, deptLabelFor(v.Department),
			v.CheckInTime.Format("2006-01-02"),
			customer,
			v.CheckInTime.Format("15:04"), fmtClock(v.CheckOutTime),
			duration, outcome,
			boolLabel(v.IsFollowUp()),
		})
	}

	rows = append(rows, []string{
		name, dept, "合计",
		fmt.Sprintf("%d次外访", len(visits)), "", "",
		othours.FormatMinutes(totalMinutes),
		fmt.Sprintf("成交%d次", converted),
		"",
	})
	return rows
}

// validateMonth 校验月份参数格式
func validateMonth(month string) error {
	if _, err := time.Parse("2006-01", month); err != nil {
		return fmt.Errorf("月份格式无效: %s", month)
	}
	return nil
}

// directory 构建员工ID到员工的映射
func directory(employees []*model.Employee) map[uuid.UUID]*model.Employee {
	dir := make(map[uuid.UUID]*model.Employee, len(employees))
	for _, emp := range employees {
		if emp != nil {
			dir[emp.ID] = emp
		}
	}
	return dir
}

// sortEmployeeIDs 按员工姓名排序分节，无名员工按ID兜底
func sortEmployeeIDs[T any](byEmployee map[uuid.UUID]T, dir map[uuid.UUID]*model.Employee) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(byEmployee))
	for id := range byEmployee {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni := displayName(dir[ids[i]], ids[i])
		nj := displayName(dir[ids[j]], ids[j])
		if ni != nj {
			return ni < nj
		}
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// displayName 员工显示名，目录缺失时退化为ID前缀
func displayName(emp *model.Employee, id uuid.UUID) string {
	if emp != nil && emp.Name != "" {
		return emp.Name
	}
	return id.String()[:8]
}

func deptLabel(emp *model.Employee) string {
	if emp == nil {
		return ""
	}
	return deptLabelFor(emp.Department)
}

func deptLabelFor(d model.Department) string {
	if l, ok := deptLabels[d]; ok {
		return l
	}
	return string(d)
}

func label(labels map[string]string, key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return key
}

func fmtClock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("15:04")
}

func boolLabel(b bool) string {
	if b {
		return "是"
	}
	return "否"
}
