// Package validator 提供外访数据校验功能
package validator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictOverlap    ConflictType = "overlap"     // 时间重叠
	ConflictTimeOrder  ConflictType = "time_order"  // 签退早于签到
	ConflictDuration   ConflictType = "duration"    // 外访时长超限
	ConflictOpenVisit  ConflictType = "open_visit"  // 重复的未签退外访
	ConflictDailyLimit ConflictType = "daily_limit" // 单日外访次数超限
	ConflictPhotos     ConflictType = "photos"      // 照片数量超限
)

// Conflict 冲突信息
type Conflict struct {
	Type       ConflictType `json:"type"`
	Severity   string       `json:"severity"` // error/warning
	EmployeeID uuid.UUID    `json:"employee_id"`
	Date       string       `json:"date"`
	Message    string       `json:"message"`
	Visits     []uuid.UUID  `json:"visits,omitempty"` // 相关的外访ID
}

// VisitValidator 外访校验器
type VisitValidator struct {
	config *ValidatorConfig
}

// ValidatorConfig 校验器配置
type ValidatorConfig struct {
	MaxVisitHours   int  // 单次外访最大时长（小时）
	MaxPhotos       int  // 单次外访最大照片数
	MaxDailyVisits  int  // 单人单日最大外访次数
	RequireLocation bool // 是否要求签到定位
}

// DefaultValidatorConfig 返回默认配置
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxVisitHours:   12,
		MaxPhotos:       9,
		MaxDailyVisits:  10,
		RequireLocation: true,
	}
}

// NewVisitValidator 创建外访校验器
func NewVisitValidator(config *ValidatorConfig) *VisitValidator {
	if config == nil {
		config = DefaultValidatorConfig()
	}
	return &VisitValidator{config: config}
}

// DetectAll 检测所有冲突
func (v *VisitValidator) DetectAll(visits []*model.SiteVisit) []Conflict {
	var conflicts []Conflict

	// 按员工分组
	byEmployee := groupByEmployee(visits)

	for _, empVisits := range byEmployee {
		conflicts = append(conflicts, v.detectRecordIssues(empVisits)...)
		conflicts = append(conflicts, v.detectOverlaps(empVisits)...)
		conflicts = append(conflicts, v.detectOpenDuplicates(empVisits)...)
		conflicts = append(conflicts, v.detectDailyLimit(empVisits)...)
	}

	return conflicts
}

// detectRecordIssues 检测单条记录的问题
func (v *VisitValidator) detectRecordIssues(visits []*model.SiteVisit) []Conflict {
	var conflicts []Conflict

	for _, visit := range visits {
		date := visit.CheckInTime.Format("2006-01-02")

		if visit.CheckOutTime != nil && visit.CheckOutTime.Before(visit.CheckInTime) {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictTimeOrder,
				Severity:   "error",
				EmployeeID: visit.EmployeeID,
				Date:       date,
				Message:    fmt.Sprintf("外访 %s 签退时间早于签到时间", visit.VisitNo),
				Visits:     []uuid.UUID{visit.ID},
			})
			continue
		}

		if visit.CheckOutTime != nil {
			hours := visit.CheckOutTime.Sub(visit.CheckInTime).Hours()
			if hours > float64(v.config.MaxVisitHours) {
				conflicts = append(conflicts, Conflict{
					Type:       ConflictDuration,
					Severity:   "warning",
					EmployeeID: visit.EmployeeID,
					Date:       date,
					Message:    fmt.Sprintf("外访 %s 时长 %.1f 小时，超过 %d 小时", visit.VisitNo, hours, v.config.MaxVisitHours),
					Visits:     []uuid.UUID{visit.ID},
				})
			}
		}

		if len(visit.Photos) > v.config.MaxPhotos {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictPhotos,
				Severity:   "warning",
				EmployeeID: visit.EmployeeID,
				Date:       date,
				Message:    fmt.Sprintf("外访 %s 照片 %d 张，超过 %d 张", visit.VisitNo, len(visit.Photos), v.config.MaxPhotos),
				Visits:     []uuid.UUID{visit.ID},
			})
		}
	}

	return conflicts
}

// detectOverlaps 检测时间重叠
func (v *VisitValidator) detectOverlaps(visits []*model.SiteVisit) []Conflict {
	var conflicts []Conflict

	// 按签到时间排序
	sorted := make([]*model.SiteVisit, len(visits))
	copy(sorted, visits)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CheckInTime.Before(sorted[j].CheckInTime)
	})

	// 检测相邻外访的重叠
	for i := 0; i < len(sorted)-1; i++ {
		current := sorted[i]
		next := sorted[i+1]

		if isOverlapping(current, next) {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictOverlap,
				Severity:   "error",
				EmployeeID: current.EmployeeID,
				Date:       current.CheckInTime.Format("2006-01-02"),
				Message:    fmt.Sprintf("外访 %s 与 %s 时间重叠", current.VisitNo, next.VisitNo),
				Visits:     []uuid.UUID{current.ID, next.ID},
			})
		}
	}

	return conflicts
}

// detectOpenDuplicates 检测重复的未签退外访
func (v *VisitValidator) detectOpenDuplicates(visits []*model.SiteVisit) []Conflict {
	var open []*model.SiteVisit
	for _, visit := range visits {
		if visit.IsOpen() {
			open = append(open, visit)
		}
	}

	if len(open) < 2 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(open))
	for _, visit := range open {
		ids = append(ids, visit.ID)
	}

	return []Conflict{{
		Type:       ConflictOpenVisit,
		Severity:   "error",
		EmployeeID: open[0].EmployeeID,
		Date:       open[0].CheckInTime.Format("2006-01-02"),
		Message:    fmt.Sprintf("存在 %d 条未签退的外访", len(open)),
		Visits:     ids,
	}}
}

// detectDailyLimit 检测单日外访次数超限
func (v *VisitValidator) detectDailyLimit(visits []*model.SiteVisit) []Conflict {
	var conflicts []Conflict

	daily := make(map[string]int)
	for _, visit := range visits {
		daily[visit.CheckInTime.Format("2006-01-02")]++
	}

	dates := make([]string, 0, len(daily))
	for date := range daily {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		if daily[date] > v.config.MaxDailyVisits {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictDailyLimit,
				Severity:   "warning",
				EmployeeID: visits[0].EmployeeID,
				Date:       date,
				Message:    fmt.Sprintf("%s 共 %d 次外访，超过 %d 次", date, daily[date], v.config.MaxDailyVisits),
			})
		}
	}

	return conflicts
}

// isOverlapping 检查两次外访是否重叠（未签退的不参与比较）
func isOverlapping(v1, v2 *model.SiteVisit) bool {
	if v1.CheckOutTime == nil || v2.CheckOutTime == nil {
		return false
	}
	return v1.CheckInTime.Before(*v2.CheckOutTime) && v2.CheckInTime.Before(*v1.CheckOutTime)
}

// groupByEmployee 按员工分组
func groupByEmployee(visits []*model.SiteVisit) map[uuid.UUID][]*model.SiteVisit {
	result := make(map[uuid.UUID][]*model.SiteVisit)
	for _, v := range visits {
		result[v.EmployeeID] = append(result[v.EmployeeID], v)
	}
	return result
}
