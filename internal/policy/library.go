// Package policy 考勤规则目录与场景模板
package policy

// RuleParam 规则参数定义
// Name 即评估配置中的键，默认值与上下限以字符串表达，便于前端直接展示
type RuleParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, string, bool, array
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// RuleDefinition 规则定义
type RuleDefinition struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Type        string      `json:"type"`     // hard 硬规则, soft 软规则
	Category    string      `json:"category"` // 分类
	Description string      `json:"description"`
	Scenarios   []string    `json:"scenarios"` // 适用场景
	Params      []RuleParam `json:"params"`
}

// LibraryResponse 规则库响应
type LibraryResponse struct {
	Library []RuleDefinition `json:"library"`
}

// Template 场景模板，Rules 列出启用的规则，Config 为各规则参数的默认配置
type Template struct {
	Name        string                 `json:"name"`
	DisplayName string                 `json:"display_name"`
	Description string                 `json:"description"`
	Rules       []string               `json:"rules"`
	Config      map[string]interface{} `json:"config"`
}

// TemplatesResponse 场景模板响应
type TemplatesResponse struct {
	Templates []Template `json:"templates"`
}

// GetLibrary 获取完整的规则库
func GetLibrary() []RuleDefinition {
	return []RuleDefinition{
		// =====================================================
		// 考勤纪律硬规则
		// =====================================================
		{
			Name:        "late_arrival",
			DisplayName: "迟到",
			Type:        "hard",
			Category:    "考勤纪律",
			Description: "签到时间晚于定班上班时间即记迟到，宽限分钟内不计。迟到分钟数越多惩罚越重。",
			Scenarios:   []string{"office", "field"},
			Params: []RuleParam{
				{Name: "grace_minutes", Type: "int", Description: "宽限时间(分钟)", Default: "10", Min: "0", Max: "30"},
			},
		},
		{
			Name:        "early_leave",
			DisplayName: "早退",
			Type:        "hard",
			Category:    "考勤纪律",
			Description: "签退时间早于定班下班时间即记早退，与迟到共用宽限时间。",
			Scenarios:   []string{"office", "field"},
			Params: []RuleParam{
				{Name: "grace_minutes", Type: "int", Description: "宽限时间(分钟)", Default: "10", Min: "0", Max: "30"},
			},
		},
		{
			Name:        "missing_checkout",
			DisplayName: "签退缺失",
			Type:        "hard",
			Category:    "考勤纪律",
			Description: "当天有签到但截止时刻过后仍无签退的记录，需自动补卡或人工处理。",
			Scenarios:   []string{"office", "field"},
			Params:      []RuleParam{},
		},

		// =====================================================
		// 加班限制硬规则
		// =====================================================
		{
			Name:        "max_ot_per_day",
			DisplayName: "单日加班上限",
			Type:        "hard",
			Category:    "加班限制",
			Description: "限制员工单日申报的加班时长，超出即不合规。按生效时长累计。",
			Scenarios:   []string{"office", "field"},
			Params: []RuleParam{
				{Name: "max_ot_per_day", Type: "float", Description: "单日上限(小时)", Default: "6", Min: "1", Max: "12"},
			},
		},
		{
			Name:        "max_ot_per_month",
			DisplayName: "月度加班上限",
			Type:        "hard",
			Category:    "加班限制",
			Description: "限制员工自然月内累计加班时长，对应劳动法月度加班上限。",
			Scenarios:   []string{"office", "field"},
			Params: []RuleParam{
				{Name: "max_ot_per_month", Type: "float", Description: "月度上限(小时)", Default: "36", Min: "12", Max: "72"},
			},
		},

		// =====================================================
		// 工时与健康软规则
		// =====================================================
		{
			Name:        "max_weekly_hours",
			DisplayName: "周总工时",
			Type:        "soft",
			Category:    "工时保障",
			Description: "周内出勤加加班的总工时超过标准时给出提示，不阻断考勤结果。",
			Scenarios:   []string{"office", "field"},
			Params: []RuleParam{
				{Name: "max_weekly_hours", Type: "int", Description: "周总工时(小时)", Default: "44", Min: "36", Max: "60"},
				{Name: "weekly_hours_weight", Type: "int", Description: "优化权重", Default: "70", Min: "0", Max: "100"},
			},
		},
		{
			Name:        "consecutive_ot_days",
			DisplayName: "连续加班天数",
			Type:        "soft",
			Category:    "健康保障",
			Description: "连续多天加班时提示关注员工负荷，防止过度疲劳。",
			Scenarios:   []string{"office", "field"},
			Params: []RuleParam{
				{Name: "max_consecutive_ot_days", Type: "int", Description: "最大连续天数", Default: "3", Min: "2", Max: "7"},
				{Name: "consecutive_ot_weight", Type: "int", Description: "优化权重", Default: "60", Min: "0", Max: "100"},
			},
		},

		// =====================================================
		// 外勤场景规则
		// =====================================================
		{
			Name:        "visit_evidence",
			DisplayName: "外访佐证",
			Type:        "soft",
			Category:    "外勤合规",
			Description: "当天有外访记录时，加班申报时段应与外访时段有重叠，否则提示缺少佐证。",
			Scenarios:   []string{"field"},
			Params: []RuleParam{
				{Name: "visit_evidence_weight", Type: "int", Description: "优化权重", Default: "50", Min: "0", Max: "100"},
			},
		},
		{
			Name:        "max_daily_visits",
			DisplayName: "单日外访次数",
			Type:        "hard",
			Category:    "外勤合规",
			Description: "限制员工单日的外访签到次数，防止刷单式打卡。",
			Scenarios:   []string{"field"},
			Params: []RuleParam{
				{Name: "max_daily_visits", Type: "int", Description: "单日最大次数", Default: "10", Min: "1", Max: "30"},
			},
		},
	}
}

// GetTemplates 获取场景模板
// Config 中的键与各规则参数一一对应，可整体传给规则注册器
func GetTemplates() []Template {
	return []Template{
		{
			Name:        "office",
			DisplayName: "内勤考勤",
			Description: "坐班场景的默认规则组合：迟到早退、签退缺失与加班上限，不含外访类规则。",
			Rules: []string{
				"late_arrival", "early_leave", "missing_checkout",
				"max_ot_per_day", "max_ot_per_month",
				"max_weekly_hours", "consecutive_ot_days",
			},
			Config: map[string]interface{}{
				"grace_minutes":           10,
				"max_ot_per_day":          6.0,
				"max_ot_per_month":        36.0,
				"max_weekly_hours":        44,
				"max_consecutive_ot_days": 3,
				"weekly_hours_weight":     70,
				"consecutive_ot_weight":   60,
			},
		},
		{
			Name:        "field",
			DisplayName: "外勤考勤",
			Description: "外勤场景在内勤规则之上增加外访佐证与单日外访次数限制。",
			Rules: []string{
				"late_arrival", "early_leave", "missing_checkout",
				"max_ot_per_day", "max_ot_per_month",
				"max_weekly_hours", "consecutive_ot_days",
				"visit_evidence", "max_daily_visits",
			},
			Config: map[string]interface{}{
				"grace_minutes":           10,
				"max_ot_per_day":          6.0,
				"max_ot_per_month":        36.0,
				"max_weekly_hours":        44,
				"max_consecutive_ot_days": 3,
				"weekly_hours_weight":     70,
				"consecutive_ot_weight":   60,
				"visit_evidence_weight":   50,
				"max_daily_visits":        10,
			},
		},
	}
}

// FindTemplate 按名称查找场景模板
func FindTemplate(name string) (Template, bool) {
	for _, t := range GetTemplates() {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// MergedConfig 以模板配置为底，叠加调用方覆盖项后返回新配置
func (t Template) MergedConfig(overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(t.Config)+len(overrides))
	for k, v := range t.Config {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
