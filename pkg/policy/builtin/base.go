// Package builtin 提供内置考勤规则实现
package builtin

import (
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/policy"
)

// BaseRule 规则基类
type BaseRule struct {
	name     string
	typ      policy.Type
	category policy.Category
	weight   int
	config   map[string]interface{}
}

// NewBaseRule 创建基础规则
func NewBaseRule(name string, typ policy.Type, cat policy.Category, weight int) *BaseRule {
	return &BaseRule{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
		config:   make(map[string]interface{}),
	}
}

// Name 返回规则名称
func (r *BaseRule) Name() string { return r.name }

// Type 返回规则类型
func (r *BaseRule) Type() policy.Type { return r.typ }

// Category 返回规则类别
func (r *BaseRule) Category() policy.Category { return r.category }

// Weight 返回规则权重
func (r *BaseRule) Weight() int { return r.weight }

// SetConfig 设置配置
func (r *BaseRule) SetConfig(config map[string]interface{}) {
	r.config = config
}

// GetConfig 获取配置
func (r *BaseRule) GetConfig() map[string]interface{} {
	return r.config
}

// GetConfigInt 获取整数配置
func (r *BaseRule) GetConfigInt(key string, defaultVal int) int {
	if val, ok := r.config[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case int64:
			return int(v)
		}
	}
	return defaultVal
}

// GetConfigFloat 获取浮点数配置
func (r *BaseRule) GetConfigFloat(key string, defaultVal float64) float64 {
	if val, ok := r.config[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return defaultVal
}

// GetConfigString 获取字符串配置
func (r *BaseRule) GetConfigString(key string, defaultVal string) string {
	if val, ok := r.config[key].(string); ok {
		return val
	}
	return defaultVal
}

// GetConfigBool 获取布尔配置
func (r *BaseRule) GetConfigBool(key string, defaultVal bool) bool {
	if val, ok := r.config[key].(bool); ok {
		return val
	}
	return defaultVal
}

// CreateFinding 创建发现详情
func (r *BaseRule) CreateFinding(date, message string, penalty int) policy.FindingDetail {
	severity := "warning"
	if r.category == policy.CategoryHard {
		severity = "error"
	}

	return policy.FindingDetail{
		RuleType: r.typ,
		RuleName: r.name,
		Date:     date,
		Message:  message,
		Severity: severity,
		Penalty:  penalty,
	}
}

// Evaluate 默认评估实现（子类需覆盖）
func (r *BaseRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	return true, 0, nil
}

// EvaluateRecord 默认单条记录评估实现（子类需覆盖）
func (r *BaseRule) EvaluateRecord(ctx *policy.Context, record *model.AttendanceRecord) (bool, int) {
	return true, 0
}
