// Package policy 定义考勤规则接口和管理器
package policy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// Manager 规则管理器
type Manager struct {
	rules  []Rule
	mu     sync.RWMutex
	logger *logger.PolicyLogger
}

// NewManager 创建规则管理器
func NewManager() *Manager {
	return &Manager{
		rules:  make([]Rule, 0),
		logger: logger.NewPolicyLogger(),
	}
}

// Register 注册规则
func (m *Manager) Register(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 检查是否已存在同类型规则
	for i, existing := range m.rules {
		if existing.Type() == r.Type() {
			m.rules[i] = r // 替换
			return
		}
	}

	m.rules = append(m.rules, r)

	// 按类别和权重排序：硬规则在前，权重高的在前
	sort.Slice(m.rules, func(i, j int) bool {
		ri, rj := m.rules[i], m.rules[j]
		if ri.Category() != rj.Category() {
			return ri.Category() == CategoryHard
		}
		return ri.Weight() > rj.Weight()
	})
}

// Unregister 注销规则
func (m *Manager) Unregister(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rules {
		if r.Type() == t {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return
		}
	}
}

// GetRule 获取规则
func (m *Manager) GetRule(t Type) Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.rules {
		if r.Type() == t {
			return r
		}
	}
	return nil
}

// GetAll 获取所有规则
func (m *Manager) GetAll() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Rule, len(m.rules))
	copy(result, m.rules)
	return result
}

// GetByCategory 按类别获取规则
func (m *Manager) GetByCategory(cat Category) []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Rule
	for _, r := range m.rules {
		if r.Category() == cat {
			result = append(result, r)
		}
	}
	return result
}

// Evaluate 评估所有规则
func (m *Manager) Evaluate(ctx *Context) *Result {
	m.mu.RLock()
	rules := make([]Rule, len(m.rules))
	copy(rules, m.rules)
	m.mu.RUnlock()

	result := &Result{
		IsValid:      true,
		TotalPenalty: 0,
		HardFindings: make([]FindingDetail, 0),
		SoftFindings: make([]FindingDetail, 0),
	}

	maxPenalty := 0

	for _, r := range rules {
		valid, penalty, details := r.Evaluate(ctx)

		// 累加最大可能惩罚值（用于计算得分）
		maxPenalty += r.Weight() * 100 // 假设每条规则最多发现100次

		if !valid {
			result.TotalPenalty += penalty

			for _, d := range details {
				if r.Category() == CategoryHard {
					result.IsValid = false
					result.HardFindings = append(result.HardFindings, d)
					m.logger.RuleFinding(r.Name(), d.Message)
				} else {
					result.SoftFindings = append(result.SoftFindings, d)
				}
			}
		}
	}

	result.CalculateScore(maxPenalty)
	return result
}

// EvaluateRecord 评估单条考勤记录
func (m *Manager) EvaluateRecord(ctx *Context, record *model.AttendanceRecord) (bool, int, []FindingDetail) {
	m.mu.RLock()
	rules := make([]Rule, len(m.rules))
	copy(rules, m.rules)
	m.mu.RUnlock()

	var findings []FindingDetail
	totalPenalty := 0
	isValid := true

	for _, r := range rules {
		valid, penalty := r.EvaluateRecord(ctx, record)
		if !valid {
			totalPenalty += penalty
			findings = append(findings, FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: record.EmployeeID,
				Date:       record.Date,
				Message:    fmt.Sprintf("违反规则: %s", r.Name()),
				Severity:   string(r.Category()),
				Penalty:    penalty,
			})

			if r.Category() == CategoryHard {
				isValid = false
			}
		}
	}

	return isValid, totalPenalty, findings
}

// Clear 清除所有规则
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = make([]Rule, 0)
}

// Count 返回规则数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Summary 返回规则摘要
func (m *Manager) Summary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hard := 0
	soft := 0
	for _, r := range m.rules {
		if r.Category() == CategoryHard {
			hard++
		} else {
			soft++
		}
	}

	return map[string]interface{}{
		"total": len(m.rules),
		"hard":  hard,
		"soft":  soft,
	}
}
