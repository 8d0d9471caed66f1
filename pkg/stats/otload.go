package stats

import (
	"math"
	"sort"
	"time"

	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/othours"
)

// OTLoadMetrics 加班负荷指标
type OTLoadMetrics struct {
	TotalSessions int            `json:"total_sessions"` // 总时段数
	TotalHours    float64        `json:"total_hours"`    // 生效加班总时长
	StatusCounts  map[string]int `json:"status_counts"`  // 各审核状态时段数

	// 生效时长分布
	AvgHoursPerEmployee float64 `json:"avg_hours_per_employee"` // 人均生效时长
	MaxHours            float64 `json:"max_hours"`
	MinHours            float64 `json:"min_hours"`
	HoursRange          float64 `json:"hours_range"` // 时长极差
	Variance            float64 `json:"variance"`
	StdDev              float64 `json:"std_dev"`
	CV                  float64 `json:"cv"` // 变异系数

	// 分配均衡性 (0=完全均衡, 1=完全集中)
	HoursGini   float64 `json:"hours_gini"`
	NightGini   float64 `json:"night_gini"`
	WeekendGini float64 `json:"weekend_gini"`

	// 员工级别统计
	EmployeeLoads []EmployeeOTLoad `json:"employee_loads"`

	// 超载员工
	Overloaded []EmployeeOTLoad `json:"overloaded"`

	// 综合均衡评分 (0-100)
	BalanceScore float64 `json:"balance_score"`
}

// EmployeeOTLoad 员工加班负荷
type EmployeeOTLoad struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`

	SessionCount    int     `json:"session_count"`
	ClaimedHours    float64 `json:"claimed_hours"`
	EffectiveHours  float64 `json:"effective_hours"`
	EffectiveLabel  string  `json:"effective_label"` // "12h 30m"
	NightSessions   int     `json:"night_sessions"`
	WeekendSessions int     `json:"weekend_sessions"`
	Deviation       float64 `json:"deviation"` // 与人均生效时长的偏差百分比
}

// OTLoadAnalyzer 加班负荷分析器
type OTLoadAnalyzer struct {
	nightStartHour int     // 夜间加班界定：结束晚于该时刻
	nightEndHour   int     // 或跨零点后早于该时刻
	outlierSigma   float64 // 超载判定的标准差倍数
	monthlyLimit   float64 // 月度加班预警线（小时），与规则库上限一致
}

// NewOTLoadAnalyzer 创建加班负荷分析器
func NewOTLoadAnalyzer() *OTLoadAnalyzer {
	return &OTLoadAnalyzer{
		nightStartHour: 22,
		nightEndHour:   6,
		outlierSigma:   1.5,
		monthlyLimit:   36,
	}
}

// Analyze 分析加班负荷分布
// 生效时长只累计已批准与已调整的时段，待审核与已驳回不进入分布
func (o *OTLoadAnalyzer) Analyze(sessions []*model.OTSession, employees []*model.Employee) *OTLoadMetrics {
	if len(sessions) == 0 {
		return &OTLoadMetrics{
			StatusCounts: make(map[string]int),
			BalanceScore: 100,
		}
	}

	// 构建员工ID映射
	employeeMap := make(map[string]*model.Employee)
	for _, e := range employees {
		if e != nil {
			employeeMap[e.ID.String()] = e
		}
	}

	metrics := &OTLoadMetrics{
		StatusCounts: make(map[string]int),
	}
	loads := make(map[string]*EmployeeOTLoad)

	for _, s := range sessions {
		if s == nil {
			continue
		}
		metrics.TotalSessions++
		metrics.StatusCounts[s.Status]++

		empID := s.EmployeeID.String()
		load, exists := loads[empID]
		if !exists {
			name := empID
			if e, ok := employeeMap[empID]; ok {
				name = e.Name
			}
			load = &EmployeeOTLoad{
				EmployeeID:   empID,
				EmployeeName: name,
			}
			loads[empID] = load
		}

		load.SessionCount++
		load.ClaimedHours += s.ClaimedHours

		switch s.Status {
		case model.OTApproved, model.OTAdjusted:
			load.EffectiveHours += s.EffectiveHours()
		}

		if o.isNightSession(s) {
			load.NightSessions++
		}
		if isWeekend(s.Date) {
			load.WeekendSessions++
		}
	}

	// 计算分布向量
	hours := make([]float64, 0, len(loads))
	nights := make([]float64, 0, len(loads))
	weekends := make([]float64, 0, len(loads))
	for _, load := range loads {
		load.ClaimedHours = othours.Round2(load.ClaimedHours)
		load.EffectiveHours = othours.Round2(load.EffectiveHours)
		load.EffectiveLabel = othours.FormatHours(load.EffectiveHours)

		hours = append(hours, load.EffectiveHours)
		nights = append(nights, float64(load.NightSessions))
		weekends = append(weekends, float64(load.WeekendSessions))
		metrics.TotalHours += load.EffectiveHours
	}
	metrics.TotalHours = othours.Round2(metrics.TotalHours)

	avg := calculateMean(hours)
	variance := calculateVariance(hours, avg)
	stdDev := math.Sqrt(variance)
	maxHours, minHours := calculateRange(hours)

	metrics.AvgHoursPerEmployee = avg
	metrics.Variance = variance
	metrics.StdDev = stdDev
	metrics.MaxHours = maxHours
	metrics.MinHours = minHours
	metrics.HoursRange = maxHours - minHours
	if avg > 0 {
		metrics.CV = stdDev / avg
	}

	metrics.HoursGini = calculateGini(hours)
	metrics.NightGini = calculateGini(nights)
	metrics.WeekendGini = calculateGini(weekends)

	// 更新员工偏差并按生效时长排序
	metrics.EmployeeLoads = make([]EmployeeOTLoad, 0, len(loads))
	for _, load := range loads {
		if avg > 0 {
			load.Deviation = (load.EffectiveHours - avg) / avg * 100
		}
		metrics.EmployeeLoads = append(metrics.EmployeeLoads, *load)
	}
	sort.Slice(metrics.EmployeeLoads, func(i, j int) bool {
		return metrics.EmployeeLoads[i].EffectiveHours > metrics.EmployeeLoads[j].EffectiveHours
	})

	for _, load := range metrics.EmployeeLoads {
		if o.isOverloaded(load.EffectiveHours, avg, stdDev) {
			metrics.Overloaded = append(metrics.Overloaded, load)
		}
	}

	metrics.BalanceScore = o.calculateBalanceScore(metrics.HoursGini, metrics.NightGini, metrics.WeekendGini, stdDev, avg)
	return metrics
}

// isNightSession 判断是否为夜间加班
func (o *OTLoadAnalyzer) isNightSession(s *model.OTSession) bool {
	endHour := s.EndTime.Hour()
	return endHour >= o.nightStartHour || endHour <= o.nightEndHour
}

// isOverloaded 判断员工是否超载
// 触线或显著偏离人均水平都算
func (o *OTLoadAnalyzer) isOverloaded(hours, avg, stdDev float64) bool {
	if hours >= o.monthlyLimit {
		return true
	}
	return stdDev > 0 && hours > avg+o.outlierSigma*stdDev
}

// calculateBalanceScore 计算综合均衡评分
func (o *OTLoadAnalyzer) calculateBalanceScore(hoursGini, nightGini, weekendGini, stdDev, avgHours float64) float64 {
	// 各项权重
	const (
		hoursWeight   = 0.4
		nightWeight   = 0.25
		weekendWeight = 0.25
		cvWeight      = 0.1
	)

	// 基尼系数转换为分数 (0=100分, 1=0分)
	hoursScore := (1 - hoursGini) * 100
	nightScore := (1 - nightGini) * 100
	weekendScore := (1 - weekendGini) * 100

	// 变异系数越低分数越高
	cvScore := 100.0
	if avgHours > 0 {
		cv := stdDev / avgHours
		cvScore = math.Max(0, 100-cv*200)
	}

	score := hoursWeight*hoursScore +
		nightWeight*nightScore +
		weekendWeight*weekendScore +
		cvWeight*cvScore

	return math.Max(0, math.Min(100, score))
}

// ComparePeriods 比较两个时段的加班负荷
func (o *OTLoadAnalyzer) ComparePeriods(current, previous []*model.OTSession, employees []*model.Employee) map[string]float64 {
	cur := o.Analyze(current, employees)
	prev := o.Analyze(previous, employees)

	return map[string]float64{
		"hours_gini_diff":        cur.HoursGini - prev.HoursGini,
		"night_gini_diff":        cur.NightGini - prev.NightGini,
		"weekend_gini_diff":      cur.WeekendGini - prev.WeekendGini,
		"balance_score_diff":     cur.BalanceScore - prev.BalanceScore,
		"avg_hours_diff":         cur.AvgHoursPerEmployee - prev.AvgHoursPerEmployee,
		"current_balance_score":  cur.BalanceScore,
		"previous_balance_score": prev.BalanceScore,
	}
}

// isWeekend 判断日期是否是周末
func isWeekend(dateStr string) bool {
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return false
	}
	weekday := date.Weekday()
	return weekday == time.Saturday || weekday == time.Sunday
}

// calculateMean 计算平均值
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateRange 计算极值
func calculateRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// calculateGini 计算基尼系数
func calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}
