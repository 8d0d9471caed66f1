// Package followup 提供客户跟进推荐
// 从外访链路中筛出到期客户，并为每个客户给出最合适的跟进员工
package followup

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/visitflow"
)

// Config 推荐器配置
type Config struct {
	FollowUpWindowDays int     // 跟进中客户未约回访时的默认窗口
	MaxDistanceKm      float64 // 距离评分的零分距离
	MaxResults         int

	// 各因素权重，总和为 1
	OverdueWeight    float64
	ContinuityWeight float64
	DistanceWeight   float64
	LoadWeight       float64
	DeptWeight       float64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		FollowUpWindowDays: 7,
		MaxDistanceKm:      30,
		MaxResults:         10,
		OverdueWeight:      0.35,
		ContinuityWeight:   0.25,
		DistanceWeight:     0.15,
		LoadWeight:         0.10,
		DeptWeight:         0.15,
	}
}

// Recommender 跟进推荐器
type Recommender struct {
	cfg Config
}

// NewRecommender 创建跟进推荐器
func NewRecommender() *Recommender {
	return &Recommender{cfg: DefaultConfig()}
}

// NewRecommenderWithConfig 创建带自定义配置的跟进推荐器
func NewRecommenderWithConfig(cfg Config) *Recommender {
	def := DefaultConfig()
	if cfg.FollowUpWindowDays <= 0 {
		cfg.FollowUpWindowDays = def.FollowUpWindowDays
	}
	if cfg.MaxDistanceKm <= 0 {
		cfg.MaxDistanceKm = def.MaxDistanceKm
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.OverdueWeight+cfg.ContinuityWeight+cfg.DistanceWeight+cfg.LoadWeight+cfg.DeptWeight == 0 {
		cfg.OverdueWeight = def.OverdueWeight
		cfg.ContinuityWeight = def.ContinuityWeight
		cfg.DistanceWeight = def.DistanceWeight
		cfg.LoadWeight = def.LoadWeight
		cfg.DeptWeight = def.DeptWeight
	}
	return &Recommender{cfg: cfg}
}

// Request 推荐请求
type Request struct {
	Groups    []*visitflow.CustomerGroup
	Customers []*model.Customer
	Employees []*model.Employee
	History   []model.CustomerVisitHistory

	// OpenVisits 当前未签退的外访，用于员工负载评分
	OpenVisits []*model.SiteVisit
	// Locations 员工最近位置（通常为最近一次外访签退点），缺省不扣距离分
	Locations map[uuid.UUID]*model.Location

	Now        time.Time // 零值时取当前时间
	MaxResults int
}

// Recommendation 单个客户的跟进建议
type Recommendation struct {
	CustomerID  uuid.UUID       `json:"customer_id"`
	Customer    *model.Customer `json:"customer,omitempty"`
	Employee    *model.Employee `json:"employee,omitempty"`
	Score       float64         `json:"score"`
	DueDate     string          `json:"due_date"`
	DaysOverdue int             `json:"days_overdue"`
	Distance    float64         `json:"distance_km,omitempty"`
	Reasons     []string        `json:"reasons,omitempty"`
}

// Recommend 生成跟进建议
// 成交与已取消的客户不再跟进，在访中的客户跳过，结果按分数倒序
func (r *Recommender) Recommend(req *Request) []*Recommendation {
	if req == nil || len(req.Groups) == 0 {
		return nil
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	customers := make(map[uuid.UUID]*model.Customer, len(req.Customers))
	for _, c := range req.Customers {
		customers[c.ID] = c
	}

	load := make(map[uuid.UUID]int)
	for _, v := range req.OpenVisits {
		if v.IsOpen() {
			load[v.EmployeeID]++
		}
	}

	recs := make([]*Recommendation, 0, len(req.Groups))
	for _, g := range req.Groups {
		if g.Status == model.OutcomeConverted || g.Status == model.OutcomeCancelled {
			continue
		}
		if visitflow.OpenVisit(g) != nil {
			continue
		}

		due, ok := r.dueDate(g, now.Location())
		if !ok || now.Before(due) {
			continue
		}
		daysOverdue := int(now.Sub(due).Hours()) / 24

		rec := &Recommendation{
			CustomerID:  g.CustomerID,
			Customer:    customers[g.CustomerID],
			DueDate:     due.Format("2006-01-02"),
			DaysOverdue: daysOverdue,
		}

		overdueScore := 40 + float64(daysOverdue)*10
		if overdueScore > 100 {
			overdueScore = 100
		}
		if daysOverdue == 0 {
			rec.Reasons = append(rec.Reasons, "今日到期应回访")
		} else {
			rec.Reasons = append(rec.Reasons, fmt.Sprintf("已逾期%d天", daysOverdue))
		}

		rec.Score = overdueScore * r.cfg.OverdueWeight

		if best := r.bestEmployee(g, req, load, now); best != nil {
			rec.Employee = best.employee
			rec.Score += best.weighted
			rec.Distance = best.distance
			rec.Reasons = append(rec.Reasons, best.reasons...)
		}
		rec.Score = round1(rec.Score)

		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].DaysOverdue > recs[j].DaysOverdue
	})

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}
	if len(recs) > maxResults {
		recs = recs[:maxResults]
	}

	logger.Debug().
		Int("groups", len(req.Groups)).
		Int("due", len(recs)).
		Msg("跟进推荐完成")

	return recs
}

// dueDate 计算客户的应回访日期
// 优先取最近一次外访填写的回访日期，未填写时按最近外访加默认窗口
func (r *Recommender) dueDate(g *visitflow.CustomerGroup, loc *time.Location) (time.Time, bool) {
	last := latestVisit(g)
	if last == nil {
		return time.Time{}, false
	}

	if last.NextVisitDate != "" {
		if due, err := time.ParseInLocation("2006-01-02", last.NextVisitDate, loc); err == nil {
			return due, true
		}
	}

	lv := g.LastVisitAt
	base := time.Date(lv.Year(), lv.Month(), lv.Day(), 0, 0, 0, 0, loc)
	return base.AddDate(0, 0, r.cfg.FollowUpWindowDays), true
}

// employeeFit 员工对单个客户的匹配结果
type employeeFit struct {
	employee *model.Employee
	weighted float64
	distance float64
	reasons  []string
}

// bestEmployee 在可派员工中选出匹配度最高的一位
func (r *Recommender) bestEmployee(g *visitflow.CustomerGroup, req *Request, load map[uuid.UUID]int, now time.Time) *employeeFit {
	customer := findCustomer(req.Customers, g.CustomerID)
	last := latestVisit(g)

	var best *employeeFit
	for _, emp := range req.Employees {
		if !emp.IsActive() || !emp.IsFieldWorker() {
			continue
		}

		fit := r.scoreEmployee(emp, g, last, customer, req, load, now)
		if best == nil || fit.weighted > best.weighted {
			best = fit
		}
	}
	return best
}

// scoreEmployee 计算单个员工的加权匹配分
func (r *Recommender) scoreEmployee(emp *model.Employee, g *visitflow.CustomerGroup, last *model.SiteVisit, customer *model.Customer, req *Request, load map[uuid.UUID]int, now time.Time) *employeeFit {
	fit := &employeeFit{employee: emp}

	continuity := r.scoreContinuity(emp, g, last, req.History, now, fit)

	distance := 100.0
	if customer != nil && customer.Location != nil {
		if empLoc := req.Locations[emp.ID]; empLoc != nil {
			fit.distance = round1(empLoc.Distance(*customer.Location))
			distance = r.scoreDistance(fit.distance)
			fit.reasons = append(fit.reasons, fmt.Sprintf("距客户%.1f公里", fit.distance))
		}
	}

	loadScore := 0.0
	switch load[emp.ID] {
	case 0:
		loadScore = 100
		fit.reasons = append(fit.reasons, "当前无在访任务")
	case 1:
		loadScore = 40
	}

	deptScore := 0.0
	if last != nil && emp.Department == last.Department {
		deptScore = 100
		fit.reasons = append(fit.reasons, "部门对口")
	}

	fit.weighted = continuity*r.cfg.ContinuityWeight +
		distance*r.cfg.DistanceWeight +
		loadScore*r.cfg.LoadWeight +
		deptScore*r.cfg.DeptWeight
	return fit
}

// scoreContinuity 延续性评分：外访历史优先，无历史时看链路本身
func (r *Recommender) scoreContinuity(emp *model.Employee, g *visitflow.CustomerGroup, last *model.SiteVisit, history []model.CustomerVisitHistory, now time.Time, fit *employeeFit) float64 {
	for _, h := range history {
		if h.CustomerID != g.CustomerID || h.EmployeeID != emp.ID {
			continue
		}

		score := 0.0
		switch {
		case h.VisitCount >= 5:
			score = 50
		case h.VisitCount >= 2:
			score = 35
		case h.VisitCount >= 1:
			score = 20
		}
		if h.IsPrimary {
			score += 30
			fit.reasons = append(fit.reasons, "为该客户主对接人")
		}
		if !h.LastVisitAt.IsZero() && now.Sub(h.LastVisitAt) <= 30*24*time.Hour {
			score += 20
		}
		if score > 100 {
			score = 100
		}
		if h.VisitCount > 0 {
			fit.reasons = append(fit.reasons, fmt.Sprintf("曾外访该客户%d次", h.VisitCount))
		}
		return score
	}

	// 无历史数据时从链路推断
	if last != nil && last.EmployeeID == emp.ID {
		fit.reasons = append(fit.reasons, "上次外访由其完成")
		return 60
	}
	if g.Primary != nil && g.Primary.EmployeeID == emp.ID {
		fit.reasons = append(fit.reasons, "参与过该客户外访")
		return 40
	}
	for _, v := range g.FollowUps {
		if v.EmployeeID == emp.ID {
			fit.reasons = append(fit.reasons, "参与过该客户外访")
			return 40
		}
	}
	return 0
}

// scoreDistance 距离评分，越近越高
func (r *Recommender) scoreDistance(distance float64) float64 {
	if distance <= 0 {
		return 100
	}
	if distance >= r.cfg.MaxDistanceKm {
		return 0
	}
	return (1 - distance/r.cfg.MaxDistanceKm) * 100
}

// latestVisit 返回链路中最近的一次外访
func latestVisit(g *visitflow.CustomerGroup) *model.SiteVisit {
	if len(g.FollowUps) > 0 {
		return g.FollowUps[len(g.FollowUps)-1]
	}
	return g.Primary
}

func findCustomer(customers []*model.Customer, id uuid.UUID) *model.Customer {
	for _, c := range customers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
