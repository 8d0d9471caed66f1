// Package visitflow 提供外访链路的分组与客户状态归并
// 首访与回访在此合并为客户视角的跟进链路，状态口径全服务统一
package visitflow

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kaoqin/kaoqin/pkg/model"
)

// CustomerGroup 单个客户的外访链路
type CustomerGroup struct {
	CustomerID  uuid.UUID          `json:"customer_id"`
	Primary     *model.SiteVisit   `json:"primary"`
	FollowUps   []*model.SiteVisit `json:"follow_ups,omitempty"`
	VisitCount  int                `json:"visit_count"`
	LastVisitAt time.Time          `json:"last_visit_at"`
	Status      string             `json:"status"` // converted/on_process/cancelled
}

// GroupByCustomer 按客户聚合外访记录
// 每个客户一条链路：首访加按时间排列的回访，链路按最近外访时间倒序
func GroupByCustomer(visits []*model.SiteVisit) []*CustomerGroup {
	byCustomer := make(map[uuid.UUID][]*model.SiteVisit)
	for _, v := range visits {
		byCustomer[v.CustomerID] = append(byCustomer[v.CustomerID], v)
	}

	groups := make([]*CustomerGroup, 0, len(byCustomer))
	for customerID, list := range byCustomer {
		sort.Slice(list, func(i, j int) bool {
			return list[i].CheckInTime.Before(list[j].CheckInTime)
		})

		g := &CustomerGroup{
			CustomerID: customerID,
			VisitCount: len(list),
		}
		for _, v := range list {
			if v.IsFollowUp() {
				g.FollowUps = append(g.FollowUps, v)
			} else if g.Primary == nil {
				g.Primary = v
			} else {
				// 同一客户出现多条首访时按回访归并，保持链路单根
				g.FollowUps = append(g.FollowUps, v)
			}
		}
		g.LastVisitAt = list[len(list)-1].CheckInTime
		g.Status = EffectiveStatus(g)
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].LastVisitAt.After(groups[j].LastVisitAt)
	})
	return groups
}

// EffectiveStatus 归并客户当前的跟进状态
// 成交为终态；否则以最近一次填写了结果的外访为准；全部未出结果时视为跟进中
func EffectiveStatus(g *CustomerGroup) string {
	all := make([]*model.SiteVisit, 0, 1+len(g.FollowUps))
	if g.Primary != nil {
		all = append(all, g.Primary)
	}
	all = append(all, g.FollowUps...)

	status := ""
	var statusAt time.Time
	for _, v := range all {
		if v.Outcome == model.OutcomeConverted {
			return model.OutcomeConverted
		}
		if v.Outcome != "" && (status == "" || v.CheckInTime.After(statusAt)) {
			status = v.Outcome
			statusAt = v.CheckInTime
		}
	}
	if status == "" {
		return model.OutcomeOnProcess
	}
	return status
}

// OpenVisit 返回链路中未签退的外访，不存在时返回 nil
func OpenVisit(g *CustomerGroup) *model.SiteVisit {
	if g.Primary != nil && g.Primary.IsOpen() {
		return g.Primary
	}
	for _, v := range g.FollowUps {
		if v.IsOpen() {
			return v
		}
	}
	return nil
}
