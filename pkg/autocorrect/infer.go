// Package autocorrect 提供签退缺失的自动补卡引擎
package autocorrect

import (
	"sort"
	"time"

	"github.com/kaoqin/kaoqin/pkg/model"
)

// Candidate 补卡候选时刻
type Candidate struct {
	Source     string    `json:"source"`
	Time       time.Time `json:"time"`
	Confidence float64   `json:"confidence"` // 0-1
}

// CollectCandidates 收集未签退记录的全部补卡候选
func CollectCandidates(emp *model.Employee, rec *model.AttendanceRecord, visits []*model.SiteVisit, cutoff time.Time) []Candidate {
	if emp == nil || rec == nil || rec.CheckInTime == nil {
		return nil
	}

	date, err := time.ParseInLocation("2006-01-02", rec.Date, rec.CheckInTime.Location())
	if err != nil {
		return nil
	}

	var candidates []Candidate

	// 当日最后一次外访签退
	var lastVisitOut *time.Time
	for _, v := range visits {
		if v.CheckOutTime == nil {
			continue
		}
		if lastVisitOut == nil || v.CheckOutTime.After(*lastVisitOut) {
			lastVisitOut = v.CheckOutTime
		}
	}
	if lastVisitOut != nil {
		candidates = append(candidates, Candidate{
			Source:     model.CandidateVisitCheckout,
			Time:       *lastVisitOut,
			Confidence: 0.9,
		})
	}

	// 员工定班下班时刻
	candidates = append(candidates, Candidate{
		Source:     model.CandidateScheduleEnd,
		Time:       emp.WorkEndOn(date),
		Confidence: 0.75,
	})

	// 签到时间加标准工时
	candidates = append(candidates, Candidate{
		Source:     model.CandidateStandardHours,
		Time:       rec.CheckInTime.Add(time.Duration(emp.ScheduledMinutes()) * time.Minute),
		Confidence: 0.6,
	})

	// 截止时刻兜底
	candidates = append(candidates, Candidate{
		Source:     model.CandidateCutoff,
		Time:       cutoff,
		Confidence: 0.4,
	})

	return candidates
}

// InferCheckout 推断签退时刻
// 在不早于签到且不晚于截止时刻的候选中取最早的一个，时刻相同取置信度更高者
func InferCheckout(emp *model.Employee, rec *model.AttendanceRecord, visits []*model.SiteVisit, cutoff time.Time) *Candidate {
	if rec == nil || rec.CheckInTime == nil {
		return nil
	}

	candidates := CollectCandidates(emp, rec, visits, cutoff)

	var valid []Candidate
	for _, c := range candidates {
		if c.Time.Before(*rec.CheckInTime) || c.Time.After(cutoff) {
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Time.Equal(valid[j].Time) {
			return valid[i].Confidence > valid[j].Confidence
		}
		return valid[i].Time.Before(valid[j].Time)
	})

	return &valid[0]
}
