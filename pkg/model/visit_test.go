package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSiteVisit_IsFollowUp(t *testing.T) {
	primary := &SiteVisit{}
	if primary.IsFollowUp() {
		t.Error("首访不应标记为回访")
	}

	original := uuid.New()
	followUp := &SiteVisit{FollowUpOf: &original}
	if !followUp.IsFollowUp() {
		t.Error("关联原访问的记录应标记为回访")
	}
}

func TestSiteVisit_DurationMinutes(t *testing.T) {
	checkIn := time.Date(2025, 3, 10, 14, 0, 0, 0, time.Local)
	checkOut := checkIn.Add(90 * time.Minute)

	v := &SiteVisit{CheckInTime: checkIn, CheckOutTime: &checkOut}
	if minutes := v.DurationMinutes(); minutes != 90 {
		t.Errorf("DurationMinutes() = %d, expected 90", minutes)
	}

	open := &SiteVisit{CheckInTime: checkIn, Status: VisitCheckedIn}
	if minutes := open.DurationMinutes(); minutes != 0 {
		t.Errorf("未签退外访 DurationMinutes() = %d, expected 0", minutes)
	}
	if !open.IsOpen() {
		t.Error("checked_in 状态应为进行中")
	}
}

func TestQuotation_IsExpired(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		validUntil string
		expected   bool
	}{
		{"有效期内", "2025-03-20", false},
		{"有效期最后一天", "2025-03-10", false},
		{"已过期", "2025-03-01", true},
		{"未设置有效期", "", false},
		{"非法日期视为未过期", "bad-date", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Quotation{ValidUntil: tt.validUntil}
			if result := q.IsExpired(now); result != tt.expected {
				t.Errorf("IsExpired() = %v, expected %v", result, tt.expected)
			}
		})
	}
}
