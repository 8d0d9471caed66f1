package model

import (
	"testing"
	"time"
)

func TestAttendanceRecord_IsOpen(t *testing.T) {
	checkIn := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	checkOut := checkIn.Add(9 * time.Hour)

	tests := []struct {
		name     string
		in       *time.Time
		out      *time.Time
		expected bool
	}{
		{"已签到未签退", &checkIn, nil, true},
		{"已签退", &checkIn, &checkOut, false},
		{"未签到", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &AttendanceRecord{CheckInTime: tt.in, CheckOutTime: tt.out}
			if result := r.IsOpen(); result != tt.expected {
				t.Errorf("IsOpen() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestAttendanceRecord_WorkedHours(t *testing.T) {
	checkIn := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	checkOut := checkIn.Add(9*time.Hour + 30*time.Minute)

	r := &AttendanceRecord{CheckInTime: &checkIn, CheckOutTime: &checkOut}
	if hours := r.WorkedHours(); hours != 9.5 {
		t.Errorf("WorkedHours() = %v, expected 9.5", hours)
	}

	open := &AttendanceRecord{CheckInTime: &checkIn}
	if hours := open.WorkedHours(); hours != 0 {
		t.Errorf("未签退记录 WorkedHours() = %v, expected 0", hours)
	}
}

func TestOTSession_IsReviewed(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		expected bool
	}{
		{"待审核", OTPending, false},
		{"已批准", OTApproved, true},
		{"已调整", OTAdjusted, true},
		{"已驳回", OTRejected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &OTSession{Status: tt.status}
			if result := s.IsReviewed(); result != tt.expected {
				t.Errorf("IsReviewed() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestOTSession_EffectiveHours(t *testing.T) {
	adjusted := 1.5

	tests := []struct {
		name     string
		claimed  float64
		approved *float64
		expected float64
	}{
		{"未审核按申报", 3.0, nil, 3.0},
		{"已调整按审核", 3.0, &adjusted, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &OTSession{ClaimedHours: tt.claimed, ApprovedHours: tt.approved}
			if result := s.EffectiveHours(); result != tt.expected {
				t.Errorf("EffectiveHours() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestCorrectionItem_IsReviewed(t *testing.T) {
	pending := &CorrectionItem{Status: CorrectionPending}
	if pending.IsReviewed() {
		t.Error("待复核记录不应标记为已复核")
	}

	confirmed := &CorrectionItem{Status: CorrectionConfirmed}
	if !confirmed.IsReviewed() {
		t.Error("已确认记录应标记为已复核")
	}

	reverted := &CorrectionItem{Status: CorrectionReverted}
	if !reverted.IsReviewed() {
		t.Error("已撤销记录应标记为已复核")
	}
}
