package model

import (
	"testing"
	"time"
)

func TestLocation_Distance(t *testing.T) {
	tests := []struct {
		name     string
		loc1     Location
		loc2     Location
		expected float64
		delta    float64
	}{
		{
			name: "同一位置",
			loc1: Location{Latitude: 39.9042, Longitude: 116.4074},
			loc2: Location{Latitude: 39.9042, Longitude: 116.4074},
			expected: 0,
			delta:    0.001,
		},
		{
			name: "北京到上海",
			loc1: Location{Latitude: 39.9042, Longitude: 116.4074}, // 北京
			loc2: Location{Latitude: 31.2304, Longitude: 121.4737}, // 上海
			expected: 1066, // 约1066公里
			delta:    10,
		},
		{
			name: "短距离",
			loc1: Location{Latitude: 39.9042, Longitude: 116.4074},
			loc2: Location{Latitude: 39.9142, Longitude: 116.4174}, // 约1.4公里
			expected: 1.4,
			delta:    0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.loc1.Distance(tt.loc2)
			if result < tt.expected-tt.delta || result > tt.expected+tt.delta {
				t.Errorf("Distance() = %v, expected %v ± %v", result, tt.expected, tt.delta)
			}
		})
	}
}

func TestNewBaseModel(t *testing.T) {
	base := NewBaseModel()

	if base.ID.String() == "" {
		t.Error("ID should not be empty")
	}
	if base.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
	if base.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should not be zero")
	}
}

func TestTimeRange_Overlaps(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)

	tests := []struct {
		name     string
		a        TimeRange
		b        TimeRange
		expected bool
	}{
		{
			name:     "完全重叠",
			a:        TimeRange{Start: base, End: base.Add(2 * time.Hour)},
			b:        TimeRange{Start: base, End: base.Add(2 * time.Hour)},
			expected: true,
		},
		{
			name:     "部分重叠",
			a:        TimeRange{Start: base, End: base.Add(2 * time.Hour)},
			b:        TimeRange{Start: base.Add(time.Hour), End: base.Add(3 * time.Hour)},
			expected: true,
		},
		{
			name:     "首尾相接不算重叠",
			a:        TimeRange{Start: base, End: base.Add(time.Hour)},
			b:        TimeRange{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)},
			expected: false,
		},
		{
			name:     "完全分离",
			a:        TimeRange{Start: base, End: base.Add(time.Hour)},
			b:        TimeRange{Start: base.Add(3 * time.Hour), End: base.Add(4 * time.Hour)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.a.Overlaps(tt.b); result != tt.expected {
				t.Errorf("Overlaps() = %v, expected %v", result, tt.expected)
			}
			if result := tt.b.Overlaps(tt.a); result != tt.expected {
				t.Errorf("反向 Overlaps() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestTimeRange_Contains(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	tr := TimeRange{Start: base, End: base.Add(2 * time.Hour)}

	if !tr.Contains(base) {
		t.Error("起点应包含在范围内")
	}
	if !tr.Contains(base.Add(time.Hour)) {
		t.Error("中间时刻应包含在范围内")
	}
	if tr.Contains(base.Add(2 * time.Hour)) {
		t.Error("终点不应包含在范围内")
	}
	if tr.Contains(base.Add(-time.Minute)) {
		t.Error("范围之前的时刻不应包含")
	}
}

