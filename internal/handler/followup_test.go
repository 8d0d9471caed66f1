package handler

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kaoqin/kaoqin/pkg/model"
)

func TestLastKnownLocations(t *testing.T) {
	empA := uuid.New()
	empB := uuid.New()

	at := func(day, hour int) *time.Time {
		ts := time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
		return &ts
	}
	loc := func(addr string) *model.Location {
		return &model.Location{Address: addr, Latitude: 31.2, Longitude: 121.4}
	}

	visits := []*model.SiteVisit{
		{EmployeeID: empA, CheckOutTime: at(10, 15), CheckOutLocation: loc("老地址")},
		{EmployeeID: empA, CheckOutTime: at(12, 18), CheckOutLocation: loc("新地址")},
		{EmployeeID: empA, CheckOutTime: at(11, 9), CheckOutLocation: loc("中间地址")},
		// 在访未签退，不提供定位
		{EmployeeID: empB, CheckOutTime: nil},
		// 签退但无定位，跳过
		{EmployeeID: empB, CheckOutTime: at(12, 10), CheckOutLocation: nil},
	}

	locations := lastKnownLocations(visits)

	if len(locations) != 1 {
		t.Fatalf("Expected 1 employee location, got %d", len(locations))
	}
	got, ok := locations[empA]
	if !ok {
		t.Fatal("Expected location for employee A")
	}
	if got.Address != "新地址" {
		t.Errorf("Expected latest checkout location 新地址, got %s", got.Address)
	}
	if _, ok := locations[empB]; ok {
		t.Error("Expected no location for employee without located checkout")
	}
}

func TestGenerateCustomerCode(t *testing.T) {
	now := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)

	code := generateCustomerCode(now)
	if !strings.HasPrefix(code, "CU-20250315-") {
		t.Errorf("Expected prefix CU-20250315-, got %s", code)
	}
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		t.Fatalf("Expected 3 code segments, got %d", len(parts))
	}
	if len(parts[2]) != 4 {
		t.Errorf("Expected 4-char suffix, got %s", parts[2])
	}
	if parts[2] != strings.ToUpper(parts[2]) {
		t.Errorf("Expected uppercase suffix, got %s", parts[2])
	}

	// 后缀随机，同时生成的编码不应相同
	other := generateCustomerCode(now)
	if code == other {
		t.Errorf("Expected distinct codes, got %s twice", code)
	}
}
