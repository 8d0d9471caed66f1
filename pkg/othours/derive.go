package othours

import (
	"time"

	"github.com/kaoqin/kaoqin/pkg/model"
)

// DeriveConfig 考勤状态判定配置
type DeriveConfig struct {
	GraceMinutes int     // 迟到早退宽限（默认10分钟）
	HalfDayRatio float64 // 实际工时低于排班工时该比例记半天（默认0.5）
}

// DefaultDeriveConfig 返回默认判定配置
func DefaultDeriveConfig() DeriveConfig {
	return DeriveConfig{
		GraceMinutes: 10,
		HalfDayRatio: 0.5,
	}
}

// DeriveStatus 根据签到签退时间推导考勤状态与实际工时（分钟）
// 签退时间为空时状态为 incomplete，等待自动补卡处理
func DeriveStatus(emp *model.Employee, date time.Time, checkIn time.Time, checkOut *time.Time, cfg DeriveConfig) (string, int) {
	if checkOut == nil {
		return model.AttendanceIncomplete, 0
	}

	workMinutes := int(checkOut.Sub(checkIn).Minutes())
	if workMinutes < 0 {
		workMinutes = 0
	}

	scheduled := emp.ScheduledMinutes()
	if cfg.HalfDayRatio > 0 && float64(workMinutes) < float64(scheduled)*cfg.HalfDayRatio {
		return model.AttendanceHalfDay, workMinutes
	}

	grace := time.Duration(cfg.GraceMinutes) * time.Minute
	late := checkIn.After(emp.WorkStartOn(date).Add(grace))
	early := checkOut.Before(emp.WorkEndOn(date).Add(-grace))

	switch {
	case late && early:
		return model.AttendanceLateEarlyLeave, workMinutes
	case late:
		return model.AttendanceLate, workMinutes
	case early:
		return model.AttendanceEarlyLeave, workMinutes
	}
	return model.AttendancePresent, workMinutes
}
