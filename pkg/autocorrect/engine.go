package autocorrect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/logger"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/othours"
)

// ErrEngineStopped 引擎已停止时触发扫描返回
var ErrEngineStopped = errors.New("补卡引擎已停止")

// errNoCandidate 无有效候选，记录跳过而非重试
var errNoCandidate = errors.New("无可用补卡候选")

// Store 补卡引擎所需的数据访问
type Store interface {
	// ListOpenRecords 列出未签退的考勤记录，date为空时不限日期
	ListOpenRecords(ctx context.Context, date string) ([]*model.AttendanceRecord, error)
	GetEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	ListVisitsOnDate(ctx context.Context, empID uuid.UUID, date string) ([]*model.SiteVisit, error)
	// SaveCorrection 在同一事务中更新考勤记录并写入补卡记录
	SaveCorrection(ctx context.Context, rec *model.AttendanceRecord, item *model.CorrectionItem) error
}

// Config 补卡引擎配置
type Config struct {
	Workers           int
	QueueSize         int
	Interval          time.Duration // 扫描间隔
	CutoffHour        int           // 补卡截止小时，过点才允许补全当日记录
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration

	Derive othours.DeriveConfig

	// OnSweep 扫描完成回调，由调用方挂接指标上报
	OnSweep func(SweepResult)
}

func normalizeConfig(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.CutoffHour <= 0 || cfg.CutoffHour > 23 {
		cfg.CutoffHour = 22
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 30 * time.Second
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if cfg.Derive.GraceMinutes == 0 && cfg.Derive.HalfDayRatio == 0 {
		cfg.Derive = othours.DefaultDeriveConfig()
	}
	return cfg
}

// SweepResult 单次扫描结果
type SweepResult struct {
	Date     string         `json:"date"` // 扫描目标日期，全量扫描为 all
	Scanned  int            `json:"scanned"`
	Filled   int            `json:"filled"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Sources  map[string]int `json:"sources"`
	Duration time.Duration  `json:"duration"`
}

// Engine 自动补卡引擎
// 定时扫描未签退记录，推断签退时刻补全并生成待复核的补卡记录
type Engine struct {
	store  Store
	cfg    Config
	logger *logger.CorrectionLogger

	keyedLocks *keyedMutex

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewEngine 创建补卡引擎
func NewEngine(store Store, cfg Config) *Engine {
	return &Engine{
		store:      store,
		cfg:        normalizeConfig(cfg),
		logger:     logger.NewCorrectionLogger(),
		keyedLocks: newKeyedMutex(),
		stopCh:     make(chan struct{}),
	}
}

// Config 返回归一化后的配置
func (e *Engine) Config() Config {
	return e.cfg
}

// Start 启动定时扫描
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.loop()
}

func (e *Engine) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if _, err := e.Sweep(context.Background(), ""); err != nil && !errors.Is(err, ErrEngineStopped) {
				logger.Error().Err(err).Msg("补卡扫描失败")
			}
		}
	}
}

// Stop 停止引擎并等待在途任务结束
func (e *Engine) Stop(ctx context.Context) {
	e.once.Do(func() {
		close(e.stopCh)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return
	case <-done:
		return
	}
}

// Sweep 扫描未签退记录并补全签退时刻
// date 为空时扫描所有已过各自截止时刻的日期
func (e *Engine) Sweep(ctx context.Context, date string) (*SweepResult, error) {
	select {
	case <-e.stopCh:
		return nil, ErrEngineStopped
	default:
	}

	start := time.Now()

	records, err := e.store.ListOpenRecords(ctx, date)
	if err != nil {
		return nil, err
	}

	target := date
	if target == "" {
		target = "all"
	}
	e.logger.StartSweep(target, len(records))

	result := &SweepResult{
		Date:    target,
		Scanned: len(records),
		Sources: make(map[string]int),
	}

	jobChan := make(chan *model.AttendanceRecord, e.cfg.QueueSize)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobChan {
				select {
				case <-ctx.Done():
					return
				case <-e.stopCh:
					return
				default:
				}

				source, err := e.process(ctx, rec, start)
				mu.Lock()
				switch {
				case err == nil:
					result.Filled++
					result.Sources[source]++
				case errors.Is(err, errNoCandidate) || errors.Is(err, errNotDue):
					result.Skipped++
				default:
					result.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	// 发送任务
sendLoop:
	for _, rec := range records {
		select {
		case jobChan <- rec:
		case <-ctx.Done():
			break sendLoop
		case <-e.stopCh:
			break sendLoop
		}
	}
	close(jobChan)
	wg.Wait()

	result.Duration = time.Since(start)
	e.logger.SweepComplete(target, result.Duration, result.Filled, result.Skipped+result.Failed)

	if e.cfg.OnSweep != nil {
		e.cfg.OnSweep(*result)
	}

	return result, nil
}

// errNotDue 尚未到截止时刻，当次扫描跳过
var errNotDue = errors.New("未到补卡截止时刻")

// process 按 员工+日期 串行处理单条记录，失败按退避重试
func (e *Engine) process(ctx context.Context, rec *model.AttendanceRecord, now time.Time) (string, error) {
	if rec == nil || rec.CheckInTime == nil {
		return "", errNoCandidate
	}

	cutoff, err := e.cutoffFor(rec)
	if err != nil {
		return "", err
	}
	if now.Before(cutoff) {
		return "", errNotDue
	}

	key := rec.EmployeeID.String() + "#" + rec.Date
	e.keyedLocks.Lock(key)
	defer e.keyedLocks.Unlock(key)

	for attempt := 1; ; attempt++ {
		source, err := e.fill(ctx, rec, cutoff)
		if err == nil {
			return source, nil
		}
		if errors.Is(err, errNoCandidate) {
			logger.Warn().
				Str("record_id", rec.ID.String()).
				Str("date", rec.Date).
				Msg("无可用补卡候选，记录跳过")
			return "", err
		}
		if attempt >= e.cfg.MaxAttempts {
			logger.Error().Err(err).
				Str("record_id", rec.ID.String()).
				Int("attempts", attempt).
				Msg("补卡重试次数耗尽")
			return "", err
		}

		delay := e.backoffDuration(attempt + 1)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		case <-e.stopCh:
			return "", ErrEngineStopped
		}
	}
}

// fill 推断签退时刻并与补卡记录一并落库
func (e *Engine) fill(ctx context.Context, rec *model.AttendanceRecord, cutoff time.Time) (string, error) {
	emp, err := e.store.GetEmployee(ctx, rec.EmployeeID)
	if err != nil {
		return "", err
	}

	visits, err := e.store.ListVisitsOnDate(ctx, rec.EmployeeID, rec.Date)
	if err != nil {
		return "", err
	}

	cand := InferCheckout(emp, rec, visits, cutoff)
	if cand == nil {
		return "", errNoCandidate
	}

	date, err := time.ParseInLocation("2006-01-02", rec.Date, rec.CheckInTime.Location())
	if err != nil {
		return "", err
	}

	updated := *rec
	updated.CheckOutTime = &cand.Time
	updated.AutoCorrected = true
	updated.CorrectionNote = fmt.Sprintf("签退时间按%s自动补全", sourceLabel(cand.Source))

	status, minutes := othours.DeriveStatus(emp, date, *rec.CheckInTime, &cand.Time, e.cfg.Derive)
	updated.Status = status
	updated.WorkMinutes = minutes

	item := &model.CorrectionItem{
		BaseModel:       model.NewBaseModel(),
		OrgID:           rec.OrgID,
		EmployeeID:      rec.EmployeeID,
		AttendanceID:    rec.ID,
		Date:            rec.Date,
		FilledCheckOut:  cand.Time,
		CandidateSource: cand.Source,
		Confidence:      cand.Confidence,
		Status:          model.CorrectionPending,
	}

	if err := e.store.SaveCorrection(ctx, &updated, item); err != nil {
		return "", err
	}

	e.logger.ItemFilled(rec.ID.String(), cand.Source, cand.Confidence)
	return cand.Source, nil
}

// cutoffFor 计算记录日期的补卡截止时刻
func (e *Engine) cutoffFor(rec *model.AttendanceRecord) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", rec.Date, rec.CheckInTime.Location())
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), e.cfg.CutoffHour, 0, 0, 0, date.Location()), nil
}

func (e *Engine) backoffDuration(attempt int) time.Duration {
	backoff := float64(e.cfg.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= e.cfg.BackoffMultiplier
		if backoff >= float64(e.cfg.MaxBackoff) {
			return e.cfg.MaxBackoff
		}
	}
	return time.Duration(backoff)
}

// sourceLabel 候选来源的中文说明
func sourceLabel(source string) string {
	switch source {
	case model.CandidateVisitCheckout:
		return "当日外访签退"
	case model.CandidateScheduleEnd:
		return "定班下班时刻"
	case model.CandidateStandardHours:
		return "标准工时"
	case model.CandidateCutoff:
		return "截止时刻"
	}
	return source
}

// keyedMutex 按键串行化，同一员工同一天的补卡不并发
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()

	if !ok {
		return
	}

	m.Unlock()
}
