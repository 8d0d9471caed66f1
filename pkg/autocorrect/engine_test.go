package autocorrect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/model"
)

func TestNormalizeConfig(t *testing.T) {
	cfg := normalizeConfig(Config{})

	if cfg.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.QueueSize != 16 {
		t.Errorf("Expected queue size 16, got %d", cfg.QueueSize)
	}
	if cfg.Interval != 10*time.Minute {
		t.Errorf("Expected 10m interval, got %v", cfg.Interval)
	}
	if cfg.CutoffHour != 22 {
		t.Errorf("Expected cutoff hour 22, got %d", cfg.CutoffHour)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.Derive.GraceMinutes != 10 {
		t.Errorf("Expected derive grace 10, got %d", cfg.Derive.GraceMinutes)
	}
}

func TestEngine_Sweep_FillsOpenRecord(t *testing.T) {
	emp := testEmployee()
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	rec := openRecord(emp.ID, yesterday, "09:00")

	store := newMockStore()
	store.employees[emp.ID] = emp
	store.records = append(store.records, rec)

	engine := NewEngine(store, Config{Workers: 1})
	result, err := engine.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.Scanned != 1 || result.Filled != 1 {
		t.Fatalf("Expected 1 scanned 1 filled, got %+v", result)
	}
	if result.Sources[model.CandidateScheduleEnd] != 1 {
		t.Errorf("Expected schedule_end fill, got %+v", result.Sources)
	}

	if len(store.savedRecords) != 1 {
		t.Fatalf("Expected 1 saved record, got %d", len(store.savedRecords))
	}
	saved := store.savedRecords[0]
	if saved.CheckOutTime == nil || !saved.CheckOutTime.Equal(mustTime(yesterday+" 18:00")) {
		t.Errorf("Expected checkout filled at 18:00, got %v", saved.CheckOutTime)
	}
	if !saved.AutoCorrected {
		t.Error("Expected AutoCorrected flag")
	}
	if saved.Status != model.AttendancePresent {
		t.Errorf("Expected present status, got %s", saved.Status)
	}
	if saved.WorkMinutes != 540 {
		t.Errorf("Expected 540 work minutes, got %d", saved.WorkMinutes)
	}

	if len(store.savedItems) != 1 {
		t.Fatalf("Expected 1 correction item, got %d", len(store.savedItems))
	}
	item := store.savedItems[0]
	if item.CandidateSource != model.CandidateScheduleEnd {
		t.Errorf("Expected schedule_end source, got %s", item.CandidateSource)
	}
	if item.Confidence != 0.75 {
		t.Errorf("Expected confidence 0.75, got %.2f", item.Confidence)
	}
	if item.Status != model.CorrectionPending {
		t.Errorf("Expected pending status, got %s", item.Status)
	}
	if item.AttendanceID != rec.ID {
		t.Error("Expected item to reference the attendance record")
	}
}

func TestEngine_Sweep_VisitCheckoutWins(t *testing.T) {
	emp := testEmployee()
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	rec := openRecord(emp.ID, yesterday, "10:00")

	store := newMockStore()
	store.employees[emp.ID] = emp
	store.records = append(store.records, rec)
	store.visits[emp.ID.String()+"#"+yesterday] = []*model.SiteVisit{
		closedVisit(emp.ID, yesterday, "15:00", "16:30"),
	}

	engine := NewEngine(store, Config{Workers: 1})
	result, err := engine.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.Sources[model.CandidateVisitCheckout] != 1 {
		t.Errorf("Expected visit_checkout fill, got %+v", result.Sources)
	}
	if len(store.savedRecords) != 1 {
		t.Fatalf("Expected 1 saved record, got %d", len(store.savedRecords))
	}
	if !store.savedRecords[0].CheckOutTime.Equal(mustTime(yesterday + " 16:30")) {
		t.Errorf("Expected checkout 16:30, got %v", store.savedRecords[0].CheckOutTime)
	}
}

func TestEngine_Sweep_NotDueSkipped(t *testing.T) {
	emp := testEmployee()
	// 明日记录未到截止时刻
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	rec := openRecord(emp.ID, tomorrow, "09:00")

	store := newMockStore()
	store.employees[emp.ID] = emp
	store.records = append(store.records, rec)

	engine := NewEngine(store, Config{Workers: 1})
	result, err := engine.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.Filled != 0 || result.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %+v", result)
	}
	if len(store.savedRecords) != 0 {
		t.Error("Expected no save for a record before its cutoff")
	}
}

func TestEngine_Sweep_RetriesOnSaveError(t *testing.T) {
	emp := testEmployee()
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	rec := openRecord(emp.ID, yesterday, "09:00")

	store := newMockStore()
	store.employees[emp.ID] = emp
	store.records = append(store.records, rec)
	store.failSaves = 2

	engine := NewEngine(store, Config{
		Workers:        1,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond * 5,
	})
	result, err := engine.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.Filled != 1 {
		t.Errorf("Expected fill after retries, got %+v", result)
	}
	if store.saveCalls != 3 {
		t.Errorf("Expected 3 save attempts, got %d", store.saveCalls)
	}
}

func TestEngine_Sweep_RetriesExhausted(t *testing.T) {
	emp := testEmployee()
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	rec := openRecord(emp.ID, yesterday, "09:00")

	store := newMockStore()
	store.employees[emp.ID] = emp
	store.records = append(store.records, rec)
	store.failSaves = 10

	engine := NewEngine(store, Config{
		Workers:        1,
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond * 5,
	})
	result, err := engine.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("Expected 1 failed, got %+v", result)
	}
	if store.saveCalls != 2 {
		t.Errorf("Expected 2 save attempts, got %d", store.saveCalls)
	}
}

func TestEngine_Sweep_AfterStop(t *testing.T) {
	engine := NewEngine(newMockStore(), Config{})
	engine.Stop(context.Background())

	if _, err := engine.Sweep(context.Background(), ""); !errors.Is(err, ErrEngineStopped) {
		t.Errorf("Expected ErrEngineStopped, got %v", err)
	}
}

func TestEngine_OnSweepCallback(t *testing.T) {
	emp := testEmployee()
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")

	store := newMockStore()
	store.employees[emp.ID] = emp
	store.records = append(store.records, openRecord(emp.ID, yesterday, "09:00"))

	var got *SweepResult
	engine := NewEngine(store, Config{
		Workers: 1,
		OnSweep: func(r SweepResult) { got = &r },
	})

	if _, err := engine.Sweep(context.Background(), ""); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got == nil || got.Filled != 1 {
		t.Errorf("Expected callback with 1 filled, got %+v", got)
	}
}

func TestKeyedMutex(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("a")
			counter++
			km.Unlock("a")
		}()
	}
	wg.Wait()

	if counter != 10 {
		t.Errorf("Expected 10, got %d", counter)
	}
}

// mockStore 内存实现，记录保存调用
type mockStore struct {
	mu        sync.Mutex
	records   []*model.AttendanceRecord
	employees map[uuid.UUID]*model.Employee
	visits    map[string][]*model.SiteVisit

	savedRecords []*model.AttendanceRecord
	savedItems   []*model.CorrectionItem
	failSaves    int
	saveCalls    int
}

func newMockStore() *mockStore {
	return &mockStore{
		employees: make(map[uuid.UUID]*model.Employee),
		visits:    make(map[string][]*model.SiteVisit),
	}
}

func (m *mockStore) ListOpenRecords(ctx context.Context, date string) ([]*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.AttendanceRecord
	for _, r := range m.records {
		if !r.IsOpen() {
			continue
		}
		if date != "" && r.Date != date {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) GetEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	emp, ok := m.employees[id]
	if !ok {
		return nil, errors.New("员工不存在")
	}
	return emp, nil
}

func (m *mockStore) ListVisitsOnDate(ctx context.Context, empID uuid.UUID, date string) ([]*model.SiteVisit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visits[empID.String()+"#"+date], nil
}

func (m *mockStore) SaveCorrection(ctx context.Context, rec *model.AttendanceRecord, item *model.CorrectionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++
	if m.saveCalls <= m.failSaves {
		return errors.New("数据库不可用")
	}
	m.savedRecords = append(m.savedRecords, rec)
	m.savedItems = append(m.savedItems, item)
	return nil
}
