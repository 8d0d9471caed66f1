package scenario

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/autocorrect"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// TestNightCloseSweepFillsFromEvidence 日终扫描按佐证补签退测试
// 周工当天有外访签退记录，吴会计只有定班，郑前台的记录未到截止时刻
func TestNightCloseSweepFillsFromEvidence(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

	engineer := createEmployee("周工", "工程师", model.DeptTechnical)
	accountant := createEmployee("吴会计", "会计", model.DeptOffice)
	reception := createEmployee("郑前台", "前台", model.DeptAdmin)

	store := newNightStore()
	store.addEmployee(engineer, accountant, reception)
	store.addRecord(nightRecord(engineer.ID, yesterday, "09:05"))
	store.addRecord(nightRecord(accountant.ID, yesterday, "09:10"))
	store.addRecord(nightRecord(reception.ID, tomorrow, "09:00"))
	store.addVisit(engineer.ID, yesterday, nightVisit(engineer.ID, yesterday, "14:00", "17:55"))

	engine := autocorrect.NewEngine(store, autocorrect.Config{Workers: 2})
	defer engine.Stop(context.Background())

	result, err := engine.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("日终扫描失败: %v", err)
	}

	t.Logf("扫描%d条，补卡%d条，跳过%d条", result.Scanned, result.Filled, result.Skipped)

	if result.Scanned != 3 {
		t.Errorf("应扫描3条未签退记录，实际: %d", result.Scanned)
	}
	if result.Filled != 2 {
		t.Errorf("应补卡2条，实际: %d", result.Filled)
	}
	if result.Skipped != 1 {
		t.Errorf("未到截止时刻的记录应跳过，实际跳过: %d", result.Skipped)
	}
	if result.Sources[model.CandidateVisitCheckout] != 1 {
		t.Errorf("应有1条按外访签退补卡，实际: %+v", result.Sources)
	}
	if result.Sources[model.CandidateScheduleEnd] != 1 {
		t.Errorf("应有1条按定班下班补卡，实际: %+v", result.Sources)
	}

	// 周工按最后一次外访签退17:55补卡
	engRec := store.findRecord(engineer.ID)
	if engRec.CheckOutTime == nil || !engRec.CheckOutTime.Equal(nightTime(yesterday+" 17:55")) {
		t.Errorf("周工签退应补为17:55，实际: %v", engRec.CheckOutTime)
	}
	if engRec.Status != model.AttendancePresent {
		t.Errorf("周工补卡后状态应为正常，实际: %s", engRec.Status)
	}
	if engRec.WorkMinutes != 530 {
		t.Errorf("周工工时应为530分钟，实际: %d", engRec.WorkMinutes)
	}
	if !engRec.AutoCorrected {
		t.Error("补卡记录应带自动修正标记")
	}
	if !strings.Contains(engRec.CorrectionNote, "自动补全") {
		t.Errorf("补卡记录应注明来源，实际: %s", engRec.CorrectionNote)
	}

	// 吴会计无外访，按定班18:00补卡
	accRec := store.findRecord(accountant.ID)
	if accRec.CheckOutTime == nil || !accRec.CheckOutTime.Equal(nightTime(yesterday+" 18:00")) {
		t.Errorf("吴会计签退应补为18:00，实际: %v", accRec.CheckOutTime)
	}
	if accRec.Status != model.AttendancePresent {
		t.Errorf("吴会计补卡后状态应为正常，实际: %s", accRec.Status)
	}

	// 郑前台的记录保持未签退，等下一轮扫描
	if store.findRecord(reception.ID).CheckOutTime != nil {
		t.Error("未到截止时刻的记录不应被补卡")
	}

	// 每条补卡都生成待审明细
	if len(store.items) != 2 {
		t.Fatalf("应生成2条补卡明细，实际: %d", len(store.items))
	}
	for _, item := range store.items {
		if item.Status != model.CorrectionPending {
			t.Errorf("补卡明细应为待审状态，实际: %s", item.Status)
		}
		switch item.EmployeeID {
		case engineer.ID:
			if item.CandidateSource != model.CandidateVisitCheckout || item.Confidence != 0.9 {
				t.Errorf("周工明细应为外访来源置信度0.9，实际: %s/%.2f", item.CandidateSource, item.Confidence)
			}
			if item.AttendanceID != engRec.ID {
				t.Error("补卡明细应关联考勤记录")
			}
		case accountant.ID:
			if item.CandidateSource != model.CandidateScheduleEnd || item.Confidence != 0.75 {
				t.Errorf("吴会计明细应为定班来源置信度0.75，实际: %s/%.2f", item.CandidateSource, item.Confidence)
			}
		}
	}
}

// TestNightCloseFallbackCutoff 晚间到岗无佐证按截止时刻兜底测试
func TestNightCloseFallbackCutoff(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")

	emp := createEmployee("何支援", "运维", model.DeptTechnical)

	// 19:00临时到岗处理故障，定班下班时刻早于签到不可用
	store := newNightStore()
	store.addEmployee(emp)
	store.addRecord(nightRecord(emp.ID, yesterday, "19:00"))

	engine := autocorrect.NewEngine(store, autocorrect.Config{Workers: 1})
	defer engine.Stop(context.Background())

	result, err := engine.Sweep(context.Background(), yesterday)
	if err != nil {
		t.Fatalf("日终扫描失败: %v", err)
	}

	if result.Sources[model.CandidateCutoff] != 1 {
		t.Errorf("应按截止时刻兜底补卡，实际: %+v", result.Sources)
	}

	rec := store.findRecord(emp.ID)
	if rec.CheckOutTime == nil || !rec.CheckOutTime.Equal(nightTime(yesterday+" 22:00")) {
		t.Errorf("兜底签退应为22:00，实际: %v", rec.CheckOutTime)
	}
	// 实际在岗3小时不足半天排班，记半天
	if rec.Status != model.AttendanceHalfDay {
		t.Errorf("晚间3小时在岗应记半天，实际: %s", rec.Status)
	}
	if rec.WorkMinutes != 180 {
		t.Errorf("工时应为180分钟，实际: %d", rec.WorkMinutes)
	}

	if len(store.items) != 1 || store.items[0].Confidence != 0.4 {
		t.Errorf("兜底补卡置信度应为0.4，实际: %+v", store.items)
	}
}

// TestNightCloseSecondSweepIdempotent 重复扫描不重复补卡测试
func TestNightCloseSecondSweepIdempotent(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")

	emp := createEmployee("沈主管", "主管", model.DeptMarketing)
	store := newNightStore()
	store.addEmployee(emp)
	store.addRecord(nightRecord(emp.ID, yesterday, "09:00"))

	engine := autocorrect.NewEngine(store, autocorrect.Config{Workers: 1})
	defer engine.Stop(context.Background())

	first, err := engine.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("第一轮扫描失败: %v", err)
	}
	if first.Filled != 1 {
		t.Fatalf("第一轮应补卡1条，实际: %+v", first)
	}

	second, err := engine.Sweep(context.Background(), "")
	if err != nil {
		t.Fatalf("第二轮扫描失败: %v", err)
	}
	if second.Scanned != 0 || second.Filled != 0 {
		t.Errorf("已补卡记录不应再次进入扫描，实际: %+v", second)
	}
	if len(store.items) != 1 {
		t.Errorf("补卡明细不应重复生成，实际: %d", len(store.items))
	}
}

// nightStore 日终场景的内存存储，补卡落库时就地关闭考勤记录
type nightStore struct {
	mu        sync.Mutex
	records   []*model.AttendanceRecord
	employees map[uuid.UUID]*model.Employee
	visits    map[string][]*model.SiteVisit
	items     []*model.CorrectionItem
}

func newNightStore() *nightStore {
	return &nightStore{
		employees: make(map[uuid.UUID]*model.Employee),
		visits:    make(map[string][]*model.SiteVisit),
	}
}

func (n *nightStore) addEmployee(emps ...*model.Employee) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range emps {
		n.employees[e.ID] = e
	}
}

func (n *nightStore) addRecord(rec *model.AttendanceRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
}

func (n *nightStore) addVisit(empID uuid.UUID, date string, v *model.SiteVisit) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := empID.String() + "#" + date
	n.visits[key] = append(n.visits[key], v)
}

func (n *nightStore) findRecord(empID uuid.UUID) *model.AttendanceRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range n.records {
		if r.EmployeeID == empID {
			return r
		}
	}
	return nil
}

func (n *nightStore) ListOpenRecords(ctx context.Context, date string) ([]*model.AttendanceRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []*model.AttendanceRecord
	for _, r := range n.records {
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

func (n *nightStore) GetEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	emp, ok := n.employees[id]
	if !ok {
		return nil, errors.New("员工不存在")
	}
	return emp, nil
}

func (n *nightStore) ListVisitsOnDate(ctx context.Context, empID uuid.UUID, date string) ([]*model.SiteVisit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visits[empID.String()+"#"+date], nil
}

func (n *nightStore) SaveCorrection(ctx context.Context, rec *model.AttendanceRecord, item *model.CorrectionItem) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, existing := range n.records {
		if existing.ID == rec.ID {
			n.records[i] = rec
			break
		}
	}
	n.items = append(n.items, item)
	return nil
}

func nightRecord(empID uuid.UUID, date, checkIn string) *model.AttendanceRecord {
	in := nightTime(date + " " + checkIn)
	return &model.AttendanceRecord{
		BaseModel:   model.NewBaseModel(),
		EmployeeID:  empID,
		Date:        date,
		CheckInTime: &in,
		Status:      model.AttendanceIncomplete,
	}
}

func nightVisit(empID uuid.UUID, date, checkIn, checkOut string) *model.SiteVisit {
	out := nightTime(date + " " + checkOut)
	return &model.SiteVisit{
		BaseModel:    model.NewBaseModel(),
		EmployeeID:   empID,
		CustomerID:   uuid.New(),
		Department:   model.DeptTechnical,
		CheckInTime:  nightTime(date + " " + checkIn),
		CheckOutTime: &out,
		Status:       model.VisitCheckedOut,
	}
}

func nightTime(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}
