package policy

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// ParallelEvaluator 并行评估器
// 报表场景下按员工切分上下文并发评估
type ParallelEvaluator struct {
	workers int
	manager *Manager
}

// NewParallelEvaluator 创建并行评估器
func NewParallelEvaluator(workers int, manager *Manager) *ParallelEvaluator {
	if workers <= 0 {
		workers = 4
	}
	return &ParallelEvaluator{
		workers: workers,
		manager: manager,
	}
}

// EmployeeResult 单员工评估结果
type EmployeeResult struct {
	Index      int
	EmployeeID uuid.UUID
	Result     *Result
}

// EvaluateEmployees 并行评估上下文中的每个员工
func (p *ParallelEvaluator) EvaluateEmployees(ctx context.Context, pctx *Context) map[uuid.UUID]*Result {
	if len(pctx.Employees) == 0 {
		return nil
	}

	resultChan := make(chan EmployeeResult, len(pctx.Employees))
	jobChan := make(chan struct {
		index int
		emp   *model.Employee
	}, len(pctx.Employees))

	// 启动工作协程
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
					sub := pctx.SubContext(job.emp.ID)
					resultChan <- EmployeeResult{
						Index:      job.index,
						EmployeeID: job.emp.ID,
						Result:     p.manager.Evaluate(sub),
					}
				}
			}
		}()
	}

	// 发送任务
	go func() {
		for i, emp := range pctx.Employees {
			jobChan <- struct {
				index int
				emp   *model.Employee
			}{i, emp}
		}
		close(jobChan)
	}()

	// 等待完成
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// 收集结果
	results := make(map[uuid.UUID]*Result, len(pctx.Employees))
	for r := range resultChan {
		results[r.EmployeeID] = r.Result
	}

	return results
}

// WorstEmployees 按得分升序取最差的前n个员工
func (p *ParallelEvaluator) WorstEmployees(results map[uuid.UUID]*Result, n int) []uuid.UUID {
	type scored struct {
		id    uuid.UUID
		score float64
	}

	list := make([]scored, 0, len(results))
	for id, r := range results {
		list = append(list, scored{id: id, score: r.Score})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].score < list[j].score
	})

	if n > len(list) {
		n = len(list)
	}
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, list[i].id)
	}
	return ids
}
