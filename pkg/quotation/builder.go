// Package quotation 提供报价单构建、状态流转与打印文档渲染
package quotation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kaoqin/kaoqin/pkg/model"
)

// Builder 报价单构建器
type Builder struct {
	taxRate   float64 // 默认税率
	validDays int     // 默认有效期天数
	currency  string
	// 部门与档位对应的默认报价条目
	deptItems map[model.Department]map[int][]model.QuotationItem
}

// NewBuilderWithConfig 创建带自定义默认值的报价单构建器，非法值回落到默认
func NewBuilderWithConfig(taxRate float64, validDays int, currency string) *Builder {
	b := NewBuilder()
	if taxRate > 0 && taxRate < 1 {
		b.taxRate = taxRate
	}
	if validDays > 0 {
		b.validDays = validDays
	}
	if currency != "" {
		b.currency = currency
	}
	return b
}

// NewBuilder 创建报价单构建器
func NewBuilder() *Builder {
	return &Builder{
		taxRate:   0.06, // 现代服务业增值税
		validDays: 30,
		currency:  "CNY",
		deptItems: map[model.Department]map[int][]model.QuotationItem{
			model.DeptTechnical: {
				1: {
					{Name: "设备安装调试", Description: "现场安装与基础调试", Quantity: 1, UnitPrice: 800},
				},
				2: {
					{Name: "设备安装调试", Description: "现场安装与基础调试", Quantity: 1, UnitPrice: 800},
					{Name: "线路布设", Description: "强弱电线路铺设", Quantity: 1, UnitPrice: 1200},
					{Name: "系统联调", Description: "多设备联合调试", Quantity: 1, UnitPrice: 600},
				},
				3: {
					{Name: "设备安装调试", Description: "现场安装与基础调试", Quantity: 1, UnitPrice: 800},
					{Name: "线路布设", Description: "强弱电线路铺设", Quantity: 1, UnitPrice: 1200},
					{Name: "系统联调", Description: "多设备联合调试", Quantity: 1, UnitPrice: 600},
					{Name: "运维托管", Description: "一年期远程运维与巡检", Quantity: 1, UnitPrice: 6000},
				},
			},
			model.DeptMarketing: {
				1: {
					{Name: "基础推广包", Description: "线上渠道基础投放", Quantity: 1, UnitPrice: 2000},
				},
				2: {
					{Name: "基础推广包", Description: "线上渠道基础投放", Quantity: 1, UnitPrice: 2000},
					{Name: "活动策划执行", Description: "单场线下活动策划与执行", Quantity: 1, UnitPrice: 3500},
				},
				3: {
					{Name: "基础推广包", Description: "线上渠道基础投放", Quantity: 1, UnitPrice: 2000},
					{Name: "活动策划执行", Description: "单场线下活动策划与执行", Quantity: 1, UnitPrice: 3500},
					{Name: "年度代运营", Description: "全年渠道代运营服务", Quantity: 1, UnitPrice: 12000},
				},
			},
		},
	}
}

// BuildRequest 报价单构建请求
type BuildRequest struct {
	OrgID      uuid.UUID
	CustomerID uuid.UUID
	VisitID    *uuid.UUID
	Title      string
	Items      []model.QuotationItem
	TaxRate    *float64 // nil 时取默认税率
	ValidUntil string   // 空时按默认有效期推算
	CreatedBy  uuid.UUID
	Notes      string
}

// Build 构建一张草稿状态的报价单并计算金额
func (b *Builder) Build(req *BuildRequest) (*model.Quotation, error) {
	if req == nil {
		return nil, fmt.Errorf("缺少报价单内容")
	}

	q := &model.Quotation{
		BaseModel:  model.NewBaseModel(),
		OrgID:      req.OrgID,
		CustomerID: req.CustomerID,
		VisitID:    req.VisitID,
		QuoteNo:    GenerateQuoteNo(),
		Title:      req.Title,
		Items:      req.Items,
		TaxRate:    b.taxRate,
		Currency:   b.currency,
		ValidUntil: req.ValidUntil,
		Status:     model.QuoteDraft,
		CreatedBy:  req.CreatedBy,
		Notes:      req.Notes,
	}
	if req.TaxRate != nil {
		q.TaxRate = *req.TaxRate
	}
	if q.Title == "" {
		q.Title = "服务报价单"
	}
	if q.ValidUntil == "" {
		q.ValidUntil = time.Now().AddDate(0, 0, b.validDays).Format("2006-01-02")
	}

	if issues := Validate(q); len(issues) > 0 {
		return nil, fmt.Errorf("报价单校验失败: %s", strings.Join(issues, "；"))
	}

	CalculateTotals(q)
	return q, nil
}

// DefaultItems 返回部门与档位对应的默认报价条目，未配置时返回 nil
func (b *Builder) DefaultItems(dept model.Department, level int) []model.QuotationItem {
	levels, ok := b.deptItems[dept]
	if !ok {
		return nil
	}
	items, ok := levels[level]
	if !ok {
		return nil
	}

	out := make([]model.QuotationItem, len(items))
	copy(out, items)
	return out
}

// Validate 校验报价单内容
func Validate(q *model.Quotation) []string {
	var errors []string

	if q.CustomerID == uuid.Nil {
		errors = append(errors, "客户不能为空")
	}
	if len(q.Items) == 0 {
		errors = append(errors, "报价条目不能为空")
	}
	for i, item := range q.Items {
		if item.Name == "" {
			errors = append(errors, fmt.Sprintf("第%d项名称不能为空", i+1))
		}
		if item.Quantity <= 0 {
			errors = append(errors, fmt.Sprintf("第%d项数量必须大于0", i+1))
		}
		if item.UnitPrice < 0 {
			errors = append(errors, fmt.Sprintf("第%d项单价不能为负", i+1))
		}
	}
	if q.TaxRate < 0 || q.TaxRate >= 1 {
		errors = append(errors, "税率必须在0到1之间")
	}

	return errors
}

// CalculateTotals 重算金额：单项金额、小计、税额与总计均保留两位小数
func CalculateTotals(q *model.Quotation) {
	subtotal := 0.0
	for i := range q.Items {
		q.Items[i].Amount = round2(q.Items[i].Quantity * q.Items[i].UnitPrice)
		subtotal += q.Items[i].Amount
	}
	q.Subtotal = round2(subtotal)
	q.TaxAmount = round2(q.Subtotal * q.TaxRate)
	q.Total = round2(q.Subtotal + q.TaxAmount)
}

// 状态流转表：草稿可发出，发出后客户接受或婉拒
var transitions = map[string][]string{
	model.QuoteDraft: {model.QuoteSent},
	model.QuoteSent:  {model.QuoteAccepted, model.QuoteDeclined},
}

// Transition 推进报价单状态，不允许的流转返回错误
func Transition(q *model.Quotation, to string) error {
	for _, allowed := range transitions[q.Status] {
		if allowed == to {
			q.Status = to
			return nil
		}
	}
	return fmt.Errorf("报价单状态不能从%s变为%s", q.Status, to)
}

// MarkIfExpired 将过了有效期且尚未了结的报价单标记为过期
// 已接受、已婉拒为终态，不受有效期影响
func MarkIfExpired(q *model.Quotation, now time.Time) bool {
	switch q.Status {
	case model.QuoteAccepted, model.QuoteDeclined, model.QuoteExpired:
		return false
	}
	if !q.IsExpired(now) {
		return false
	}
	q.Status = model.QuoteExpired
	return true
}

// GenerateQuoteNo 生成报价单号，形如 QT-20260310-A3F9
func GenerateQuoteNo() string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("QT-%s-%s", time.Now().Format("20060102"), suffix)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
