package validator

import (
	"time"

	"github.com/google/uuid"

	"github.com/kaoqin/kaoqin/pkg/errors"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// 多步提交的步骤编号
const (
	StepCustomer = 1 // 客户信息
	StepDetail   = 2 // 外访信息
	StepOutcome  = 3 // 访问结果
)

// CustomerDraft 现场建档的新客户信息
type CustomerDraft struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// StepPayload 多步提交载荷，各步骤取各自的字段
type StepPayload struct {
	// 第一步：已有客户或现场建档二选一
	CustomerID *uuid.UUID     `json:"customer_id,omitempty"`
	Customer   *CustomerDraft `json:"customer,omitempty"`

	// 第二步：外访信息
	Department string          `json:"department"`
	Purpose    string          `json:"purpose"`
	Location   *model.Location `json:"location,omitempty"`

	// 第三步：访问结果
	Outcome       string `json:"outcome"`
	NextVisitDate string `json:"next_visit_date,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
}

// ValidateStep 校验单个步骤
func (v *VisitValidator) ValidateStep(step int, p *StepPayload) *errors.ValidationErrors {
	ve := &errors.ValidationErrors{}

	switch step {
	case StepCustomer:
		v.validateCustomerStep(p, ve)
	case StepDetail:
		v.validateDetailStep(p, ve)
	case StepOutcome:
		v.validateOutcomeStep(p, ve)
	default:
		ve.Add("step", "无效的步骤编号")
	}

	return ve
}

// ValidateSteps 依次校验全部步骤，提交时整体执行
func (v *VisitValidator) ValidateSteps(p *StepPayload) *errors.ValidationErrors {
	ve := &errors.ValidationErrors{}
	v.validateCustomerStep(p, ve)
	v.validateDetailStep(p, ve)
	v.validateOutcomeStep(p, ve)
	return ve
}

// ValidateCheckIn 校验签到提交（第一、二步）
func (v *VisitValidator) ValidateCheckIn(p *StepPayload) *errors.ValidationErrors {
	ve := &errors.ValidationErrors{}
	v.validateCustomerStep(p, ve)
	v.validateDetailStep(p, ve)
	return ve
}

// ValidateCheckOut 校验签退提交（第三步）
func (v *VisitValidator) ValidateCheckOut(p *StepPayload) *errors.ValidationErrors {
	ve := &errors.ValidationErrors{}
	v.validateOutcomeStep(p, ve)
	return ve
}

func (v *VisitValidator) validateCustomerStep(p *StepPayload, ve *errors.ValidationErrors) {
	if p.CustomerID == nil && p.Customer == nil {
		ve.Add("customer", "必须提供客户ID或新客户信息")
		return
	}

	if p.Customer != nil {
		if p.Customer.Name == "" {
			ve.Add("customer.name", "客户名称不能为空")
		}
		if p.Customer.Phone == "" && p.Customer.Address == "" {
			ve.Add("customer.phone", "现场建档需提供电话或地址")
		}
	}
}

func (v *VisitValidator) validateDetailStep(p *StepPayload, ve *errors.ValidationErrors) {
	switch model.Department(p.Department) {
	case model.DeptTechnical, model.DeptMarketing, model.DeptAdmin:
	default:
		ve.Add("department", "无效的外勤部门")
	}

	if p.Purpose == "" {
		ve.Add("purpose", "外访目的不能为空")
	}

	if v.config.RequireLocation && p.Location == nil {
		ve.Add("location", "需要提供签到定位")
	}
}

func (v *VisitValidator) validateOutcomeStep(p *StepPayload, ve *errors.ValidationErrors) {
	switch p.Outcome {
	case model.OutcomeConverted:
	case model.OutcomeOnProcess:
		if p.NextVisitDate == "" {
			ve.Add("next_visit_date", "跟进中的外访需填写下次回访日期")
		} else if _, err := time.Parse("2006-01-02", p.NextVisitDate); err != nil {
			ve.Add("next_visit_date", "回访日期格式应为YYYY-MM-DD")
		}
	case model.OutcomeCancelled:
		if p.CancelReason == "" {
			ve.Add("cancel_reason", "已取消的外访需填写取消原因")
		}
	default:
		ve.Add("outcome", "无效的外访结果")
	}
}
