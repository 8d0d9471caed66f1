package quotation

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/kaoqin/kaoqin/pkg/model"
)

//go:embed templates/*
var templatesFS embed.FS

// statusLabels 报价单状态的中文展示
var statusLabels = map[string]string{
	model.QuoteDraft:    "草稿",
	model.QuoteSent:     "已发出",
	model.QuoteAccepted: "已接受",
	model.QuoteDeclined: "已婉拒",
	model.QuoteExpired:  "已过期",
}

// Renderer 报价单打印文档渲染器
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer 创建渲染器，解析内嵌模板
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("document").Funcs(template.FuncMap{
		"rmb": formatAmount,
		"seq": func(i int) int { return i + 1 },
		"statusLabel": func(status string) string {
			if label, ok := statusLabels[status]; ok {
				return label
			}
			return status
		},
		"percent": func(rate float64) string {
			return fmt.Sprintf("%.0f%%", rate*100)
		},
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("解析报价单模板失败: %w", err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// DocumentData 打印文档渲染上下文
type DocumentData struct {
	Quotation  *model.Quotation
	Customer   *model.Customer
	Org        *model.Organization
	Creator    *model.Employee // 制单人，可为空
	RenderedAt time.Time
}

// RenderDocument 渲染打印版报价单 HTML
func (r *Renderer) RenderDocument(w io.Writer, data *DocumentData) error {
	if data == nil || data.Quotation == nil {
		return fmt.Errorf("缺少报价单数据")
	}
	if data.RenderedAt.IsZero() {
		data.RenderedAt = time.Now()
	}
	return r.tmpl.ExecuteTemplate(w, "document.html", data)
}

// formatAmount 金额展示，保留两位小数
func formatAmount(v float64) string {
	return fmt.Sprintf("¥%.2f", v)
}
