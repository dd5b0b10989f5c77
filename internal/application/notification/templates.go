package notification

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/trade"
)

// Template kinds
const (
	TemplateOrderPlaced         = "order_placed"
	TemplateOrderConfirmed      = "order_confirmed"
	TemplateOrderCanceled       = "order_canceled"
	TemplateOrderStatusAdvanced = "order_status_advanced"
)

// Audiences a notification is written for
const (
	AudienceBuyer = "buyer"
	AudienceShop  = "shop"
)

// TemplateData is the context a notification is rendered with
type TemplateData struct {
	OrderID        uuid.UUID `json:"order_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Audience       string    `json:"audience"`
	RecipientName  string    `json:"recipient_name,omitempty"`
}

const statusLine = `Your order number {{.OrderID}} status has been changed to {{.Status}}`

const greeting = `{{if .RecipientName}}Hello, {{.RecipientName}}!{{else}}Hello!{{end}}`

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[string]messageTemplate{
	TemplateOrderPlaced: mustTemplate(
		`{{if eq .Audience "shop"}}New order {{.OrderID}}{{else}}Order {{.OrderID}} placed{{end}}`,
		greeting+"\n\n"+`{{if eq .Audience "shop"}}Order number {{.OrderID}} with goods of your shop has been placed.{{else}}`+statusLine+`{{end}}`,
	),
	TemplateOrderConfirmed: mustTemplate(
		`Order {{.OrderID}} confirmed`,
		greeting+"\n\n"+statusLine,
	),
	TemplateOrderCanceled: mustTemplate(
		`Order {{.OrderID}} canceled`,
		greeting+"\n\n"+statusLine+`{{if .Reason}}
Reason: {{.Reason}}{{end}}`,
	),
	TemplateOrderStatusAdvanced: mustTemplate(
		`Order {{.OrderID}} is {{.Status}}`,
		greeting+"\n\n"+statusLine,
	),
}

func mustTemplate(subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

// Render produces the subject and body of a notification
func Render(kind string, data TemplateData) (subject, body string, err error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.subject.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", kind, err)
	}
	subject = buf.String()
	buf.Reset()
	if err := tmpl.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", kind, err)
	}
	return subject, buf.String(), nil
}

// templateFor maps an order event type to its template kind
func templateFor(eventType string) (string, bool) {
	switch eventType {
	case trade.EventTypeOrderPlaced:
		return TemplateOrderPlaced, true
	case trade.EventTypeOrderConfirmed:
		return TemplateOrderConfirmed, true
	case trade.EventTypeOrderCanceled:
		return TemplateOrderCanceled, true
	case trade.EventTypeOrderStatusAdvanced:
		return TemplateOrderStatusAdvanced, true
	}
	return "", false
}
