package delivery

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

var reminderSubjects = map[domain.NotificationType]string{
	domain.Notify7Days:   "Your planner trial ends in 7 days",
	domain.Notify3Days:   "Your planner trial ends in 3 days",
	domain.Notify1Day:    "Your planner trial ends tomorrow",
	domain.NotifyExpired: "Your planner trial has ended",
}

const reminderHTML = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #4f46e5;">{{if .Expired}}Your trial has ended{{else}}{{.DaysRemaining}} day{{if ne .DaysRemaining 1}}s{{end}} left in your trial{{end}}</h2>
  <p>Hi {{if .PlannerName}}{{.PlannerName}}{{else}}there{{end}},</p>
  {{if .Expired}}
  <p>Your free trial ended on {{.ExpiresAt}}. Your students and lesson plans are kept safe; activate a license to continue managing up to your plan's student limit.</p>
  {{else}}
  <p>Your free trial ends on {{.ExpiresAt}}. You can manage up to {{.MaxStudents}} students until then.</p>
  {{end}}
  <p style="background: #f4f4f5; padding: 12px; font-family: 'Courier New', monospace;">Trial key: {{.LicenseKey}}</p>
  {{if .UpgradeURL}}<p><a href="{{.UpgradeURL}}" style="display: inline-block; background: #4f46e5; color: #fff; padding: 12px 24px; border-radius: 6px; text-decoration: none;">Get a license</a></p>{{end}}
</body>
</html>
`

const reminderText = `Hi {{if .PlannerName}}{{.PlannerName}}{{else}}there{{end}},

{{if .Expired}}Your free trial ended on {{.ExpiresAt}}.{{else}}Your free trial ends on {{.ExpiresAt}} ({{.DaysRemaining}} day{{if ne .DaysRemaining 1}}s{{end}} left).{{end}}
Trial key: {{.LicenseKey}}
{{if .UpgradeURL}}
Get a license: {{.UpgradeURL}}
{{end}}`

const reminderSMS = `{{if .Expired}}[Planner] Your trial has ended.{{else}}[Planner] {{.DaysRemaining}} day{{if ne .DaysRemaining 1}}s{{end}} left in your trial.{{end}}{{if .UpgradeURL}} {{.UpgradeURL}}{{end}}`

// TemplateRenderer renders trial reminders for every channel.
type TemplateRenderer struct {
	html *htmltemplate.Template
	text *template.Template
	sms  *template.Template
}

func NewTemplateRenderer() (*TemplateRenderer, error) {
	html, err := htmltemplate.New("reminder_html").Parse(reminderHTML)
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	text, err := template.New("reminder_text").Parse(reminderText)
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	sms, err := template.New("reminder_sms").Parse(reminderSMS)
	if err != nil {
		return nil, fmt.Errorf("parse sms template: %w", err)
	}
	return &TemplateRenderer{html: html, text: text, sms: sms}, nil
}

type reminderView struct {
	PlannerName   string
	LicenseKey    string
	DaysRemaining int
	ExpiresAt     string
	MaxStudents   int
	UpgradeURL    string
	Expired       bool
}

func (r *TemplateRenderer) Render(kind domain.NotificationType, data ports.ReminderData) (ports.RenderedReminder, error) {
	subject, ok := reminderSubjects[kind]
	if !ok {
		return ports.RenderedReminder{}, fmt.Errorf("%w: unknown notification type %q", domain.ErrInvalidInput, kind)
	}
	view := reminderView{
		PlannerName:   data.PlannerName,
		LicenseKey:    data.LicenseKey,
		DaysRemaining: data.DaysRemaining,
		ExpiresAt:     data.ExpiresAt.UTC().Format("January 2, 2006"),
		MaxStudents:   data.MaxStudents,
		UpgradeURL:    data.UpgradeURL,
		Expired:       kind == domain.NotifyExpired,
	}

	var html, text, sms bytes.Buffer
	if err := r.html.Execute(&html, view); err != nil {
		return ports.RenderedReminder{}, fmt.Errorf("render html: %w", err)
	}
	if err := r.text.Execute(&text, view); err != nil {
		return ports.RenderedReminder{}, fmt.Errorf("render text: %w", err)
	}
	if err := r.sms.Execute(&sms, view); err != nil {
		return ports.RenderedReminder{}, fmt.Errorf("render sms: %w", err)
	}
	return ports.RenderedReminder{
		Subject: subject,
		HTML:    html.String(),
		Text:    text.String(),
		SMS:     sms.String(),
	}, nil
}
