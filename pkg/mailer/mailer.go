package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"time"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Mailer handles sending emails
type Mailer struct {
	config Config
}

func New(cfg Config) *Mailer {
	return &Mailer{config: cfg}
}

// SendGroupInvitation emails a member that they were added to a group chat
// for a dining event
func (m *Mailer) SendGroupInvitation(toEmail, toName, inviterName, groupName string, eventStart time.Time) error {
	subject := fmt.Sprintf("DineBuddies - %s added you to %s", inviterName, groupName)

	body, err := m.renderInvitationTemplate(toName, inviterName, groupName, eventStart)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return m.send(toEmail, subject, body)
}

// send delivers an email via SMTP
func (m *Mailer) send(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)

	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=\"utf-8\"",
	}

	var msg bytes.Buffer
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	err := smtp.SendMail(addr, auth, m.config.From, []string{to}, msg.Bytes())
	if err != nil {
		log.Printf("❌ Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("📧 Email sent to %s: %s", to, subject)
	return nil
}

// renderInvitationTemplate returns the HTML body for a group invitation email
func (m *Mailer) renderInvitationTemplate(name, inviterName, groupName string, eventStart time.Time) (string, error) {
	tmpl := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#fdf6f0;font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;">
    <div style="max-width:500px;margin:40px auto;background:#fff;border-radius:16px;overflow:hidden;border:1px solid rgba(234,88,12,0.2);">
        <!-- Header -->
        <div style="background:linear-gradient(135deg,#f97316 0%,#ea580c 100%);padding:32px;text-align:center;">
            <h1 style="color:#fff;margin:0;font-size:28px;font-weight:700;">🍽️ DineBuddies</h1>
            <p style="color:rgba(255,255,255,0.85);margin:8px 0 0;font-size:14px;">Group Invitation</p>
        </div>

        <!-- Body -->
        <div style="padding:32px;">
            <p style="color:#1e293b;font-size:16px;line-height:1.6;margin:0 0 24px;">
                Hi <strong style="color:#ea580c;">{{.Name}}</strong>,
            </p>
            <p style="color:#475569;font-size:14px;line-height:1.6;margin:0 0 24px;">
                <strong>{{.InviterName}}</strong> added you to the group chat:
            </p>

            <div style="background:rgba(249,115,22,0.08);border:2px dashed rgba(249,115,22,0.35);border-radius:12px;padding:24px;text-align:center;margin:0 0 24px;">
                <span style="font-size:22px;font-weight:700;color:#c2410c;">{{.GroupName}}</span>
                <p style="color:#64748b;font-size:13px;margin:12px 0 0;">Dining on <strong>{{.EventStart}}</strong></p>
            </div>

            <p style="color:#64748b;font-size:13px;line-height:1.5;margin:0 0 8px;">
                The group chat stays open until 24 hours after the meal starts. Jump in and say hello!
            </p>
        </div>

        <!-- Footer -->
        <div style="padding:16px 32px;border-top:1px solid #f1f5f9;text-align:center;">
            <p style="color:#94a3b8;font-size:12px;margin:0;">If you don't recognize this invitation you can ignore this email.</p>
        </div>
    </div>
</body>
</html>`

	t, err := template.New("invitation").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = t.Execute(&buf, map[string]string{
		"Name":        name,
		"InviterName": inviterName,
		"GroupName":   groupName,
		"EventStart":  eventStart.Format("Mon, Jan 2 at 3:04 PM"),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
