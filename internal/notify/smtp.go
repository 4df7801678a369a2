package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"worklog/internal/models"
)

// SMTPConfig addresses the mail relay and the two notice recipients.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Reviewer receives new submissions, Records receives approvals.
	Reviewer string
	Records  string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails HTML notices through an SMTP relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send sendFunc
}

// NewSMTPNotifier validates cfg and returns a notifier using net/smtp.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Reviewer == "" || cfg.Records == "" {
		return nil, fmt.Errorf("reviewer and records addresses are required")
	}
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}, nil
}

var reviewTemplate = template.Must(template.New("review").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px;">
<h2>New Task Submitted</h2>
<table>
<tr><td>Employee:</td><td>{{.AuthorName}}</td></tr>
<tr><td>Project:</td><td>{{.Project}}</td></tr>
<tr><td>Task:</td><td>{{if .Description}}{{.Description}}{{else}}N/A{{end}}</td></tr>
<tr><td>Time Spent:</td><td>{{if .TimeSpent}}{{.TimeSpent}} hours{{else}}N/A{{end}}</td></tr>
<tr><td>Status:</td><td>{{if .Outcome}}Completed{{else}}Pending{{end}}</td></tr>
{{- if .PendingReason}}
<tr><td>Pending Reason:</td><td>{{.PendingReason}}</td></tr>
{{- end}}
{{- if .Deadline}}
<tr><td>Deadline:</td><td>{{.Deadline}}</td></tr>
{{- end}}
</table>
<p>This task needs your approval. Please review it in the Task Manager dashboard.</p>
</div>`))

var approvalTemplate = template.Must(template.New("approval").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px;">
<h2>Task Approved</h2>
<table>
<tr><td>Employee:</td><td>{{.Task.AuthorName}}</td></tr>
<tr><td>Project:</td><td>{{.Task.Project}}</td></tr>
<tr><td>Task:</td><td>{{if .Task.Description}}{{.Task.Description}}{{else}}N/A{{end}}</td></tr>
<tr><td>Time Spent:</td><td>{{if .Task.TimeSpent}}{{.Task.TimeSpent}}{{else}}N/A{{end}} hours</td></tr>
<tr><td>Approved By:</td><td>{{.Approver}}</td></tr>
</table>
<p>This task has been approved and recorded.</p>
</div>`))

type reviewView struct {
	models.Task
	Deadline string
}

// NotifyReviewQueue mails the submission to the reviewer address.
func (n *SMTPNotifier) NotifyReviewQueue(ctx context.Context, task models.Task) error {
	view := reviewView{Task: task}
	if task.Deadline != nil {
		view.Deadline = *task.Deadline
	}
	var body bytes.Buffer
	if err := reviewTemplate.Execute(&body, view); err != nil {
		return fmt.Errorf("render review notice: %w", err)
	}
	return n.deliver(ctx, n.cfg.Reviewer, "New Task Submitted - "+task.Project, body.Bytes())
}

// NotifyApprovalRecorded mails the sign-off to the records address.
func (n *SMTPNotifier) NotifyApprovalRecorded(ctx context.Context, task models.Task, approver string) error {
	var body bytes.Buffer
	err := approvalTemplate.Execute(&body, struct {
		Task     models.Task
		Approver string
	}{task, approver})
	if err != nil {
		return fmt.Errorf("render approval notice: %w", err)
	}
	return n.deliver(ctx, n.cfg.Records, "Task Approved - "+task.Project, body.Bytes())
}

func (n *SMTPNotifier) deliver(ctx context.Context, to, subject string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: \"Task Manager\" <%s>\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerSafe(subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.send(addr, auth, n.cfg.From, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
