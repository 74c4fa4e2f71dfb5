// Package notify sends outbound email. The only message today is the
// confirmation a user gets after reporting a video.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/wneessen/go-mail"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Mailer sends through an SMTP relay.
type Mailer struct {
	client *mail.Client
	from   string
}

func NewMailer(cfg Config) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: creating smtp client: %w", err)
	}
	return &Mailer{client: client, from: cfg.From}, nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("notify: invalid sender %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("notify: invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: sending to %s: %w", to, err)
	}
	return nil
}

// LogSender stands in for Mailer when no SMTP host is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (l LogSender) Send(_ context.Context, to, subject, _ string) error {
	l.Logger.Info("email not sent, smtp disabled",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}

// ReportConfirmation is the data behind the report confirmation email.
type ReportConfirmation struct {
	Greeting     string // channel name, or the email when the channel has none
	VideoTitle   string
	ChannelTitle string
	ReasonTitle  string
	VideoURL     string
	HistoryURL   string
}

const reportSubject = "We received your report"

var reportTemplate = template.Must(template.New("report").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.5">
  <p>Hi {{.Greeting}},</p>
  <p>Thanks for reporting <a href="{{.VideoURL}}">{{.VideoTitle}}</a>{{if .ChannelTitle}} from {{.ChannelTitle}}{{end}}.</p>
  <p>Reason: <strong>{{.ReasonTitle}}</strong></p>
  <p>Our team will review the video against the community guidelines. You can follow the status of your reports at any time.</p>
  <p><a href="{{.HistoryURL}}"><button style="padding: 10px 16px; background-color: blue; border: none; color: white; font-weight: bold">CHECK REPORT STATUS</button></a></p>
</div>`))

// RenderReportConfirmation returns the subject and HTML body.
func RenderReportConfirmation(data ReportConfirmation) (string, string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("notify: rendering report email: %w", err)
	}
	return reportSubject, buf.String(), nil
}
