// Package notify sends reminder e-mails about installments coming due.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"gestao/internal/services"
)

// SMTPConfig holds the outgoing mail settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// Mailer handles sending digests via SMTP
type Mailer struct {
	cfg  SMTPConfig
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendDigest mails d to every recipient. An empty digest is not sent.
func (m *Mailer) SendDigest(ctx context.Context, d services.Digest) error {
	if d.Empty() {
		slog.InfoContext(ctx, "Nothing due, skipping reminder", "as_of", d.AsOf.String())
		return nil
	}
	if len(m.cfg.Recipients) == 0 {
		return errors.New("no reminder recipients configured")
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = m.cfg.Recipients
	e.Subject, e.Text = RenderDigest(d)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(e, addr, auth); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	slog.InfoContext(ctx, "Reminder sent",
		"recipients", len(m.cfg.Recipients),
		"overdue", len(d.Overdue),
		"upcoming", len(d.Upcoming))
	return nil
}

// RenderDigest returns the subject and plain-text body of a reminder.
func RenderDigest(d services.Digest) (string, []byte) {
	subject := fmt.Sprintf("Parcelas a receber: %d vencidas, %d próximas", len(d.Overdue), len(d.Upcoming))

	var b strings.Builder
	fmt.Fprintf(&b, "Resumo de %s\n", d.AsOf.String())

	if len(d.Overdue) > 0 {
		fmt.Fprintf(&b, "\nVencidas (total R$ %s):\n", d.TotalOverdue)
		writeItems(&b, d.Overdue)
	}
	if len(d.Upcoming) > 0 {
		fmt.Fprintf(&b, "\nVencendo nos próximos %d dias (total R$ %s):\n", d.LookaheadDays, d.TotalUpcoming)
		writeItems(&b, d.Upcoming)
	}

	fmt.Fprintf(&b, "\nMês %s: a receber R$ %s, baixado R$ %s\n",
		d.Month.Key, d.Month.TotalPending, d.Month.TotalSettled)
	return subject, []byte(b.String())
}

func writeItems(b *strings.Builder, items []services.BucketItem) {
	for _, it := range items {
		fmt.Fprintf(b, "- %s  pedido %s (%s)  parcela %s  R$ %s\n",
			it.DueDate.String(), it.OrderNumber, it.CustomerName, it.Position, it.Value)
	}
}
