// Package alert notifies operations when a merchant exhausts its retry
// budget and enters cooldown. It plugs into the outbound pipeline as its
// OnCooldownActivated hook.
package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/jordan-wright/email"
)

var tracer = otel.Tracer("midas/internal/alert")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Options struct {
	Smtp       SmtpConfig `json:"smtp"`
	Recipients []string   `json:"recipients"`
}

type Mailer struct {
	config Options
}

func NewMailer(options Options) Mailer {
	return Mailer{config: options}
}

// CooldownActivated sends the ops notification for a merchant entering
// cooldown. Matches the outbound pipeline's hook signature.
func (m Mailer) CooldownActivated(ctx context.Context, merchant string, lastErr error) {
	ctx, span := tracer.Start(ctx, "alert:CooldownActivated")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Midas <%s>", m.config.Smtp.EmailAddress)
	mail.To = m.config.Recipients
	mail.Subject = fmt.Sprintf("Merchant %s entered cooldown", merchant)

	detail := "no error recorded"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	body := fmt.Sprintf(`The merchant %s exhausted its retry budget at %s and was placed on cooldown.

Last error: %s

Requests to this merchant will answer NOT_SENT until the cooldown expires.`,
		merchant, time.Now().UTC().Format(time.RFC3339), detail)
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", m.config.Smtp.Server, m.config.Smtp.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", m.config.Smtp.EmailAddress, m.config.Smtp.Password, m.config.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send cooldown alert")
	}
}
