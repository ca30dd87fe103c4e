package notify

import (
	"context"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
)

// EmailSender шлёт уведомления письмом через SendGrid.
type EmailSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

func NewEmailSender(apiKey, appName, fromEmail string) *EmailSender {
	return &EmailSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(appName, fromEmail),
	}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if msg.To == nil || msg.To.Email == "" {
		return nil
	}

	// клиент v3.7 не принимает ctx, поэтому проверяем дедлайн до отправки
	if err := ctx.Err(); err != nil {
		return apperr.Upstream(err, "sendgrid: send %s to user %d", msg.Kind, msg.To.ID)
	}

	to := sgmail.NewEmail(msg.To.DisplayName, msg.To.Email)
	m := sgmail.NewSingleEmail(s.from, msg.Subject, to, msg.Text, "")

	res, err := s.client.Send(m)
	if err != nil {
		return apperr.Upstream(err, "sendgrid: send %s to user %d", msg.Kind, msg.To.ID)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return apperr.Upstream(nil, "sendgrid: send %s to user %d: status %d", msg.Kind, msg.To.ID, res.StatusCode)
	}
	return nil
}
