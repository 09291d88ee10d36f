package mailSender

import (
	"context"
	"fmt"
	"html"

	"lockify/internal/config"
	"lockify/internal/models"

	"gopkg.in/gomail.v2"
)

const (
	senderName          = "Lockify"
	verificationSubject = "Please Verify Your Email"
)

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

func New(cfg config.Email) *Mailer {
	return &Mailer{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
	}
}

// SendMessage delivers msg over SMTP. It lets the mailer act as the
// verification publisher when no broker is configured.
func (m *Mailer) SendMessage(ctx context.Context, msg models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.Send(msg)
}

func (m *Mailer) Send(msg models.Message) error {
	const op = "mailSender.Send"

	mail, err := m.compose(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// gomail switches to implicit TLS on port 465.
	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Mailer) compose(msg models.Message) (*gomail.Message, error) {
	if msg.Email == "" || msg.Link == "" {
		return nil, fmt.Errorf("incomplete message for purpose %q", msg.Purpose)
	}

	link := html.EscapeString(msg.Link)

	mail := gomail.NewMessage()
	mail.SetAddressHeader("From", m.Username, senderName)
	mail.SetHeader("To", msg.Email)
	mail.SetHeader("Subject", verificationSubject)
	mail.SetBody("text/plain", "Please open the link to verify your email:\n"+msg.Link)
	mail.AddAlternative("text/html",
		`<p>Please click the link to verify your email:</p>`+
			`<a href="`+link+`">`+link+`</a>`,
	)

	return mail, nil
}
