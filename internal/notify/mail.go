package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wneessen/go-mail"
)

const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 465
	alertSubject    = "Accident Detected Alert"
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From defaults to Username.
	From string
}

// Mailer sends alerts by SMTP over implicit TLS, with the evidence clip
// attached when it exists.
type Mailer struct {
	cfg MailConfig
}

func NewMailer(cfg MailConfig) (*Mailer, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("mail credentials not configured")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Mailer{cfg: cfg}, nil
}

func (m *Mailer) Notify(ctx context.Context, alert Alert) error {
	msg, err := m.Message(alert)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send alert to %s: %w", alert.Recipient, err)
	}
	return nil
}

// Message builds the alert mail without sending it.
func (m *Mailer) Message(alert Alert) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("bad sender address: %w", err)
	}
	if err := msg.To(alert.Recipient); err != nil {
		return nil, fmt.Errorf("bad recipient address: %w", err)
	}
	msg.Subject(alertSubject)
	msg.SetBodyString(mail.TypeTextPlain, alertBody(alert))

	if alert.ClipPath != "" {
		if _, err := os.Stat(alert.ClipPath); err == nil {
			msg.AttachFile(alert.ClipPath,
				mail.WithFileName(filepath.Base(alert.ClipPath)),
				mail.WithFileContentType(mail.ContentType("video/mp4")))
		}
	}
	return msg, nil
}

func alertBody(alert Alert) string {
	return fmt.Sprintf("Accident Detected!\n\nSeverity       : %s\nVehicles       : %d\nImpact Score   : %d\n",
		alert.Severity, alert.Vehicles, alert.Impact)
}
