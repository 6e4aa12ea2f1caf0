package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

// MailConfig configures SMTP delivery. Delivery is disabled by default:
// decisions are still evaluated and recorded, only the send is skipped.
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Mailer delivers plain-text notification mail over SMTP.
type Mailer struct {
	config MailConfig
	logger *logrus.Logger
}

func NewMailer(config MailConfig, logger *logrus.Logger) *Mailer {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Port == 0 {
		config.Port = 587
	}
	return &Mailer{config: config, logger: logger}
}

// Send delivers one message to the recipients. When delivery is disabled it
// logs the would-be send and reports success, so the audit history still
// records the decision.
func (m *Mailer) Send(to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	if !m.config.Enabled {
		m.logger.Infof("Mail delivery disabled, would send %q to %s", subject, strings.Join(to, ", "))
		return nil
	}
	if m.config.Host == "" || m.config.From == "" {
		return fmt.Errorf("mail delivery enabled but host/from not configured")
	}

	msg := strings.Builder{}
	msg.WriteString("From: " + m.config.From + "\r\n")
	msg.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}
	if err := smtp.SendMail(addr, auth, m.config.From, to, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}
	m.logger.Infof("Sent %q to %d recipient(s)", subject, len(to))
	return nil
}
