package email

import (
	"fmt"
	"net/smtp"

	"prism.app/licensing/internal/logger"
)

// Sender delivers license keys over SMTP. The authority works fine without
// one configured; create responses always carry the plaintext key.
type Sender struct {
	Host string
	Port string
	User string
	Pass string
}

func (s *Sender) Send(to, subject, body string) error {
	if s.Host == "" || s.Port == "" || s.User == "" || s.Pass == "" {
		logger.Error("SMTP configuration missing")
		return fmt.Errorf("SMTP configuration missing")
	}

	auth := smtp.PlainAuth("", s.User, s.Pass, s.Host)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", s.User, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)
	return smtp.SendMail(addr, auth, s.User, []string{to}, msg)
}

// SendLicenseKey mails a freshly created key to its owner.
func (s *Sender) SendLicenseKey(to, key, tier string) error {
	body := fmt.Sprintf(
		"Thank you for purchasing Prism %s.\r\n\r\n"+
			"Your license key:\r\n\r\n    %s\r\n\r\n"+
			"Enter it in Prism under Settings > License to activate.\r\n",
		tier, key)

	return s.Send(to, "Your Prism license key", body)
}
