package mailer

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	mail "gopkg.in/mail.v2"
)

type SMTPMailer struct {
	fromEmail string
	dialer    *mail.Dialer
}

func NewSMTPMailer(host string, port int, username, password, fromEmail string) (*SMTPMailer, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if fromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	dialer := mail.NewDialer(host, port, username, password)

	return &SMTPMailer{
		fromEmail: fromEmail,
		dialer:    dialer,
	}, nil
}

// Send renders the named template (subject and body blocks) and delivers the
// message, retrying a few times before giving up. It returns the number of
// attempts made.
func (m *SMTPMailer) Send(templateFile, username, email string, data any) (int, error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return -1, err
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return -1, err
	}

	body := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(body, "body", data); err != nil {
		return -1, err
	}

	message := mail.NewMessage()
	message.SetAddressHeader("From", m.fromEmail, FromName)
	message.SetHeader("To", email)
	message.SetHeader("Subject", subject.String())
	message.SetBody("text/html", body.String())

	var retryErr error
	for i := 0; i < maxRetries; i++ {
		retryErr = m.dialer.DialAndSend(message)
		if retryErr == nil {
			return i + 1, nil
		}
		time.Sleep(time.Second * time.Duration(i+1))
	}

	return maxRetries, fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, retryErr)
}
