package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/flowboard/internal/domain"
)

// SMTPNotifier delivers task assignment emails through a plain SMTP relay.
// User and Password are required; without them every send fails closed so
// callers surface a configuration error instead of silently dropping mail.
type SMTPNotifier struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func NewSMTPNotifier(host string, port int, user, password, from string) *SMTPNotifier {
	if host == "" {
		host = "smtp.gmail.com"
	}
	if port == 0 {
		port = 587
	}
	if from == "" {
		from = user
	}
	return &SMTPNotifier{Host: host, Port: port, User: user, Password: password, From: from}
}

func (n *SMTPNotifier) Send(_ context.Context, m domain.Mail) (string, error) {
	if n.User == "" || n.Password == "" {
		return "", errors.New("email credentials are not configured")
	}

	subject := fmt.Sprintf("New Task Assignment: %s", m.TaskName)
	body := fmt.Sprintf(
		"You have been assigned to task %q in flowchart %q by %s.\r\n",
		m.TaskName, m.FlowchartName, m.AssignedBy,
	)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.From, strings.Join(m.ToEmails, ", "), subject, body)

	auth := smtp.PlainAuth("", n.User, n.Password, n.Host)
	addr := fmt.Sprintf("%s:%d", n.Host, n.Port)
	if err := smtp.SendMail(addr, auth, n.From, m.ToEmails, []byte(msg)); err != nil {
		return "", err
	}

	// plain SMTP has no provider message id; synthesize one for the log
	return fmt.Sprintf("smtp-%d", time.Now().UnixNano()), nil
}
