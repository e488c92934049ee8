package mailer

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailhaven/core/internal/database/models"
)

var (
	// ErrConnectionFailed indicates the SMTP connection could not be established
	ErrConnectionFailed = errors.New("SMTP connection failed")
	// ErrSendFailed indicates the transport rejected the message; no record
	// is persisted when this is returned
	ErrSendFailed = errors.New("email send failed")
)

const connectionTimeout = 10 * time.Second

// loginAuth implements smtp.Auth for LOGIN authentication, which several
// providers require instead of PLAIN
type loginAuth struct {
	username, password string
}

func newLoginAuth(username, password string) smtp.Auth {
	return &loginAuth{username, password}
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte{}, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch string(fromServer) {
		case "Username:", "username:":
			return []byte(a.username), nil
		case "Password:", "password:":
			return []byte(a.password), nil
		default:
			// Some servers send base64 encoded prompts
			decoded, err := base64.StdEncoding.DecodeString(string(fromServer))
			if err == nil {
				switch strings.ToLower(strings.TrimSpace(string(decoded))) {
				case "username:", "username":
					return []byte(a.username), nil
				case "password:", "password":
					return []byte(a.password), nil
				}
			}
			return nil, fmt.Errorf("unexpected server challenge: %s", fromServer)
		}
	}
	return nil, nil
}

// Mailer sends outbound messages over SMTP using a credential's settings
type Mailer struct{}

// NewMailer creates a new Mailer instance
func NewMailer() *Mailer {
	return &Mailer{}
}

// Send transmits a plain-text message and returns the generated external
// message id. Any transport failure is reported as ErrSendFailed (wrapping
// the cause) and nothing is persisted by this layer.
func (m *Mailer) Send(credential *models.Credential, password string, to []string, subject, body string) (string, error) {
	messageID := generateMessageID(credential.Email)
	content := buildContent(credential, to, subject, body, messageID)

	if err := m.sendViaSMTP(credential, password, to, content); err != nil {
		return "", err
	}
	return messageID, nil
}

// buildContent builds the RFC 5322 message text
func buildContent(credential *models.Credential, to []string, subject, body, messageID string) string {
	var buf bytes.Buffer

	from := credential.Email
	if credential.DisplayName != "" {
		from = fmt.Sprintf("%s <%s>", credential.DisplayName, credential.Email)
	}

	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")

	return buf.String()
}

// sendViaSMTP delivers the message via SMTPS or SMTP+STARTTLS
func (m *Mailer) sendViaSMTP(credential *models.Credential, password string, recipients []string, content string) error {
	addr := fmt.Sprintf("%s:%d", credential.SMTPHost, credential.SMTPPort)

	// Several providers only accept LOGIN auth
	useLoginAuth := strings.Contains(credential.SMTPHost, "qq.com") ||
		strings.Contains(credential.SMTPHost, "163.com") ||
		strings.Contains(credential.SMTPHost, "126.com") ||
		strings.Contains(credential.SMTPHost, "aliyun.com")

	var client *smtp.Client
	if credential.UseSSL {
		tlsConfig := &tls.Config{ServerName: credential.SMTPHost}
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: connectionTimeout}, "tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		client, err = smtp.NewClient(conn, credential.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
	} else {
		var err error
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			tlsConfig := &tls.Config{ServerName: credential.SMTPHost}
			if err := client.StartTLS(tlsConfig); err != nil {
				// Continue without TLS if STARTTLS fails
			}
		}
	}
	defer client.Close()

	// Try the preferred mechanism first, fall back to the other
	var auth smtp.Auth
	if useLoginAuth {
		auth = newLoginAuth(credential.Username, password)
	} else {
		auth = smtp.PlainAuth("", credential.Username, password, credential.SMTPHost)
	}
	if err := client.Auth(auth); err != nil {
		if useLoginAuth {
			auth = smtp.PlainAuth("", credential.Username, password, credential.SMTPHost)
		} else {
			auth = newLoginAuth(credential.Username, password)
		}
		if err2 := client.Auth(auth); err2 != nil {
			return fmt.Errorf("%w: authentication failed: %v", ErrSendFailed, err)
		}
	}

	if err := client.Mail(credential.Email); err != nil {
		return fmt.Errorf("%w: MAIL FROM failed: %v", ErrSendFailed, err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("%w: RCPT TO failed for %s: %v", ErrSendFailed, rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%w: DATA failed: %v", ErrSendFailed, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return fmt.Errorf("%w: write failed: %v", ErrSendFailed, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: close failed: %v", ErrSendFailed, err)
	}

	// Some servers return an odd response to QUIT after a successful send
	client.Quit()
	return nil
}

// generateMessageID generates a unique message id within the sender's domain
func generateMessageID(email string) string {
	domain := "localhost"
	if parts := strings.Split(email, "@"); len(parts) == 2 {
		domain = parts[1]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
