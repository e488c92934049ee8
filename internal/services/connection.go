package services

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

const connectionTimeout = 10 * time.Second

// ConnectionTestResult reports the outcome of probing one server
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CredentialTestResult reports both probes for a credential
type CredentialTestResult struct {
	IMAP ConnectionTestResult `json:"imap"`
	SMTP ConnectionTestResult `json:"smtp"`
}

// Passed returns whether both probes authenticated
func (r CredentialTestResult) Passed() bool {
	return r.IMAP.Success && r.SMTP.Success
}

// TestConnection probes a credential's IMAP and SMTP servers with its stored
// password. Probe failures are results, not errors; an error means the
// credential itself could not be loaded or decrypted.
func (s *CredentialService) TestConnection(id, userID uint) (*CredentialTestResult, error) {
	credential, err := s.GetCredentialByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}
	password, err := s.decryptPassword(credential.PasswordEncrypted)
	if err != nil {
		return nil, err
	}

	result := &CredentialTestResult{
		IMAP: testIMAPConnection(buildAddress(credential.IMAPHost, credential.IMAPPort), credential.Username, password, credential.UseSSL),
		SMTP: testSMTPConnection(buildAddress(credential.SMTPHost, credential.SMTPPort), credential.Username, password, credential.UseSSL),
	}
	return result, nil
}

// buildAddress builds a host:port address string
func buildAddress(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// testIMAPConnection dials the IMAP server and attempts a LOGIN
func testIMAPConnection(addr, username, password string, useSSL bool) ConnectionTestResult {
	var conn net.Conn
	var err error

	dialer := &net.Dialer{Timeout: connectionTimeout}

	if useSSL {
		host, _, _ := net.SplitHostPort(addr)
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host})
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to connect to IMAP server: %v", err),
		}
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(connectionTimeout))

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to read IMAP greeting: %v", err),
		}
	}

	greeting := string(buf[:n])
	if !strings.HasPrefix(greeting, "* OK") {
		return ConnectionTestResult{
			Success: false,
			Message: "Invalid IMAP server response",
		}
	}

	loginCmd := fmt.Sprintf("A001 LOGIN %q %q\r\n", username, password)
	if _, err = conn.Write([]byte(loginCmd)); err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to send login command: %v", err),
		}
	}

	conn.SetReadDeadline(time.Now().Add(connectionTimeout))
	n, err = conn.Read(buf)
	if err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to read login response: %v", err),
		}
	}

	response := string(buf[:n])
	if strings.Contains(response, "A001 OK") {
		conn.Write([]byte("A002 LOGOUT\r\n"))
		return ConnectionTestResult{
			Success: true,
			Message: "IMAP connection and authentication successful",
		}
	}

	return ConnectionTestResult{
		Success: false,
		Message: "IMAP authentication failed: " + strings.TrimSpace(response),
	}
}

// testSMTPConnection dials the SMTP server and attempts authentication
func testSMTPConnection(addr, username, password string, useSSL bool) ConnectionTestResult {
	var client *smtp.Client
	var err error

	host, _, _ := net.SplitHostPort(addr)

	if useSSL {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: connectionTimeout}, "tcp", addr, &tls.Config{ServerName: host})
		if err != nil {
			return ConnectionTestResult{
				Success: false,
				Message: fmt.Sprintf("Failed to connect to SMTP server: %v", err),
			}
		}
		client, err = smtp.NewClient(conn, host)
		if err != nil {
			conn.Close()
			return ConnectionTestResult{
				Success: false,
				Message: fmt.Sprintf("Failed to create SMTP client: %v", err),
			}
		}
	} else {
		client, err = smtp.Dial(addr)
		if err != nil {
			return ConnectionTestResult{
				Success: false,
				Message: fmt.Sprintf("Failed to connect to SMTP server: %v", err),
			}
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
				// Continue without TLS if STARTTLS fails
			}
		}
	}
	defer client.Close()

	auth := smtp.PlainAuth("", username, password, host)
	if err := client.Auth(auth); err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("SMTP authentication failed: %v", err),
		}
	}

	return ConnectionTestResult{
		Success: true,
		Message: "SMTP connection and authentication successful",
	}
}
