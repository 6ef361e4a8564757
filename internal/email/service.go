package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"

	"github.com/redmonkez12/users-auth-api/internal/config"
	"github.com/redmonkez12/users-auth-api/internal/logging"
)

// implicitTLSPort is the SMTPS port, where TLS starts before the SMTP greeting
const implicitTLSPort = "465"

// sendFunc delivers a fully built message
type sendFunc func(ctx context.Context, to string, msg []byte) error

type Service struct {
	cfg  config.EmailConfig
	send sendFunc
}

func NewService(cfg config.EmailConfig) *Service {
	s := &Service{cfg: cfg}
	s.send = s.sendSMTP
	return s
}

// VerificationLink is the URL a user follows to confirm their address
func (s *Service) VerificationLink(token string) string {
	return fmt.Sprintf("%s/api/users/verify/%s", s.cfg.BaseURL, token)
}

// SendVerificationEmail sends an email verification link to the user
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := renderVerificationEmail(s.VerificationLink(token))
	if err != nil {
		logger.Error("failed to render email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	msg := buildMessage(s.cfg.From, toEmail, "Verify email", body)
	if err := s.send(ctx, toEmail, msg); err != nil {
		logger.Error("failed to send verification email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("verification email sent", "email", toEmail)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, body,
	))
}

func (s *Service) sendSMTP(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)

	if s.cfg.SMTPPort != implicitTLSPort {
		return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
	}

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.cfg.SMTPHost, MinVersion: tls.VersionTLS12}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return client.Quit()
}

var verificationTemplate = template.Must(template.New("verification").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 5px;
        }
        .button {
            display: inline-block;
            background-color: #4F46E5;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
    </style>
</head>
<body>
    <div class="content">
        <h2>Verify your email address</h2>
        <p>Click the button below to confirm your email and activate your account.</p>

        <a href="{{.VerificationLink}}" class="button" target="_blank">Click verify email</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #4F46E5;">{{.VerificationLink}}</p>

        <p style="margin-top: 30px;">If you didn't create an account, you can safely ignore this email.</p>
    </div>
</body>
</html>
`))

func renderVerificationEmail(verificationLink string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		VerificationLink string
	}{
		VerificationLink: verificationLink,
	}

	if err := verificationTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
