package email

import (
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"
)

// Config holds the SMTP settings, loaded from the environment with
// caarlos0/env in main.
type Config struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASS"`
	Sender   string `env:"SMTP_SENDER"`
}

func (c Config) Configured() bool {
	return c.Host != "" && c.Sender != ""
}

type Sender interface {
	SendVerificationEmail(address, code, name string) error

	SendInviteEmail(address, name, companyName, tempPassword string) error
}

type SmtpSender struct {
	config Config
	auth   smtp.Auth
}

const dialTimeout = 10 * time.Second

func NewSmtpSender(config Config) *SmtpSender {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)
	return &SmtpSender{config: config, auth: auth}
}

func (s *SmtpSender) send(recipient, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	message := []byte(
		"To: " + recipient + "\r\n" +
			"From: " + s.config.Sender + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"\r\n" +
			body + "\r\n")

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("smtp dial error: %w", err)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client error: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("AUTH"); ok {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("smtp auth error: %w", err)
		}
	}

	if err := client.Mail(s.config.Sender); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	if _, err := writer.Write(message); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}

	return client.Quit()
}

func (s *SmtpSender) SendVerificationEmail(address, code, name string) error {
	subject := "Verify your PlayerLab email address"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour verification code is: %s\n\nEnter it in the app to verify your email address.\n\nThe PlayerLab Team",
		name, code,
	)
	return s.send(address, subject, body)
}

func (s *SmtpSender) SendInviteEmail(address, name, companyName, tempPassword string) error {
	subject := fmt.Sprintf("You've been invited to join %s on PlayerLab", companyName)
	body := fmt.Sprintf(
		"Hi %s,\n\nAn account has been created for you at %s.\n\nSign in with this email address and the temporary password below, then complete your profile setup:\n\n%s\n\nThe PlayerLab Team",
		name, companyName, tempPassword,
	)
	return s.send(address, subject, body)
}

// LogSender is used when no SMTP server is configured. Messages are logged
// instead of delivered so local development does not require a mail server.
type LogSender struct{}

func (LogSender) SendVerificationEmail(address, code, name string) error {
	slog.Info("email delivery disabled, logging verification code", "address", address, "code", code)
	return nil
}

func (LogSender) SendInviteEmail(address, name, companyName, tempPassword string) error {
	slog.Info("email delivery disabled, logging invite", "address", address, "company", companyName)
	return nil
}
