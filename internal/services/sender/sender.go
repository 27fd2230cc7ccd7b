// Package sender отправляет пользователям письма-уведомления о готовности документа.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/lib/smtp"
	"github.com/magabrotheeeer/legal-letters/internal/models"
)

// ErrBadMessage — сообщение из очереди не разбирается или в нём нет адресата.
var ErrBadMessage = errors.New("bad notification message")

// SenderService формирует и отправляет уведомления через SMTP.
type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// SendLetterReady уведомляет владельца, что письмо проверено и PDF доступен.
func (s *SenderService) SendLetterReady(ctx context.Context, body []byte) error {
	const op = "sender.SendLetterReady"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var event models.LetterEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, ErrBadMessage, err)
	}
	if event.Email == "" {
		return fmt.Errorf("%s: %w: empty recipient", op, ErrBadMessage)
	}

	name := event.Name
	if name == "" {
		name = "client"
	}
	subject := "Your legal letter is ready: " + event.Title
	text := fmt.Sprintf("Hello, %s!\n\n"+
		"Your letter \"%s\" has been reviewed by an attorney and is ready.\n"+
		"You can download the PDF from the Letters section of your account.\n\n"+
		"Letter ID: %s\n",
		name, event.Title, event.LetterID)

	if err := s.sendEmail([]string{event.Email}, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("letter ready email sent", slog.String("letter_id", event.LetterID))
	return nil
}

func headerSafe(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	from := s.transport.GetSMTPUser()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + headerSafe(strings.Join(to, ", ")),
		"Subject: " + headerSafe(subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}
	return nil
}
