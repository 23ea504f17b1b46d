// Package smtp sends threaded plain-text replies. Every outbound message
// carries In-Reply-To and References headers so later guest replies resolve
// back to the right negotiation.
package smtp

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
)

// Mail is one outbound reply
type Mail struct {
	To         []string
	Subject    string
	Body       string
	InReplyTo  string   // message-id being answered, without angle brackets
	References []string // full chain, oldest first, without angle brackets
}

// Sender delivers mail through one SMTP submission endpoint
type Sender struct {
	host     string
	port     int
	username string
	password string
	fromName string
}

// NewSender creates an SMTP sender
func NewSender(host string, port int, username, password, fromName string) *Sender {
	return &Sender{host: host, port: port, username: username, password: password, fromName: fromName}
}

// Send delivers the mail and returns the generated message-id (without
// angle brackets) for chain continuation.
func (s *Sender) Send(ctx context.Context, m Mail) (string, error) {
	if len(m.To) == 0 {
		return "", fmt.Errorf("smtp: no recipients")
	}

	messageID := newMessageID(s.username)
	raw := buildMessage(s.username, s.fromName, messageID, m)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := sasl.NewPlainClient("", s.username, s.password)
	if err := gosmtp.SendMail(addr, auth, s.username, m.To, strings.NewReader(raw)); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}

	log.Printf("[SMTP] sent %q to %s", ReplySubject(m.Subject, m.InReplyTo != ""), strings.Join(m.To, ", "))
	return messageID, nil
}

// ReplySubject prefixes "Re: " exactly once when replying
func ReplySubject(subject string, isReply bool) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "Meeting Coordination"
	}
	if !isReply || strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// buildMessage assembles the raw RFC822 message
func buildMessage(from, fromName, messageID string, m Mail) string {
	var b strings.Builder
	writeHeader := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	writeHeader("From", fmt.Sprintf("%s <%s>", fromName, from))
	writeHeader("To", strings.Join(m.To, ", "))
	writeHeader("Subject", ReplySubject(m.Subject, m.InReplyTo != ""))
	writeHeader("Date", time.Now().UTC().Format(time.RFC1123Z))
	writeHeader("Message-ID", "<"+messageID+">")
	if m.InReplyTo != "" {
		writeHeader("In-Reply-To", "<"+m.InReplyTo+">")
		writeHeader("References", formatReferences(m.References, m.InReplyTo))
	}
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.String()
}

// formatReferences appends the replied-to id to the chain if not already last
func formatReferences(refs []string, inReplyTo string) string {
	chain := make([]string, 0, len(refs)+1)
	for _, r := range refs {
		if r != "" && r != inReplyTo {
			chain = append(chain, "<"+r+">")
		}
	}
	chain = append(chain, "<"+inReplyTo+">")
	return strings.Join(chain, " ")
}

// newMessageID generates a unique message-id scoped to the sender's domain
func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at != -1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("%s@%s", uuid.New().String(), domain)
}
