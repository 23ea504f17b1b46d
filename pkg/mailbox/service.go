// Package mailbox fetches unseen messages over IMAP. Consumption is
// committed at fetch time: every returned message is flagged \Seen before
// this package hands it to the caller, so the system never relies on
// redelivery for retry.
package mailbox

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"

	"schedbot-backend/internal/negotiation/domain"
)

// Service polls one IMAP inbox for unseen mail
type Service struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

// NewService creates an IMAP mailbox service
func NewService(host string, port int, username, password string) *Service {
	return &Service{
		host:     host,
		port:     port,
		username: username,
		password: password,
		timeout:  30 * time.Second,
	}
}

// FetchUnseen connects, retrieves all unseen messages from INBOX, marks them
// read, and returns them parsed. A fresh connection per poll keeps the
// service stateless across ticks.
func (s *Service) FetchUnseen(ctx context.Context) ([]domain.InboundMessage, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", s.host, s.port), nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	c.Timeout = s.timeout
	defer c.Logout()

	if err := c.Login(s.username, s.password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("imap select: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var fetched []domain.InboundMessage
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		parsed, err := parseMessage(body, msg.InternalDate)
		if err != nil {
			log.Printf("[Mailbox] skipping unparseable message: %v", err)
			continue
		}
		fetched = append(fetched, *parsed)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	// Commit consumption: flag everything we fetched as read.
	flagOp := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, flagOp, []interface{}{imap.SeenFlag}, nil); err != nil {
		return nil, fmt.Errorf("imap store seen: %w", err)
	}

	log.Printf("[Mailbox] fetched %d unseen messages", len(fetched))
	return fetched, nil
}

// parseMessage turns a raw RFC822 message into an InboundMessage
func parseMessage(r io.Reader, internalDate time.Time) (*domain.InboundMessage, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("mime parse: %w", err)
	}

	messageID := normalizeID(env.GetHeader("Message-Id"))
	if messageID == "" {
		return nil, fmt.Errorf("message has no Message-Id header")
	}

	timestamp := internalDate
	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		timestamp = date
	}

	sender := ""
	if addrs, err := env.AddressList("From"); err == nil && len(addrs) > 0 {
		sender = strings.ToLower(addrs[0].Address)
	}

	return &domain.InboundMessage{
		MessageID:  messageID,
		Sender:     sender,
		To:         addressList(env, "To"),
		Cc:         addressList(env, "Cc"),
		Bcc:        addressList(env, "Bcc"),
		Subject:    env.GetHeader("Subject"),
		Body:       env.Text,
		Timestamp:  timestamp,
		InReplyTo:  normalizeID(env.GetHeader("In-Reply-To")),
		References: splitReferences(env.GetHeader("References")),
	}, nil
}

func addressList(env *enmime.Envelope, header string) []string {
	addrs, err := env.AddressList(header)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, strings.ToLower(a.Address))
	}
	return out
}

// normalizeID strips the angle brackets around a message-id
func normalizeID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// splitReferences parses the References header into ordered message-ids,
// oldest first, as the header lists them.
func splitReferences(header string) []string {
	var refs []string
	for _, field := range strings.Fields(header) {
		if id := normalizeID(field); id != "" {
			refs = append(refs, id)
		}
	}
	return refs
}
