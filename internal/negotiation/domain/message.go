package domain

import "time"

// InboundMessage is an immutable snapshot of one fetched email. It is never
// persisted as-is; only its message-id lands in the thread index.
type InboundMessage struct {
	MessageID  string
	Sender     string
	To         []string
	Cc         []string
	Bcc        []string
	Subject    string
	Body       string
	Timestamp  time.Time
	InReplyTo  string
	References []string
}

// ReplyChain returns the reply-chain candidates in resolution order:
// In-Reply-To first, then the References header walked newest to oldest.
func (m *InboundMessage) ReplyChain() []string {
	chain := make([]string, 0, len(m.References)+1)
	if m.InReplyTo != "" {
		chain = append(chain, m.InReplyTo)
	}
	for i := len(m.References) - 1; i >= 0; i-- {
		if m.References[i] != "" && m.References[i] != m.InReplyTo {
			chain = append(chain, m.References[i])
		}
	}
	return chain
}

// ThreadMessage maps one consumed message-id to the negotiation owning its
// thread. It doubles as the dedup guard: a message-id already present here
// has been consumed and must not be handled again. NegotiationID is empty
// for messages that were fetched but classified as irrelevant.
type ThreadMessage struct {
	MessageID     string    `json:"message_id" gorm:"primaryKey"`
	NegotiationID string    `json:"negotiation_id" gorm:"index"`
	SeenAt        time.Time `json:"seen_at"`
}

// TableName specifies the table name for GORM
func (ThreadMessage) TableName() string {
	return "thread_messages"
}
