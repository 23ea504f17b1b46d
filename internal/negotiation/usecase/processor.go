package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"schedbot-backend/internal/negotiation/domain"
	"schedbot-backend/internal/negotiation/repository"
	"schedbot-backend/pkg/ai"
	"schedbot-backend/pkg/smtp"
)

// Processor drains one batch of inbound mail through the negotiation
// pipeline. Messages are grouped by owning negotiation, groups are fanned out
// to a bounded worker pool, and a per-negotiation mutex guarantees at most
// one worker ever mutates a negotiation at a time.
type Processor struct {
	repo             repository.NegotiationRepository
	resolver         *ThreadResolver
	extractor        *DetailExtractor
	engine           *Engine
	ai               ai.Scheduler
	source           EmailSource
	sender           MailSender
	authorizedSender string
	botAddress       string
	loc              *time.Location
	workerCount      int

	locks sync.Map // negotiation id -> *sync.Mutex
}

// NewProcessor creates a batch processor
func NewProcessor(
	repo repository.NegotiationRepository,
	resolver *ThreadResolver,
	extractor *DetailExtractor,
	engine *Engine,
	model ai.Scheduler,
	source EmailSource,
	sender MailSender,
	authorizedSender, botAddress string,
	loc *time.Location,
	workerCount int,
) *Processor {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Processor{
		repo:             repo,
		resolver:         resolver,
		extractor:        extractor,
		engine:           engine,
		ai:               model,
		source:           source,
		sender:           sender,
		authorizedSender: strings.ToLower(authorizedSender),
		botAddress:       strings.ToLower(botAddress),
		loc:              loc,
		workerCount:      workerCount,
	}
}

// ProcessBatch fetches unseen mail and works it to completion. It returns an
// error only when the batch could not be fetched; per-message failures are
// logged and isolated so one bad thread never stalls the rest.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	var batch []domain.InboundMessage
	err := withRetry(ctx, defaultRetryConfig, func() error {
		var err error
		batch, err = p.source.FetchUnseen(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Timestamp.Before(batch[j].Timestamp)
	})

	groups, order := p.groupByThread(ctx, batch)
	if len(order) == 0 {
		return nil
	}

	jobs := make(chan string, len(order))
	var wg sync.WaitGroup
	for w := 0; w < p.workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				p.processGroup(ctx, key, groups[key])
			}
		}()
	}
	for _, key := range order {
		jobs <- key
	}
	close(jobs)
	wg.Wait()
	return nil
}

// groupByThread resolves each message to its negotiation. Grouping runs
// serially before the pool so a reply arriving in the same batch as the
// message that started its thread still lands in the same group; pending
// tracks ids of batch messages whose thread rows are not indexed yet.
func (p *Processor) groupByThread(ctx context.Context, batch []domain.InboundMessage) (map[string][]domain.InboundMessage, []string) {
	groups := make(map[string][]domain.InboundMessage)
	var order []string
	pending := make(map[string]string) // batch message-id -> group key

	for _, msg := range batch {
		seen, err := p.repo.SeenMessage(ctx, msg.MessageID)
		if err != nil {
			log.Printf("[Processor] dedup check failed for %s: %v", msg.MessageID, err)
			continue
		}
		if seen {
			log.Printf("[Processor] skipping already-consumed message %s", msg.MessageID)
			continue
		}

		key, resolved, err := p.resolver.Resolve(ctx, &msg)
		if err != nil {
			log.Printf("[Processor] thread resolution failed for %s: %v", msg.MessageID, err)
			continue
		}
		if !resolved {
			for _, id := range msg.ReplyChain() {
				if k, ok := pending[id]; ok {
					key, resolved = k, true
					break
				}
			}
		}
		if !resolved {
			// Not a reply to anything we know. Only the authorized sender
			// may open a new negotiation; everything else is consumed and
			// set aside.
			if strings.ToLower(msg.Sender) != p.authorizedSender {
				log.Printf("[Processor] ignoring new thread %s from unauthorized sender %s", msg.MessageID, msg.Sender)
				p.consume(ctx, msg.MessageID, "")
				continue
			}
			key = msg.MessageID
		}

		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], msg)
		pending[msg.MessageID] = key
	}
	return groups, order
}

// processGroup works one negotiation's messages in arrival order under its
// exclusive lock. All of the group's messages are ingested first and the
// engine decides once, so two guests answering in the same batch are weighed
// together instead of the first reply winning outright.
func (p *Processor) processGroup(ctx context.Context, key string, msgs []domain.InboundMessage) {
	muIface, _ := p.locks.LoadOrStore(key, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	n, err := p.repo.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		n = nil
	} else if err != nil {
		log.Printf("[Processor] loading negotiation %s failed: %v", key, err)
		return
	}

	for i := range msgs {
		msg := &msgs[i]
		if n == nil && i == 0 {
			n, err = p.openNegotiation(ctx, msg)
		} else if n == nil {
			// The thread root turned out to be irrelevant; its replies are too.
			p.consume(ctx, msg.MessageID, "")
			continue
		} else {
			err = p.applyMessage(ctx, n, msg)
		}
		if err != nil {
			log.Printf("[Processor] processing %s for negotiation %s failed: %v", msg.MessageID, key, err)
			if !isTransientErr(err) {
				p.markFailed(ctx, n)
			}
			return
		}
	}
	if n == nil {
		return
	}

	decision, err := p.engine.Decide(ctx, n)
	if err == nil {
		err = p.act(ctx, n, decision)
	}
	if err != nil {
		log.Printf("[Processor] deciding negotiation %s failed: %v", key, err)
		if !isTransientErr(err) {
			p.markFailed(ctx, n)
		}
	}
}

// openNegotiation classifies a fresh thread and, if it asks for a meeting,
// opens a negotiation seeded with the initiating message. Returns nil for
// threads that are consumed but irrelevant.
func (p *Processor) openNegotiation(ctx context.Context, msg *domain.InboundMessage) (*domain.Negotiation, error) {
	isScheduling, err := p.ai.ClassifyIntent(ctx, msg.Body)
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}
	if !isScheduling {
		log.Printf("[Processor] message %s is not a scheduling request, ignoring", msg.MessageID)
		p.consume(ctx, msg.MessageID, "")
		return nil, nil
	}

	n := &domain.Negotiation{
		ID:      msg.MessageID,
		Status:  domain.StatusCollecting,
		Subject: msg.Subject,
	}
	if err := p.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create negotiation: %w", err)
	}
	p.consume(ctx, msg.MessageID, n.ID)
	log.Printf("[Processor] opened negotiation %s (%q)", n.ID, n.Subject)

	if err := p.extractor.Apply(ctx, n, msg); err != nil {
		return n, fmt.Errorf("extract details: %w", err)
	}
	return n, nil
}

// applyMessage folds one reply into an ongoing negotiation
func (p *Processor) applyMessage(ctx context.Context, n *domain.Negotiation, msg *domain.InboundMessage) error {
	err := p.repo.AddThreadMessage(ctx, &domain.ThreadMessage{
		MessageID:     msg.MessageID,
		NegotiationID: n.ID,
		SeenAt:        time.Now(),
	})
	if errors.Is(err, repository.ErrDuplicateMessage) {
		log.Printf("[Processor] message %s already processed for negotiation %s", msg.MessageID, n.ID)
		return nil
	}
	if err != nil {
		return err
	}

	if n.Terminal() {
		log.Printf("[Processor] negotiation %s is %s, ignoring late reply %s", n.ID, n.Status, msg.MessageID)
		return nil
	}

	in := ai.ExtractionInput{
		Body:     msg.Body,
		Sender:   msg.Sender,
		To:       msg.To,
		Cc:       msg.Cc,
		Now:      msg.Timestamp,
		Timezone: p.loc.String(),
	}
	reply, err := p.ai.ExtractReply(ctx, in)
	if err != nil {
		return fmt.Errorf("extract reply: %w", err)
	}
	if err := p.extractor.Apply(ctx, n, msg); err != nil {
		return fmt.Errorf("extract details: %w", err)
	}
	return p.engine.Ingest(ctx, n, msg, reply)
}

// act drafts and sends the email a decision calls for, threading it onto the
// negotiation's correspondence. Sends are never retried; a duplicate proposal
// is worse than a missing one.
func (p *Processor) act(ctx context.Context, n *domain.Negotiation, decision Decision) error {
	var kind ai.DraftKind
	switch decision.Kind {
	case ActionNone:
		return nil
	case ActionPropose:
		kind = ai.DraftProposal
	case ActionConfirm:
		kind = ai.DraftConfirmation
	case ActionNoSlots:
		kind = ai.DraftNoSlots
	default:
		return fmt.Errorf("unknown decision kind %q", decision.Kind)
	}

	in := ai.DraftInput{
		Kind:            kind,
		Subject:         n.Subject,
		Title:           n.Title,
		DurationMinutes: n.DurationMinutes,
		Location:        n.Location,
		Timezone:        p.loc.String(),
	}
	for _, s := range decision.Slots {
		in.Slots = append(in.Slots, ai.TimeRange{Start: s.Start, End: s.End})
	}
	if decision.Chosen != nil {
		in.Chosen = &ai.TimeRange{Start: decision.Chosen.Start, End: decision.Chosen.End}
	}

	body, err := p.ai.Draft(ctx, in)
	if err != nil {
		return fmt.Errorf("draft %s: %w", kind, err)
	}

	thread, err := p.repo.Correspondence(ctx, n.ID)
	if err != nil {
		return err
	}
	var inReplyTo string
	var references []string
	if len(thread) > 0 {
		inReplyTo = thread[len(thread)-1].MessageID
		for _, t := range thread[:len(thread)-1] {
			references = append(references, t.MessageID)
		}
	}

	outID, err := p.sender.Send(ctx, smtp.Mail{
		To:         n.Attendees,
		Subject:    n.Subject,
		Body:       body,
		InReplyTo:  inReplyTo,
		References: references,
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	p.consume(ctx, outID, n.ID)
	return nil
}

// consume indexes a message-id so it is never acted on again. Duplicate rows
// are expected on re-delivery and ignored.
func (p *Processor) consume(ctx context.Context, messageID, negotiationID string) {
	err := p.repo.AddThreadMessage(ctx, &domain.ThreadMessage{
		MessageID:     messageID,
		NegotiationID: negotiationID,
		SeenAt:        time.Now(),
	})
	if err != nil && !errors.Is(err, repository.ErrDuplicateMessage) {
		log.Printf("[Processor] failed to index message %s: %v", messageID, err)
	}
}

// markFailed terminates a negotiation after a non-transient processing error
func (p *Processor) markFailed(ctx context.Context, n *domain.Negotiation) {
	if n == nil || n.Terminal() {
		return
	}
	n.Status = domain.StatusFailed
	if err := p.repo.Save(ctx, n); err != nil {
		log.Printf("[Processor] failed to mark negotiation %s failed: %v", n.ID, err)
		return
	}
	log.Printf("[Processor] negotiation %s marked failed after unrecoverable error", n.ID)
}
