package usecase

import (
	"context"
	"log"

	"schedbot-backend/internal/negotiation/domain"
	"schedbot-backend/internal/negotiation/repository"
)

// ThreadResolver maps an inbound message to the negotiation owning its reply
// chain. Resolution is a pure function of the chain contents and the index:
// identical headers always resolve to the same negotiation id.
type ThreadResolver struct {
	repo repository.NegotiationRepository
}

// NewThreadResolver creates a thread resolver over the message-id index
func NewThreadResolver(repo repository.NegotiationRepository) *ThreadResolver {
	return &ThreadResolver{repo: repo}
}

// Resolve walks In-Reply-To first, then the References chain newest to
// oldest; the first indexed entry determines the owning negotiation. When a
// malformed chain reaches more than one negotiation, the one containing the
// most recently seen matched message wins and the ambiguity is logged.
func (r *ThreadResolver) Resolve(ctx context.Context, msg *domain.InboundMessage) (string, bool, error) {
	chain := msg.ReplyChain()
	if len(chain) == 0 {
		return "", false, nil
	}

	entries, err := r.repo.LookupThread(ctx, chain)
	if err != nil {
		return "", false, err
	}
	if len(entries) == 0 {
		return "", false, nil
	}

	byID := make(map[string]domain.ThreadMessage, len(entries))
	owners := make(map[string]struct{})
	for _, e := range entries {
		byID[e.MessageID] = e
		owners[e.NegotiationID] = struct{}{}
	}

	if len(owners) == 1 {
		// Normal case: walk the chain and take the first match.
		for _, id := range chain {
			if e, ok := byID[id]; ok {
				return e.NegotiationID, true, nil
			}
		}
	}

	// Malformed chain touching several negotiations: fall back to the most
	// recently seen matched message.
	var best domain.ThreadMessage
	for _, id := range chain {
		e, ok := byID[id]
		if !ok {
			continue
		}
		if best.MessageID == "" || e.SeenAt.After(best.SeenAt) {
			best = e
		}
	}
	log.Printf("[Resolver] message %s has an ambiguous reply chain spanning %d negotiations, using %s",
		msg.MessageID, len(owners), best.NegotiationID)
	return best.NegotiationID, true, nil
}
