package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schedbot-backend/internal/negotiation/domain"
)

// NegotiationRepository defines the interface for negotiation persistence.
// All mutation of negotiation state flows through here; there is no other
// shared mutable store.
type NegotiationRepository interface {
	// Create stores a new negotiation aggregate
	Create(ctx context.Context, n *domain.Negotiation) error
	// Get loads a negotiation with its guest responses, or ErrNotFound
	Get(ctx context.Context, id string) (*domain.Negotiation, error)
	// Save persists the negotiation's own fields (responses are upserted separately)
	Save(ctx context.Context, n *domain.Negotiation) error
	// List returns all negotiations, newest first
	List(ctx context.Context) ([]*domain.Negotiation, error)
	// UpsertResponse inserts or replaces one guest's latest response
	UpsertResponse(ctx context.Context, r *domain.GuestResponse) error
	// AddThreadMessage indexes a consumed message-id; ErrDuplicateMessage if present
	AddThreadMessage(ctx context.Context, m *domain.ThreadMessage) error
	// SeenMessage reports whether a message-id has already been consumed
	SeenMessage(ctx context.Context, messageID string) (bool, error)
	// LookupThread returns the indexed entries for any of the given message-ids
	LookupThread(ctx context.Context, messageIDs []string) ([]domain.ThreadMessage, error)
	// Correspondence returns a negotiation's thread messages in arrival order
	Correspondence(ctx context.Context, negotiationID string) ([]domain.ThreadMessage, error)
}

// negotiationRepository implements NegotiationRepository over gorm
type negotiationRepository struct {
	db *gorm.DB
}

// NewNegotiationRepository creates a new instance of negotiationRepository
func NewNegotiationRepository(db *gorm.DB) NegotiationRepository {
	return &negotiationRepository{db: db}
}

func (r *negotiationRepository) Create(ctx context.Context, n *domain.Negotiation) error {
	if err := r.db.WithContext(ctx).Omit("Responses").Create(n).Error; err != nil {
		return fmt.Errorf("create negotiation: %w", err)
	}
	return nil
}

func (r *negotiationRepository) Get(ctx context.Context, id string) (*domain.Negotiation, error) {
	var n domain.Negotiation
	err := r.db.WithContext(ctx).Preload("Responses").First(&n, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get negotiation: %w", err)
	}
	return &n, nil
}

func (r *negotiationRepository) Save(ctx context.Context, n *domain.Negotiation) error {
	if err := r.db.WithContext(ctx).Omit("Responses").Save(n).Error; err != nil {
		return fmt.Errorf("save negotiation: %w", err)
	}
	return nil
}

func (r *negotiationRepository) List(ctx context.Context) ([]*domain.Negotiation, error) {
	var negotiations []*domain.Negotiation
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&negotiations).Error
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}
	return negotiations, nil
}

func (r *negotiationRepository) UpsertResponse(ctx context.Context, resp *domain.GuestResponse) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "negotiation_id"}, {Name: "attendee"}},
		UpdateAll: true,
	}).Create(resp).Error
	if err != nil {
		return fmt.Errorf("upsert response: %w", err)
	}
	return nil
}

func (r *negotiationRepository) AddThreadMessage(ctx context.Context, m *domain.ThreadMessage) error {
	err := r.db.WithContext(ctx).Create(m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("add thread message: %w", err)
	}
	return nil
}

func (r *negotiationRepository) SeenMessage(ctx context.Context, messageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ThreadMessage{}).
		Where("message_id = ?", messageID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("seen message: %w", err)
	}
	return count > 0, nil
}

func (r *negotiationRepository) LookupThread(ctx context.Context, messageIDs []string) ([]domain.ThreadMessage, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var entries []domain.ThreadMessage
	err := r.db.WithContext(ctx).
		Where("message_id IN ? AND negotiation_id <> ''", messageIDs).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("lookup thread: %w", err)
	}
	return entries, nil
}

func (r *negotiationRepository) Correspondence(ctx context.Context, negotiationID string) ([]domain.ThreadMessage, error) {
	var entries []domain.ThreadMessage
	err := r.db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		Order("seen_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("correspondence: %w", err)
	}
	return entries, nil
}

// isUniqueViolation sniffs driver-specific unique constraint errors that gorm
// does not translate for every dialect.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"unique constraint failed",
		"duplicate key value",
		"duplicate entry",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
