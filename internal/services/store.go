package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopair/internal/models"
)

// UserDirectory is the read-only source of profile records.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	ListOnboarded(ctx context.Context) ([]models.User, error)
}

// RequestFilter selects friend requests. Zero values match anything.
type RequestFilter struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Status      models.FriendRequestStatus
}

func (f RequestFilter) Matches(r models.FriendRequest) bool {
	if f.SenderID != uuid.Nil && r.SenderID != f.SenderID {
		return false
	}
	if f.RecipientID != uuid.Nil && r.RecipientID != f.RecipientID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// RelationshipStore persists friend requests and the friendships they create.
//
// CreateRequest must check and insert atomically: with concurrent callers
// for the same unordered pair at most one may succeed, the rest get
// ErrDuplicateRequest (or ErrAlreadyFriends if the pair is already accepted).
//
// UpdateRequestStatus is a compare-and-set. It applies the change only while
// the stored status equals from and reports whether it did; otherwise it
// returns the current record unchanged. Moving to accepted must make the two
// users friends in the same atomic step.
type RelationshipStore interface {
	CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to models.FriendRequestStatus) (*models.FriendRequest, bool, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.FriendRequest, error)
	FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}
