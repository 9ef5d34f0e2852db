package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestStatusPending   FriendRequestStatus = "pending"
	FriendRequestStatusAccepted  FriendRequestStatus = "accepted"
	FriendRequestStatusDeclined  FriendRequestStatus = "declined"
	FriendRequestStatusCancelled FriendRequestStatus = "cancelled"
)

// IsActive reports whether the status still occupies the user pair.
// Only one active request may exist per unordered pair.
func (s FriendRequestStatus) IsActive() bool {
	return s == FriendRequestStatusPending || s == FriendRequestStatusAccepted
}

func (s FriendRequestStatus) Valid() bool {
	switch s {
	case FriendRequestStatusPending, FriendRequestStatusAccepted, FriendRequestStatusDeclined, FriendRequestStatusCancelled:
		return true
	}
	return false
}

type FriendRequest struct {
	ID          uuid.UUID           `json:"id"`
	SenderID    uuid.UUID           `json:"sender_id"`
	RecipientID uuid.UUID           `json:"recipient_id"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Involves reports whether userID is the sender or the recipient.
func (r FriendRequest) Involves(userID uuid.UUID) bool {
	return r.SenderID == userID || r.RecipientID == userID
}

// Counterpart returns the other side of the request relative to userID.
func (r FriendRequest) Counterpart(userID uuid.UUID) uuid.UUID {
	if r.SenderID == userID {
		return r.RecipientID
	}
	return r.SenderID
}

// FriendRequestWithUser pairs a request with the profile of the user on the
// other side: the sender for incoming requests, the recipient for outgoing ones.
type FriendRequestWithUser struct {
	FriendRequest
	User UserSummary `json:"user"`
}

// RecommendedUser is a recommendation annotated with whether the viewer has
// already invited that user.
type RecommendedUser struct {
	UserSummary
	RequestSent bool `json:"request_sent"`
}
