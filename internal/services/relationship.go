package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopair/internal/logging"
	"github.com/HammerMeetNail/lingopair/internal/models"
)

// RelationshipServiceInterface is what the HTTP layer needs from the
// relationship manager.
type RelationshipServiceInterface interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetRecommendedUsers(ctx context.Context, userID uuid.UUID) ([]models.User, error)
	GetMyFriends(ctx context.Context, userID uuid.UUID) ([]models.User, error)
	SendFriendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	DeclineFriendRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	CancelFriendRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	GetIncomingFriendRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	GetAcceptedOutgoingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	GetOutgoingFriendRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	OutgoingRecipientIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

type RelationshipService struct {
	users    UserDirectory
	store    RelationshipStore
	notifier RelationshipNotifier
}

func NewRelationshipService(users UserDirectory, store RelationshipStore) *RelationshipService {
	return &RelationshipService{users: users, store: store}
}

func (s *RelationshipService) SetNotifier(notifier RelationshipNotifier) {
	s.notifier = notifier
}

// GetProfile returns the user record with its current friend set.
func (s *RelationshipService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, unavailable("get user", err)
	}
	friendIDs, err := s.store.FriendIDs(ctx, userID)
	if err != nil {
		return nil, unavailable("list friend ids", err)
	}
	user.Friends = friendIDs
	return user, nil
}

// GetRecommendedUsers returns every onboarded user who is neither the caller
// nor already a friend. Ordering is not part of the contract.
func (s *RelationshipService) GetRecommendedUsers(ctx context.Context, userID uuid.UUID) ([]models.User, error) {
	friendIDs, err := s.store.FriendIDs(ctx, userID)
	if err != nil {
		return nil, unavailable("list friend ids", err)
	}
	exclude := make(map[uuid.UUID]struct{}, len(friendIDs)+1)
	exclude[userID] = struct{}{}
	for _, id := range friendIDs {
		exclude[id] = struct{}{}
	}

	pool, err := s.users.ListOnboarded(ctx)
	if err != nil {
		return nil, unavailable("list onboarded users", err)
	}

	recommended := make([]models.User, 0, len(pool))
	for _, user := range pool {
		if !user.IsOnboarded {
			continue
		}
		if _, skip := exclude[user.ID]; skip {
			continue
		}
		recommended = append(recommended, user)
	}
	return recommended, nil
}

// GetMyFriends reads the persisted friend set on every call.
func (s *RelationshipService) GetMyFriends(ctx context.Context, userID uuid.UUID) ([]models.User, error) {
	friendIDs, err := s.store.FriendIDs(ctx, userID)
	if err != nil {
		return nil, unavailable("list friend ids", err)
	}
	if len(friendIDs) == 0 {
		return []models.User{}, nil
	}
	friends, err := s.users.GetByIDs(ctx, friendIDs)
	if err != nil {
		return nil, unavailable("load friends", err)
	}
	if friends == nil {
		friends = []models.User{}
	}
	return friends, nil
}

func (s *RelationshipService) SendFriendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == recipientID {
		return nil, ErrCannotFriendSelf
	}

	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		return nil, unavailable("get recipient", err)
	}

	friendIDs, err := s.store.FriendIDs(ctx, senderID)
	if err != nil {
		return nil, unavailable("list friend ids", err)
	}
	for _, id := range friendIDs {
		if id == recipientID {
			return nil, ErrAlreadyFriends
		}
	}

	// The store re-checks both conditions atomically; the reads above only
	// order the errors callers see.
	request, err := s.store.CreateRequest(ctx, senderID, recipientID)
	if err != nil {
		return nil, unavailable("create friend request", err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyFriendRequestSent(ctx, request); err != nil {
			logging.Error("Failed to send friend request notification", map[string]interface{}{
				"error":        err.Error(),
				"request_id":   request.ID.String(),
				"sender_id":    senderID.String(),
				"recipient_id": recipientID.String(),
			})
		}
	}

	return request, nil
}

// AcceptFriendRequest moves a pending request to accepted. Accepting a request
// that is already accepted returns it unchanged.
func (s *RelationshipService) AcceptFriendRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	request, changed, err := s.transition(ctx, requestID, actingUserID, models.FriendRequestStatusAccepted)
	if err != nil {
		return nil, err
	}

	if changed && s.notifier != nil {
		if err := s.notifier.NotifyFriendRequestAccepted(ctx, request); err != nil {
			logging.Error("Failed to send friend accepted notification", map[string]interface{}{
				"error":        err.Error(),
				"request_id":   request.ID.String(),
				"sender_id":    request.SenderID.String(),
				"recipient_id": request.RecipientID.String(),
			})
		}
	}
	return request, nil
}

func (s *RelationshipService) DeclineFriendRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	request, _, err := s.transition(ctx, requestID, actingUserID, models.FriendRequestStatusDeclined)
	return request, err
}

func (s *RelationshipService) CancelFriendRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	request, _, err := s.transition(ctx, requestID, actingUserID, models.FriendRequestStatusCancelled)
	return request, err
}

// transition applies pending -> to on behalf of actingUserID. Repeating a
// transition that already happened is a no-op success.
func (s *RelationshipService) transition(ctx context.Context, requestID, actingUserID uuid.UUID, to models.FriendRequestStatus) (*models.FriendRequest, bool, error) {
	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, false, unavailable("get friend request", err)
	}

	if err := authorizeTransition(request, actingUserID, to); err != nil {
		return nil, false, err
	}

	switch request.Status {
	case to:
		return request, false, nil
	case models.FriendRequestStatusPending:
	default:
		return nil, false, ErrRequestNotPending
	}

	updated, changed, err := s.store.UpdateRequestStatus(ctx, requestID, models.FriendRequestStatusPending, to)
	if err != nil {
		return nil, false, unavailable("update friend request", err)
	}
	if !changed {
		// Lost a race with another transition on the same request.
		if updated.Status == to {
			return updated, false, nil
		}
		return nil, false, ErrRequestNotPending
	}
	return updated, true, nil
}

func authorizeTransition(request *models.FriendRequest, actingUserID uuid.UUID, to models.FriendRequestStatus) error {
	switch to {
	case models.FriendRequestStatusCancelled:
		if request.SenderID != actingUserID {
			return ErrNotSender
		}
	default:
		if request.RecipientID != actingUserID {
			return ErrNotRecipient
		}
	}
	return nil
}

func (s *RelationshipService) GetIncomingFriendRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listWithUsers(ctx, userID, RequestFilter{RecipientID: userID, Status: models.FriendRequestStatusPending})
}

// GetAcceptedOutgoingRequests lists requests the user sent that were accepted,
// so the client can tell the sender their invitation went through.
func (s *RelationshipService) GetAcceptedOutgoingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listWithUsers(ctx, userID, RequestFilter{SenderID: userID, Status: models.FriendRequestStatusAccepted})
}

func (s *RelationshipService) GetOutgoingFriendRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listWithUsers(ctx, userID, RequestFilter{SenderID: userID, Status: models.FriendRequestStatusPending})
}

// OutgoingRecipientIDs returns the ids the user has a pending invitation to.
func (s *RelationshipService) OutgoingRecipientIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	requests, err := s.store.ListRequests(ctx, RequestFilter{SenderID: userID, Status: models.FriendRequestStatusPending})
	if err != nil {
		return nil, unavailable("list outgoing requests", err)
	}
	ids := make(map[uuid.UUID]struct{}, len(requests))
	for _, r := range requests {
		ids[r.RecipientID] = struct{}{}
	}
	return ids, nil
}

// listWithUsers attaches the counterpart profile to each request. Requests
// whose counterpart no longer resolves are dropped.
func (s *RelationshipService) listWithUsers(ctx context.Context, userID uuid.UUID, filter RequestFilter) ([]models.FriendRequestWithUser, error) {
	requests, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, unavailable("list friend requests", err)
	}
	if len(requests) == 0 {
		return []models.FriendRequestWithUser{}, nil
	}

	ids := make([]uuid.UUID, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.Counterpart(userID))
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, unavailable("load request users", err)
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]models.FriendRequestWithUser, 0, len(requests))
	for _, r := range requests {
		user, ok := byID[r.Counterpart(userID)]
		if !ok {
			continue
		}
		out = append(out, models.FriendRequestWithUser{FriendRequest: r, User: user.Summary()})
	}
	return out, nil
}
