package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopair/internal/models"
)

// MemoryStore is an in-process UserDirectory and RelationshipStore. A single
// mutex serializes every write, which gives the same per-pair guarantees the
// database backends get from locks and unique indexes.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	requests map[uuid.UUID]models.FriendRequest
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]models.User),
		requests: make(map[uuid.UUID]models.FriendRequest),
		now:      time.Now,
	}
}

// PutUser inserts or replaces a profile record.
func (s *MemoryStore) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Friends = nil
	s.users[user.ID] = user
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (s *MemoryStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (s *MemoryStore) ListOnboarded(ctx context.Context) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		if user.IsOnboarded {
			users = append(users, user)
		}
	}
	return users, nil
}

func (s *MemoryStore) CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if senderID == recipientID {
		return nil, ErrCannotFriendSelf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[senderID]; !ok {
		return nil, ErrUserNotFound
	}
	if _, ok := s.users[recipientID]; !ok {
		return nil, ErrUserNotFound
	}
	if existing, ok := s.activeBetweenLocked(senderID, recipientID); ok {
		if existing.Status == models.FriendRequestStatusAccepted {
			return nil, ErrAlreadyFriends
		}
		return nil, ErrDuplicateRequest
	}

	now := s.now().UTC()
	request := models.FriendRequest{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      models.FriendRequestStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.requests[request.ID] = request
	return &request, nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, ErrFriendRequestNotFound
	}
	return &request, nil
}

func (s *MemoryStore) UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to models.FriendRequestStatus) (*models.FriendRequest, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, false, ErrFriendRequestNotFound
	}
	if request.Status != from {
		return &request, false, nil
	}
	request.Status = to
	request.UpdatedAt = s.now().UTC()
	s.requests[id] = request
	return &request, true, nil
}

func (s *MemoryStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FriendRequest, 0)
	for _, r := range s.requests {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FriendIDs derives the friend set from accepted requests.
func (s *MemoryStore) FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, r := range s.requests {
		if r.Status != models.FriendRequestStatusAccepted || !r.Involves(userID) {
			continue
		}
		other := r.Counterpart(userID)
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}
	return ids, nil
}

func (s *MemoryStore) activeBetweenLocked(a, b uuid.UUID) (models.FriendRequest, bool) {
	for _, r := range s.requests {
		if r.Status.IsActive() && r.Involves(a) && r.Involves(b) {
			return r, true
		}
	}
	return models.FriendRequest{}, false
}
