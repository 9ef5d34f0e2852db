package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HammerMeetNail/lingopair/internal/models"
)

type recordingNotifier struct {
	mu       sync.Mutex
	sent     []models.FriendRequest
	accepted []models.FriendRequest
	err      error
}

func (n *recordingNotifier) NotifyFriendRequestSent(ctx context.Context, request *models.FriendRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, *request)
	return n.err
}

func (n *recordingNotifier) NotifyFriendRequestAccepted(ctx context.Context, request *models.FriendRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accepted = append(n.accepted, *request)
	return n.err
}

// failingStore fails every call with a non-domain error.
type failingStore struct {
	err error
}

func (f failingStore) CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	return nil, f.err
}

func (f failingStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	return nil, f.err
}

func (f failingStore) UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to models.FriendRequestStatus) (*models.FriendRequest, bool, error) {
	return nil, false, f.err
}

func (f failingStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.FriendRequest, error) {
	return nil, f.err
}

func (f failingStore) FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return nil, f.err
}

func newTestUser(name string) models.User {
	return models.User{
		ID:               uuid.New(),
		Email:            name + "@example.com",
		FullName:         name,
		NativeLanguage:   "english",
		LearningLanguage: "spanish",
		IsOnboarded:      true,
	}
}

func newRelationshipFixture(t *testing.T, names ...string) (*RelationshipService, *MemoryStore, []models.User) {
	t.Helper()
	store := NewMemoryStore()
	users := make([]models.User, 0, len(names))
	for _, name := range names {
		u := newTestUser(name)
		store.PutUser(u)
		users = append(users, u)
	}
	return NewRelationshipService(store, store), store, users
}

func userIDs(users []models.User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestRelationshipService_AcceptMakesFriendshipSymmetric(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "ana", "ben")
	ana, ben := users[0], users[1]

	req, err := svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestStatusPending, req.Status)

	accepted, err := svc.AcceptFriendRequest(ctx, req.ID, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestStatusAccepted, accepted.Status)

	anaFriends, err := svc.GetMyFriends(ctx, ana.ID)
	require.NoError(t, err)
	benFriends, err := svc.GetMyFriends(ctx, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ben.ID}, userIDs(anaFriends))
	assert.Equal(t, []uuid.UUID{ana.ID}, userIDs(benFriends))

	profile, err := svc.GetProfile(ctx, ana.ID)
	require.NoError(t, err)
	assert.True(t, profile.HasFriend(ben.ID))
}

func TestRelationshipService_SendRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "ana", "ben")
	ana, ben := users[0], users[1]

	_, err := svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	require.NoError(t, err)

	_, err = svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	_, err = svc.SendFriendRequest(ctx, ben.ID, ana.ID)
	assert.ErrorIs(t, err, ErrDuplicateRequest, "reverse direction counts as the same pair")
}

func TestRelationshipService_SendValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "ana")
	ana := users[0]

	_, err := svc.SendFriendRequest(ctx, ana.ID, ana.ID)
	assert.ErrorIs(t, err, ErrCannotFriendSelf)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = svc.SendFriendRequest(ctx, ana.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelationshipService_SendToFriendIsAlreadyFriends(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "ana", "ben")
	ana, ben := users[0], users[1]

	req, err := svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	require.NoError(t, err)
	_, err = svc.AcceptFriendRequest(ctx, req.ID, ben.ID)
	require.NoError(t, err)

	_, err = svc.SendFriendRequest(ctx, ben.ID, ana.ID)
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestRelationshipService_RecommendationsExcludeSelfAndFriends(t *testing.T) {
	ctx := context.Background()
	svc, store, users := newRelationshipFixture(t, "ana", "ben", "cai")
	ana, ben, cai := users[0], users[1], users[2]

	hidden := newTestUser("dee")
	hidden.IsOnboarded = false
	store.PutUser(hidden)

	req, err := svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	require.NoError(t, err)

	recommended, err := svc.GetRecommendedUsers(ctx, ana.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{ben.ID, cai.ID}, userIDs(recommended), "pending invitees are still recommended")

	_, err = svc.AcceptFriendRequest(ctx, req.ID, ben.ID)
	require.NoError(t, err)

	recommended, err = svc.GetRecommendedUsers(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{cai.ID}, userIDs(recommended))
}

func TestRelationshipService_OnlyRecipientMayAccept(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "ana", "ben", "cai")
	ana, ben, cai := users[0], users[1], users[2]

	req, err := svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	require.NoError(t, err)

	_, err = svc.AcceptFriendRequest(ctx, req.ID, cai.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.AcceptFriendRequest(ctx, req.ID, ana.ID)
	assert.ErrorIs(t, err, ErrNotRecipient)

	friends, err := svc.GetMyFriends(ctx, ben.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestRelationshipService_AcceptUnknownRequest(t *testing.T) {
	svc, _, users := newRelationshipFixture(t, "ana")

	_, err := svc.AcceptFriendRequest(context.Background(), uuid.New(), users[0].ID)
	assert.ErrorIs(t, err, ErrFriendRequestNotFound)
}

// Two users who each see the other in recommendations; one invites, the other
// accepts, and afterwards neither is recommended to the other.
func TestRelationshipService_InviteAcceptScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "u1", "u2")
	u1, u2 := users[0], users[1]

	recommended, err := svc.GetRecommendedUsers(ctx, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u2.ID}, userIDs(recommended))

	req, err := svc.SendFriendRequest(ctx, u1.ID, u2.ID)
	require.NoError(t, err)

	sentTo, err := svc.OutgoingRecipientIDs(ctx, u1.ID)
	require.NoError(t, err)
	assert.Contains(t, sentTo, u2.ID)

	outgoing, err := svc.GetOutgoingFriendRequests(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, u2.ID, outgoing[0].User.ID)

	incoming, err := svc.GetIncomingFriendRequests(ctx, u2.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, req.ID, incoming[0].ID)
	assert.Equal(t, u1.ID, incoming[0].User.ID)

	_, err = svc.AcceptFriendRequest(ctx, req.ID, u2.ID)
	require.NoError(t, err)

	incoming, err = svc.GetIncomingFriendRequests(ctx, u2.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)

	acceptedOutgoing, err := svc.GetAcceptedOutgoingRequests(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, acceptedOutgoing, 1)
	assert.Equal(t, u2.ID, acceptedOutgoing[0].User.ID)

	for _, pair := range [][2]models.User{{u1, u2}, {u2, u1}} {
		recommended, err := svc.GetRecommendedUsers(ctx, pair[0].ID)
		require.NoError(t, err)
		assert.NotContains(t, userIDs(recommended), pair[1].ID)
	}
}

func TestRelationshipService_ConcurrentSendsYieldOneRequest(t *testing.T) {
	ctx := context.Background()
	svc, store, users := newRelationshipFixture(t, "ana", "ben")
	ana, ben := users[0], users[1]

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		from, to := ana.ID, ben.ID
		if i%2 == 1 {
			from, to = ben.ID, ana.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.SendFriendRequest(ctx, from, to)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateRequest):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, dupes)

	all, err := store.ListRequests(ctx, RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRelationshipService_ConcurrentAcceptsNotifyOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "ana", "ben")
	ana, ben := users[0], users[1]
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	req, err := svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.AcceptFriendRequest(ctx, req.ID, ben.ID)
			assert.NoError(t, err)
			if got != nil {
				assert.Equal(t, models.FriendRequestStatusAccepted, got.Status)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, notifier.sent, 1)
	assert.Len(t, notifier.accepted, 1)

	friends, err := svc.GetMyFriends(ctx, ana.ID)
	require.NoError(t, err)
	assert.Len(t, friends, 1)
}

func TestRelationshipService_ReacceptIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "ana", "ben")
	ana, ben := users[0], users[1]

	req, err := svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	require.NoError(t, err)
	first, err := svc.AcceptFriendRequest(ctx, req.ID, ben.ID)
	require.NoError(t, err)
	second, err := svc.AcceptFriendRequest(ctx, req.ID, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	friends, err := svc.GetMyFriends(ctx, ben.ID)
	require.NoError(t, err)
	assert.Len(t, friends, 1)
}

func TestRelationshipService_DeclineAndCancel(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "ana", "ben")
	ana, ben := users[0], users[1]

	req, err := svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	require.NoError(t, err)

	_, err = svc.DeclineFriendRequest(ctx, req.ID, ana.ID)
	assert.ErrorIs(t, err, ErrNotRecipient)

	declined, err := svc.DeclineFriendRequest(ctx, req.ID, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestStatusDeclined, declined.Status)

	_, err = svc.AcceptFriendRequest(ctx, req.ID, ben.ID)
	assert.ErrorIs(t, err, ErrRequestNotPending)

	_, err = svc.DeclineFriendRequest(ctx, req.ID, ben.ID)
	assert.NoError(t, err, "repeating a decline is a no-op")

	// The pair is free again, in either direction.
	again, err := svc.SendFriendRequest(ctx, ben.ID, ana.ID)
	require.NoError(t, err)

	_, err = svc.CancelFriendRequest(ctx, again.ID, ana.ID)
	assert.ErrorIs(t, err, ErrNotSender)

	cancelled, err := svc.CancelFriendRequest(ctx, again.ID, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestStatusCancelled, cancelled.Status)

	_, err = svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	assert.NoError(t, err)
}

func TestRelationshipService_NotifierFailureDoesNotFailSend(t *testing.T) {
	ctx := context.Background()
	svc, _, users := newRelationshipFixture(t, "ana", "ben")
	notifier := &recordingNotifier{err: errors.New("redis down")}
	svc.SetNotifier(notifier)

	req, err := svc.SendFriendRequest(ctx, users[0].ID, users[1].ID)
	require.NoError(t, err)
	_, err = svc.AcceptFriendRequest(ctx, req.ID, users[1].ID)
	require.NoError(t, err)

	assert.Len(t, notifier.sent, 1)
	assert.Len(t, notifier.accepted, 1)
}

func TestRelationshipService_StoreFailuresAreUnavailable(t *testing.T) {
	ctx := context.Background()
	dirStore := NewMemoryStore()
	ana, ben := newTestUser("ana"), newTestUser("ben")
	dirStore.PutUser(ana)
	dirStore.PutUser(ben)
	cause := errors.New("connection refused")
	svc := NewRelationshipService(dirStore, failingStore{err: cause})

	_, err := svc.SendFriendRequest(ctx, ana.ID, ben.ID)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)

	_, err = svc.AcceptFriendRequest(ctx, uuid.New(), ben.ID)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.GetRecommendedUsers(ctx, ana.ID)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.GetIncomingFriendRequests(ctx, ana.ID)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestUnavailable_PassesDomainErrorsThrough(t *testing.T) {
	assert.Nil(t, unavailable("op", nil))
	assert.Same(t, ErrUserNotFound, unavailable("op", ErrUserNotFound))

	err := unavailable("op", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "op")
}
