package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HammerMeetNail/lingopair/internal/models"
)

const (
	mongoUsersCollection    = "users"
	mongoRequestsCollection = "friend_requests"
)

type mongoUser struct {
	ID               string    `bson:"_id"`
	Email            string    `bson:"email"`
	FullName         string    `bson:"fullName"`
	Bio              string    `bson:"bio"`
	ProfilePic       string    `bson:"profilePic"`
	NativeLanguage   string    `bson:"nativeLanguage"`
	LearningLanguage string    `bson:"learningLanguage"`
	Location         string    `bson:"location"`
	IsOnboarded      bool      `bson:"isOnboarded"`
	Friends          []string  `bson:"friends"`
	CreatedAt        time.Time `bson:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

func (u mongoUser) toModel() (models.User, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("parse user id %q: %w", u.ID, err)
	}
	friends, err := parseUUIDs(u.Friends)
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:               id,
		Email:            u.Email,
		FullName:         u.FullName,
		Bio:              u.Bio,
		ProfilePic:       u.ProfilePic,
		NativeLanguage:   u.NativeLanguage,
		LearningLanguage: u.LearningLanguage,
		Location:         u.Location,
		IsOnboarded:      u.IsOnboarded,
		Friends:          friends,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}, nil
}

// mongoFriendRequest carries two derived fields: pairKey identifies the
// unordered pair and active mirrors Status.IsActive(). Together they back the
// unique partial index that allows one active request per pair.
type mongoFriendRequest struct {
	ID        string    `bson:"_id"`
	Sender    string    `bson:"sender"`
	Recipient string    `bson:"recipient"`
	Status    string    `bson:"status"`
	Active    bool      `bson:"active"`
	PairKey   string    `bson:"pairKey"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (r mongoFriendRequest) toModel() (models.FriendRequest, error) {
	ids, err := parseUUIDs([]string{r.ID, r.Sender, r.Recipient})
	if err != nil {
		return models.FriendRequest{}, err
	}
	status := models.FriendRequestStatus(r.Status)
	if !status.Valid() {
		return models.FriendRequest{}, fmt.Errorf("friend request %s has unknown status %q", r.ID, r.Status)
	}
	return models.FriendRequest{
		ID:          ids[0],
		SenderID:    ids[1],
		RecipientID: ids[2],
		Status:      status,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// MongoStore is the document-database UserDirectory and RelationshipStore.
// Unlike the postgres store it keeps each user's friends denormalized on the
// user document; the only writer of that array is the accept transaction.
// Transactions need a replica set.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	requests *mongo.Collection
	now      func() time.Time
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:   client,
		users:    db.Collection(mongoUsersCollection),
		requests: db.Collection(mongoRequestsCollection),
		now:      time.Now,
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.requests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().
				SetName("active_pair_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create friend request indexes: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc mongoUser
	err := s.users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	user, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return s.findUsers(ctx, bson.M{"_id": bson.M{"$in": uuidStrings(ids)}})
}

func (s *MongoStore) ListOnboarded(ctx context.Context) ([]models.User, error) {
	return s.findUsers(ctx, bson.M{"isOnboarded": true})
}

func (s *MongoStore) findUsers(ctx context.Context, filter bson.M) ([]models.User, error) {
	cursor, err := s.users.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var docs []mongoUser
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		user, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *MongoStore) CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == recipientID {
		return nil, ErrCannotFriendSelf
	}

	count, err := s.users.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": uuidStrings([]uuid.UUID{senderID, recipientID})}})
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if count != 2 {
		return nil, ErrUserNotFound
	}

	now := s.now().UTC()
	doc := mongoFriendRequest{
		ID:        uuid.New().String(),
		Sender:    senderID.String(),
		Recipient: recipientID.String(),
		Status:    string(models.FriendRequestStatusPending),
		Active:    true,
		PairKey:   pairKey(senderID, recipientID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.requests.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, s.conflictError(ctx, doc.PairKey)
		}
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	request, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// conflictError explains a unique index violation on pairKey.
func (s *MongoStore) conflictError(ctx context.Context, key string) error {
	var existing mongoFriendRequest
	err := s.requests.FindOne(ctx, bson.M{"pairKey": key, "active": true}).Decode(&existing)
	if err == nil && existing.Status == string(models.FriendRequestStatusAccepted) {
		return ErrAlreadyFriends
	}
	return ErrDuplicateRequest
}

func (s *MongoStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	var doc mongoFriendRequest
	err := s.requests.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find friend request: %w", err)
	}
	request, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *MongoStore) UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to models.FriendRequestStatus) (*models.FriendRequest, bool, error) {
	var (
		updated *mongoFriendRequest
		err     error
	)
	if to == models.FriendRequestStatusAccepted {
		updated, err = s.acceptInTransaction(ctx, id, from)
	} else {
		updated, err = s.compareAndSetStatus(ctx, id, from, to)
	}
	if err != nil {
		return nil, false, err
	}

	if updated == nil {
		current, err := s.GetRequest(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}

	request, err := updated.toModel()
	if err != nil {
		return nil, false, err
	}
	return &request, true, nil
}

// acceptInTransaction flips the request and adds each user to the other's
// friends array. $addToSet keeps a retried transaction from duplicating ids.
func (s *MongoStore) acceptInTransaction(ctx context.Context, id uuid.UUID, from models.FriendRequestStatus) (*mongoFriendRequest, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		updated, err := s.compareAndSetStatus(sc, id, from, models.FriendRequestStatusAccepted)
		if err != nil || updated == nil {
			return updated, err
		}
		if _, err := s.users.UpdateOne(sc,
			bson.M{"_id": updated.Sender},
			bson.M{"$addToSet": bson.M{"friends": updated.Recipient}},
		); err != nil {
			return nil, fmt.Errorf("add friend to sender: %w", err)
		}
		if _, err := s.users.UpdateOne(sc,
			bson.M{"_id": updated.Recipient},
			bson.M{"$addToSet": bson.M{"friends": updated.Sender}},
		); err != nil {
			return nil, fmt.Errorf("add friend to recipient: %w", err)
		}
		return updated, nil
	})
	if err != nil {
		return nil, fmt.Errorf("accept friend request transaction: %w", err)
	}
	updated, _ := result.(*mongoFriendRequest)
	return updated, nil
}

// compareAndSetStatus returns nil without error when the request is not in
// the from state.
func (s *MongoStore) compareAndSetStatus(ctx context.Context, id uuid.UUID, from, to models.FriendRequestStatus) (*mongoFriendRequest, error) {
	var doc mongoFriendRequest
	err := s.requests.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String(), "status": string(from)},
		bson.M{"$set": bson.M{
			"status":    string(to),
			"active":    to.IsActive(),
			"updatedAt": s.now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update friend request status: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.FriendRequest, error) {
	cursor, err := s.requests.Find(ctx, requestFilterDocument(filter),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find friend requests: %w", err)
	}
	var docs []mongoFriendRequest
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode friend requests: %w", err)
	}
	requests := make([]models.FriendRequest, 0, len(docs))
	for _, doc := range docs {
		request, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// FriendIDs reads the denormalized friends array of the user document.
func (s *MongoStore) FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var doc mongoUser
	err := s.users.FindOne(ctx,
		bson.M{"_id": userID.String()},
		options.FindOne().SetProjection(bson.M{"friends": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []uuid.UUID{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user friends: %w", err)
	}
	return parseUUIDs(doc.Friends)
}

func requestFilterDocument(filter RequestFilter) bson.M {
	doc := bson.M{}
	if filter.SenderID != uuid.Nil {
		doc["sender"] = filter.SenderID.String()
	}
	if filter.RecipientID != uuid.Nil {
		doc["recipient"] = filter.RecipientID.String()
	}
	if filter.Status != "" {
		doc["status"] = string(filter.Status)
	}
	return doc
}

// pairKey is the same for (a, b) and (b, a).
func pairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", v, err)
		}
		out = append(out, id)
	}
	return out, nil
}
