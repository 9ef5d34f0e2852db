package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/lingopair/internal/models"
)

const friendRequestColumns = `id, sender_id, recipient_id, status, created_at, updated_at`

// pgUniqueViolation is raised by friend_requests_active_pair_idx when a second
// active request for the same unordered pair slips past the locked check.
const pgUniqueViolation = "23505"

// PostgresRelationshipStore keeps friend requests in the friend_requests table.
// Friendships are not stored separately: two users are friends exactly when an
// accepted request exists between them.
type PostgresRelationshipStore struct {
	db DB
}

func NewPostgresRelationshipStore(db DB) *PostgresRelationshipStore {
	return &PostgresRelationshipStore{db: db}
}

func (s *PostgresRelationshipStore) CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	if senderID == recipientID {
		return nil, ErrCannotFriendSelf
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin friend request transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := lockUserPairForUpdate(ctx, tx, senderID, recipientID); err != nil {
		return nil, err
	}

	var existing models.FriendRequestStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM friend_requests
		 WHERE ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		   AND status IN ('pending', 'accepted')
		 LIMIT 1`,
		senderID, recipientID,
	).Scan(&existing)
	switch {
	case err == nil:
		if existing == models.FriendRequestStatusAccepted {
			return nil, ErrAlreadyFriends
		}
		return nil, ErrDuplicateRequest
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("check existing request: %w", err)
	}

	request, err := scanFriendRequest(tx.QueryRow(ctx,
		`INSERT INTO friend_requests (sender_id, recipient_id, status)
		 VALUES ($1, $2, 'pending')
		 RETURNING `+friendRequestColumns,
		senderID, recipientID,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit friend request: %w", err)
	}
	committed = true

	return request, nil
}

func (s *PostgresRelationshipStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	request, err := scanFriendRequest(s.db.QueryRow(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	return request, nil
}

// UpdateRequestStatus is a single conditional UPDATE, so accepting a request
// and creating the friendship it implies happen in one statement.
func (s *PostgresRelationshipStore) UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to models.FriendRequestStatus) (*models.FriendRequest, bool, error) {
	request, err := scanFriendRequest(s.db.QueryRow(ctx,
		`UPDATE friend_requests
		 SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $2
		 RETURNING `+friendRequestColumns,
		id, string(from), string(to),
	))
	if err == nil {
		return request, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("update friend request status: %w", err)
	}

	current, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *PostgresRelationshipStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.FriendRequest, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.SenderID != uuid.Nil {
		args = append(args, filter.SenderID)
		conditions = append(conditions, fmt.Sprintf("sender_id = $%d", len(args)))
	}
	if filter.RecipientID != uuid.Nil {
		args = append(args, filter.RecipientID)
		conditions = append(conditions, fmt.Sprintf("recipient_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + friendRequestColumns + ` FROM friend_requests`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	requests := []models.FriendRequest{}
	for rows.Next() {
		request, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}
	return requests, nil
}

func (s *PostgresRelationshipStore) FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END
		 FROM friend_requests
		 WHERE status = 'accepted' AND (sender_id = $1 OR recipient_id = $1)`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend ids: %w", err)
	}
	return ids, nil
}

func scanFriendRequest(row Row) (*models.FriendRequest, error) {
	request := &models.FriendRequest{}
	err := row.Scan(&request.ID, &request.SenderID, &request.RecipientID, &request.Status, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if !request.Status.Valid() {
		return nil, fmt.Errorf("friend request %s has unknown status %q", request.ID, request.Status)
	}
	return request, nil
}
