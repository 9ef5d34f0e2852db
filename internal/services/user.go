package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/lingopair/internal/models"
)

const userColumns = `id, email, full_name, bio, profile_pic, native_language, learning_language, location, is_onboarded, created_at, updated_at`

// PostgresUserDirectory reads profile records from the users table.
type PostgresUserDirectory struct {
	db Querier
}

func NewPostgresUserDirectory(db Querier) *PostgresUserDirectory {
	return &PostgresUserDirectory{db: db}
}

func (d *PostgresUserDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := d.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

func (d *PostgresUserDirectory) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	rows, err := d.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY full_name`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("getting users by ids: %w", err)
	}
	return collectUsers(rows)
}

func (d *PostgresUserDirectory) ListOnboarded(ctx context.Context) ([]models.User, error) {
	rows, err := d.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_onboarded = true`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing onboarded users: %w", err)
	}
	return collectUsers(rows)
}

func collectUsers(rows Rows) ([]models.User, error) {
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.FullName, &user.Bio, &user.ProfilePic,
		&user.NativeLanguage, &user.LearningLanguage, &user.Location,
		&user.IsOnboarded, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
