package share

import (
	"context"
	"errors"

	"github.com/KakiharaShingo/Routy-sub000/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrRecipientNotFound is returned when the share target email is unknown.
var ErrRecipientNotFound = errors.New("share: recipient not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Share grants recipientEmail read access to one of ownerID's trips. Sharing
// the same trip with the same account twice is a no-op.
func (s *Service) Share(ctx context.Context, tripID, ownerID, recipientEmail string) (Grant, error) {
	var recipientID string
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, recipientEmail).Scan(&recipientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Grant{}, ErrRecipientNotFound
	}
	if err != nil {
		return Grant{}, err
	}

	grant := Grant{
		ID:          uuid.NewString(),
		TripID:      tripID,
		OwnerID:     ownerID,
		RecipientID: recipientID,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO shared_trips (id, trip_id, owner_id, recipient_id)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (trip_id, recipient_id) DO UPDATE SET trip_id = EXCLUDED.trip_id
		RETURNING created_at
	`, grant.ID, grant.TripID, grant.OwnerID, grant.RecipientID)
	if err := row.Scan(&grant.CreatedAt); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// Unshare revokes a grant. Revoking a grant that does not exist is a no-op.
func (s *Service) Unshare(ctx context.Context, tripID, ownerID, recipientID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM shared_trips
		WHERE trip_id = $1 AND owner_id = $2 AND recipient_id = $3
	`, tripID, ownerID, recipientID)
	return err
}

// SharedWithMe lists trips other accounts shared with userID, newest grant
// first.
func (s *Service) SharedWithMe(ctx context.Context, userID string) ([]SharedTrip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.user_id, t.name, t.start_date, t.end_date, COALESCE(t.cover_photo_url,''), st.created_at
		FROM shared_trips st
		JOIN trips t ON t.id = st.trip_id
		WHERE st.recipient_id = $1
		ORDER BY st.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSharedTrips(rows)
}

// PublicTrips lists trips whose owners marked them public, most recently
// updated first.
func (s *Service) PublicTrips(ctx context.Context, limit int) ([]SharedTrip, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, start_date, end_date, COALESCE(cover_photo_url,''), updated_at
		FROM trips
		WHERE is_public = true
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSharedTrips(rows)
}

func collectSharedTrips(rows pgx.Rows) ([]SharedTrip, error) {
	var trips []SharedTrip
	for rows.Next() {
		var st SharedTrip
		if err := rows.Scan(&st.TripID, &st.OwnerID, &st.Name, &st.StartDate, &st.EndDate, &st.CoverPhotoURL, &st.SharedAt); err != nil {
			return nil, err
		}
		trips = append(trips, st)
	}
	return trips, rows.Err()
}
