package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/models"
)

const connectionColumns = `connection_id, user_id_1, user_id_2, requested_by, status, created_at`

// ConnectionRepository persists contact relationships, one row per unordered pair.
type ConnectionRepository interface {
	Request(ctx context.Context, requesterID string, otherID string) (models.Connection, error)
	Get(ctx context.Context, connectionID string) (models.Connection, error)
	GetByPair(ctx context.Context, userA string, userB string) (models.Connection, error)
	Accept(ctx context.Context, connectionID string) (models.Connection, error)
	Delete(ctx context.Context, connectionID string) error
	ListForUser(ctx context.Context, userID string, status *models.ConnectionStatus) ([]models.Connection, error)
}

// ConnectionRepo is a sqlx implementation of ConnectionRepository.
type ConnectionRepo struct {
	db   *sqlx.DB
	call caller
}

// NewConnectionRepo constructs a ConnectionRepo.
func NewConnectionRepo(db *sqlx.DB, opts Options) *ConnectionRepo {
	return &ConnectionRepo{db: db, call: newCaller(opts)}
}

// Request creates a pending connection. An existing row for the pair yields a Conflict error.
func (r *ConnectionRepo) Request(ctx context.Context, requesterID string, otherID string) (models.Connection, error) {
	requesterID, otherID = models.NormalizeUserID(requesterID), models.NormalizeUserID(otherID)
	if requesterID == otherID {
		return models.Connection{}, apperr.Validation("cannot connect with yourself")
	}
	user1, user2 := models.CanonicalPair(requesterID, otherID)

	var conn models.Connection
	err := r.call.do(ctx, "request connection", func(ctx context.Context) error {
		return r.db.QueryRowxContext(ctx, `INSERT INTO connections (user_id_1, user_id_2, requested_by, status)
            VALUES ($1, $2, $3, $4) RETURNING `+connectionColumns, user1, user2, requesterID, models.ConnectionPending).
			StructScan(&conn)
	})
	if apperr.KindOf(err) == apperr.KindConflict {
		return models.Connection{}, apperr.Conflict("connection already exists")
	}
	return conn, err
}

// Get fetches a connection by id.
func (r *ConnectionRepo) Get(ctx context.Context, connectionID string) (models.Connection, error) {
	var conn models.Connection
	err := r.call.do(ctx, "get connection", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &conn, `SELECT `+connectionColumns+` FROM connections WHERE connection_id=$1`, connectionID)
	})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return models.Connection{}, apperr.NotFound("connection not found")
	}
	return conn, err
}

// GetByPair fetches the connection of an unordered pair.
func (r *ConnectionRepo) GetByPair(ctx context.Context, userA string, userB string) (models.Connection, error) {
	user1, user2 := models.CanonicalPair(userA, userB)
	var conn models.Connection
	err := r.call.do(ctx, "get connection pair", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &conn, `SELECT `+connectionColumns+` FROM connections WHERE user_id_1=$1 AND user_id_2=$2`, user1, user2)
	})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return models.Connection{}, apperr.NotFound("connection not found")
	}
	return conn, err
}

// Accept marks a connection accepted.
func (r *ConnectionRepo) Accept(ctx context.Context, connectionID string) (models.Connection, error) {
	var conn models.Connection
	err := r.call.do(ctx, "accept connection", func(ctx context.Context) error {
		return r.db.QueryRowxContext(ctx, `UPDATE connections SET status=$1 WHERE connection_id=$2 RETURNING `+connectionColumns, models.ConnectionAccepted, connectionID).
			StructScan(&conn)
	})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return models.Connection{}, apperr.NotFound("connection not found")
	}
	return conn, err
}

// Delete removes a connection, used for both reject and disconnect.
func (r *ConnectionRepo) Delete(ctx context.Context, connectionID string) error {
	return r.call.do(ctx, "delete connection", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE connection_id=$1`, connectionID)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return apperr.NotFound("connection not found")
		}
		return nil
	})
}

// ListForUser returns the user's connections, optionally filtered by status.
func (r *ConnectionRepo) ListForUser(ctx context.Context, userID string, status *models.ConnectionStatus) ([]models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE (user_id_1=$1 OR user_id_2=$1)`
	args := []any{userID}
	if status != nil {
		query += ` AND status=$2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	var conns []models.Connection
	err := r.call.do(ctx, "list connections", func(ctx context.Context) error {
		conns = nil
		return r.db.SelectContext(ctx, &conns, query, args...)
	})
	return conns, err
}
