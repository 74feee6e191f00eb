package repositories

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/models"
)

const threadColumns = `thread_id, thread_type, created_by_user_id, created_at, group_name, group_image`

// ThreadTx is the set of thread writes that run inside one transaction.
type ThreadTx interface {
	GetThreadByID(ctx context.Context, threadID string) (models.Thread, error)
	GetParticipants(ctx context.Context, threadID string) ([]models.Participant, error)
	InsertThread(ctx context.Context, fields models.NewThread) (models.Thread, error)
	InsertParticipants(ctx context.Context, threadID string, participants []models.NewParticipant) error
	UpdateThread(ctx context.Context, threadID string, update models.ThreadUpdate) error
}

// ThreadRepository abstracts thread and participant persistence.
type ThreadRepository interface {
	FindParticipations(ctx context.Context, userID string) ([]string, error)
	GetParticipants(ctx context.Context, threadID string) ([]models.Participant, error)
	GetThreadByID(ctx context.Context, threadID string) (models.Thread, error)
	ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error)
	IsParticipant(ctx context.Context, threadID string, userID string) (bool, error)
	UpdateThread(ctx context.Context, threadID string, update models.ThreadUpdate) error
	DeleteThread(ctx context.Context, threadID string) error
	InTx(ctx context.Context, fn func(tx ThreadTx) error) error
}

// ThreadRepo is a sqlx implementation of ThreadRepository.
type ThreadRepo struct {
	db   *sqlx.DB
	call caller
}

// NewThreadRepo constructs a ThreadRepo.
func NewThreadRepo(db *sqlx.DB, opts Options) *ThreadRepo {
	return &ThreadRepo{db: db, call: newCaller(opts)}
}

// FindParticipations returns the ids of every thread the user belongs to.
func (r *ThreadRepo) FindParticipations(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.call.do(ctx, "find participations", func(ctx context.Context) error {
		ids = nil
		return r.db.SelectContext(ctx, &ids, `SELECT thread_id FROM thread_participants WHERE user_id=$1`, userID)
	})
	return ids, err
}

// GetParticipants lists the members of a thread in join order.
func (r *ThreadRepo) GetParticipants(ctx context.Context, threadID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.call.do(ctx, "get participants", func(ctx context.Context) error {
		var err error
		participants, err = selectParticipants(ctx, r.db, threadID)
		return err
	})
	return participants, err
}

// GetThreadByID fetches a thread, returning a NotFound error when absent.
func (r *ThreadRepo) GetThreadByID(ctx context.Context, threadID string) (models.Thread, error) {
	var thread models.Thread
	err := r.call.do(ctx, "get thread", func(ctx context.Context) error {
		var err error
		thread, err = getThread(ctx, r.db, threadID, false)
		return err
	})
	return thread, err
}

// ListThreadsForUser returns the user's threads, most recently active first.
func (r *ThreadRepo) ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error) {
	query := `SELECT t.thread_id, t.thread_type, t.created_by_user_id, t.created_at, t.group_name, t.group_image
        FROM threads t
        INNER JOIN thread_participants tp ON tp.thread_id = t.thread_id
        WHERE tp.user_id=$1
        ORDER BY COALESCE((SELECT MAX(m.created_at) FROM messages m WHERE m.thread_id = t.thread_id), t.created_at) DESC`
	var threads []models.Thread
	err := r.call.do(ctx, "list threads", func(ctx context.Context) error {
		threads = nil
		return r.db.SelectContext(ctx, &threads, query, userID)
	})
	return threads, err
}

// IsParticipant checks whether a user belongs to the thread.
func (r *ThreadRepo) IsParticipant(ctx context.Context, threadID string, userID string) (bool, error) {
	var exists bool
	err := r.call.do(ctx, "check participant", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM thread_participants WHERE thread_id=$1 AND user_id=$2)`, threadID, userID)
	})
	return exists, err
}

// UpdateThread applies a partial update outside a transaction.
func (r *ThreadRepo) UpdateThread(ctx context.Context, threadID string, update models.ThreadUpdate) error {
	return r.call.do(ctx, "update thread", func(ctx context.Context) error {
		return updateThread(ctx, r.db, threadID, update)
	})
}

// DeleteThread removes a thread; participants and messages cascade.
func (r *ThreadRepo) DeleteThread(ctx context.Context, threadID string) error {
	return r.call.do(ctx, "delete thread", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM threads WHERE thread_id=$1`, threadID)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return apperr.NotFound("thread not found")
		}
		return nil
	})
}

// InTx runs fn inside a transaction, committing only when fn succeeds.
// Transient failures retry the whole transaction, so fn must be re-runnable.
func (r *ThreadRepo) InTx(ctx context.Context, fn func(tx ThreadTx) error) error {
	return r.call.do(ctx, "thread transaction", func(ctx context.Context) (err error) {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		if err = fn(&threadTx{tx: tx}); err != nil {
			return err
		}
		return tx.Commit()
	})
}

type threadTx struct {
	tx *sqlx.Tx
}

func (t *threadTx) GetThreadByID(ctx context.Context, threadID string) (models.Thread, error) {
	return getThread(ctx, t.tx, threadID, true)
}

func (t *threadTx) GetParticipants(ctx context.Context, threadID string) ([]models.Participant, error) {
	return selectParticipants(ctx, t.tx, threadID)
}

func (t *threadTx) InsertThread(ctx context.Context, fields models.NewThread) (models.Thread, error) {
	var thread models.Thread
	err := t.tx.QueryRowxContext(ctx, `INSERT INTO threads (thread_type, created_by_user_id, group_name, group_image, direct_key)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+threadColumns,
		fields.ThreadType, fields.CreatedByUserID, fields.GroupName, fields.GroupImage, fields.DirectKey).StructScan(&thread)
	if err != nil {
		return models.Thread{}, errors.Wrap(err, "insert thread")
	}
	return thread, nil
}

func (t *threadTx) InsertParticipants(ctx context.Context, threadID string, participants []models.NewParticipant) error {
	for _, p := range participants {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO thread_participants (thread_id, user_id, role) VALUES ($1, $2, $3)`, threadID, p.UserID, p.Role); err != nil {
			return apperr.PartialCreation("insert participants", err)
		}
	}
	return nil
}

func (t *threadTx) UpdateThread(ctx context.Context, threadID string, update models.ThreadUpdate) error {
	return updateThread(ctx, t.tx, threadID, update)
}

func getThread(ctx context.Context, q sqlx.QueryerContext, threadID string, forUpdate bool) (models.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE thread_id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var thread models.Thread
	if err := sqlx.GetContext(ctx, q, &thread, query, threadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Thread{}, apperr.NotFound("thread not found")
		}
		return models.Thread{}, err
	}
	return thread, nil
}

func selectParticipants(ctx context.Context, q sqlx.QueryerContext, threadID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := sqlx.SelectContext(ctx, q, &participants, `SELECT thread_id, user_id, role, joined_at FROM thread_participants WHERE thread_id=$1 ORDER BY joined_at ASC, user_id ASC`, threadID)
	return participants, err
}

func updateThread(ctx context.Context, e sqlx.ExecerContext, threadID string, update models.ThreadUpdate) error {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+"=$"+strconv.Itoa(len(args)))
	}
	if update.ThreadType != nil {
		add("thread_type", *update.ThreadType)
	}
	if update.GroupName != nil {
		add("group_name", *update.GroupName)
	}
	if update.GroupImage != nil {
		add("group_image", *update.GroupImage)
	}
	if update.ClearDirectKey {
		sets = append(sets, "direct_key=NULL")
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, threadID)
	query := `UPDATE threads SET ` + strings.Join(sets, ", ") + ` WHERE thread_id=$` + strconv.Itoa(len(args))
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return apperr.NotFound("thread not found")
	}
	return nil
}
