package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postsLockKey serializes identifier allocation across connections.
const postsLockKey = int64(0x534c414e54) // "SLANT"

// PostgresStore implements Store on Postgres for runs that outlive a single
// process. Identifier allocation and the append run in one transaction under
// an advisory lock, so ids stay gapless even across processes.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the posts table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS posts (
			post_id      bigint PRIMARY KEY,
			username     text NOT NULL,
			poster_group text NOT NULL,
			round        int NOT NULL,
			message      text NOT NULL,
			likes        text[] NOT NULL DEFAULT '{}',
			reply_to     bigint REFERENCES posts (post_id),
			blocked      boolean NOT NULL DEFAULT false,
			created_at   timestamptz NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (s *PostgresStore) AddPost(ctx context.Context, in AddPostInput) (Post, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Post{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, postsLockKey); err != nil {
		return Post{}, err
	}
	if in.ReplyTo != nil {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT true FROM posts WHERE post_id = $1`, *in.ReplyTo).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, fmt.Errorf("reply target %d: %w", *in.ReplyTo, ErrPostNotFound)
		}
		if err != nil {
			return Post{}, err
		}
	}

	message := in.Message
	if in.Blocked {
		message = RedactedMessage
	}
	likes := make([]string, 0, len(in.Likes))
	for _, u := range in.Likes {
		likes = appendUnique(likes, u)
	}

	var post Post
	err = tx.QueryRow(ctx, `
		INSERT INTO posts (post_id, username, poster_group, round, message, likes, reply_to, blocked)
		SELECT COALESCE(MAX(post_id), 0) + 1, $1, $2, $3, $4, $5, $6, $7 FROM posts
		RETURNING post_id, username, poster_group, round, message, likes, reply_to, blocked, created_at
	`, in.Username, in.Group, in.Round, message, likes, in.ReplyTo, in.Blocked).Scan(
		&post.ID, &post.Username, &post.Group, &post.Round, &post.Message,
		&post.Likes, &post.ReplyTo, &post.Blocked, &post.CreatedAt,
	)
	if err != nil {
		return Post{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Post{}, err
	}
	return post, nil
}

func (s *PostgresStore) LikePost(ctx context.Context, postID int64, username string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE posts
		SET likes = array_append(likes, $2)
		WHERE post_id = $1 AND NOT ($2 = ANY(likes))
	`, postID, username)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) PostsByRound(ctx context.Context, round int) ([]Post, error) {
	rows, err := s.db.Query(ctx, `
		SELECT post_id, username, poster_group, round, message, likes, reply_to, blocked, created_at
		FROM posts
		WHERE round = $1
		ORDER BY post_id
	`, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Post, 0)
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Username, &p.Group, &p.Round, &p.Message,
			&p.Likes, &p.ReplyTo, &p.Blocked, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PostByID(ctx context.Context, postID int64) (Post, error) {
	var p Post
	err := s.db.QueryRow(ctx, `
		SELECT post_id, username, poster_group, round, message, likes, reply_to, blocked, created_at
		FROM posts
		WHERE post_id = $1
	`, postID).Scan(&p.ID, &p.Username, &p.Group, &p.Round, &p.Message,
		&p.Likes, &p.ReplyTo, &p.Blocked, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, fmt.Errorf("post %d: %w", postID, ErrPostNotFound)
	}
	if err != nil {
		return Post{}, err
	}
	return p, nil
}
