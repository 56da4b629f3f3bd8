package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tOgg1/threadline/internal/models"
)

const defaultBusyTimeoutMs = 5000

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL DEFAULT '',
		author_id TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		reply_to_id TEXT,
		conversation_id TEXT,
		created_at TEXT NOT NULL,
		reply_count INTEGER NOT NULL DEFAULT 0,
		repost_count INTEGER NOT NULL DEFAULT 0,
		like_count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_reply_to ON posts(reply_to_id)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_conversation ON posts(conversation_id)`,
	`CREATE TABLE IF NOT EXISTS deleted_posts (
		post_id TEXT PRIMARY KEY,
		deleted_at TEXT NOT NULL
	)`,
}

// SQLiteStore persists posts in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string, busyTimeoutMs int, opts ...Option) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = defaultBusyTimeoutMs
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMs)
	return openSQLite(dsn, 0, opts)
}

// OpenSQLiteInMemory opens a private in-memory database, mostly for tests.
func OpenSQLiteInMemory(opts ...Option) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	return openSQLite(dsn, 1, opts)
}

func openSQLite(dsn string, maxConns int, opts []Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the schema if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// SavePosts upserts posts in a single transaction.
func (s *SQLiteStore) SavePosts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if err := models.ValidatePosts(posts); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPost, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	return writeRetry.do(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for i := range posts {
			if err := upsertPost(ctx, tx, &posts[i], now); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func upsertPost(ctx context.Context, tx *sql.Tx, post *models.Post, now string) error {
	// Prefer UPDATE then INSERT to avoid relying on newer SQLite upsert syntax.
	// Empty link fields keep what is already stored.
	result, err := tx.ExecContext(ctx, `
		UPDATE posts
		SET platform = ?, author_id = ?, text = ?,
			reply_to_id = COALESCE(?, reply_to_id),
			conversation_id = COALESCE(?, conversation_id),
			created_at = ?, reply_count = ?, repost_count = ?, like_count = ?, updated_at = ?
		WHERE id = ?
	`,
		string(post.Platform),
		post.AuthorID,
		post.Text,
		nullString(post.ReplyToID),
		nullString(post.ConversationID),
		post.CreatedAt.UTC().Format(time.RFC3339Nano),
		post.ReplyCount,
		post.RepostCount,
		post.LikeCount,
		now,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update post %s: %w", post.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (
			id, platform, author_id, text, reply_to_id, conversation_id,
			created_at, reply_count, repost_count, like_count, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		post.ID,
		string(post.Platform),
		post.AuthorID,
		post.Text,
		nullString(post.ReplyToID),
		nullString(post.ConversationID),
		post.CreatedAt.UTC().Format(time.RFC3339Nano),
		post.ReplyCount,
		post.RepostCount,
		post.LikeCount,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post %s: %w", post.ID, err)
	}
	return nil
}

const postColumns = `id, platform, author_id, text, reply_to_id, conversation_id,
	created_at, reply_count, repost_count, like_count`

// LookupPost returns a stored post or ErrPostNotFound.
func (s *SQLiteStore) LookupPost(ctx context.Context, id string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, strings.TrimSpace(id))
	return scanPost(row)
}

// ListReplies returns stored direct replies to replyToID, oldest first.
func (s *SQLiteStore) ListReplies(ctx context.Context, replyToID string) ([]*models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE reply_to_id = ?
		ORDER BY created_at, id
	`, strings.TrimSpace(replyToID))
	if err != nil {
		return nil, fmt.Errorf("failed to query replies: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate replies: %w", err)
	}
	return out, nil
}

// IsDeleted reports whether id is in the deleted set.
func (s *SQLiteStore) IsDeleted(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM deleted_posts WHERE post_id = ?`, strings.TrimSpace(id)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query deleted posts: %w", err)
	}
	return count > 0, nil
}

// MarkDeleted adds id to the deleted set. Unknown posts may be flagged too.
func (s *SQLiteStore) MarkDeleted(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	var inserted int64
	err = writeRetry.do(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO deleted_posts (post_id, deleted_at) VALUES (?, ?)
		`, id, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to mark post deleted: %w", err)
		}
		inserted, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if inserted > 0 {
		s.opts.publish(ctx, models.EventTypePostDeleted, id)
	}
	return nil
}

// Restore removes id from the deleted set.
func (s *SQLiteStore) Restore(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	var removed int64
	err = writeRetry.do(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM deleted_posts WHERE post_id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to restore post: %w", err)
		}
		removed, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if removed > 0 {
		s.opts.publish(ctx, models.EventTypePostRestored, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post           models.Post
		platform       string
		replyToID      sql.NullString
		conversationID sql.NullString
		createdAt      string
	)
	err := row.Scan(
		&post.ID,
		&platform,
		&post.AuthorID,
		&post.Text,
		&replyToID,
		&conversationID,
		&createdAt,
		&post.ReplyCount,
		&post.RepostCount,
		&post.LikeCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	post.Platform = models.Platform(platform)
	post.ReplyToID = replyToID.String
	post.ConversationID = conversationID.String
	post.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for post %s: %w", post.ID, err)
	}
	return &post, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
