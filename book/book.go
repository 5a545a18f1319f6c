// Package book is a position database: search results saved ahead of time
// and played back instead of searching.
package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/domino14/morris/board"
	"github.com/domino14/morris/move"
)

var ErrNotFound = errors.New("position not in book")

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	key      INTEGER PRIMARY KEY,
	rules    TEXT    NOT NULL,
	notation TEXT    NOT NULL,
	move     TEXT    NOT NULL,
	value    INTEGER NOT NULL,
	depth    INTEGER NOT NULL
)`

type Entry struct {
	Move  move.Move
	Value int
	Depth int
}

type Book struct {
	db *sql.DB
}

// rulesTag names the variant a position is played under. Results from
// one variant say nothing about another.
func rulesTag(r board.Rules) string {
	return fmt.Sprintf("pieces=%d flying=%t draw=%d", r.PiecesPerSide, r.Flying, r.MaxMovesWithoutRemoval)
}

// Key is the book key of a position. Zobrist fingerprints change from run
// to run, so the book hashes the rules and position notation instead.
func Key(pos *board.Position) int64 {
	return int64(xxhash.Sum64String(rulesTag(pos.Rules()) + " " + pos.Notation()))
}

// Open opens the book at path, creating it if needed. ":memory:" gives a
// private in-memory book.
func Open(ctx context.Context, path string) (*Book, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating book schema in %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("opened-book")
	return &Book{db: db}, nil
}

func (b *Book) Close() error {
	return b.db.Close()
}

// Lookup returns the entry for pos, or ErrNotFound.
func (b *Book) Lookup(ctx context.Context, pos *board.Position) (Entry, error) {
	notation := pos.Notation()
	var storedRules, stored, mv string
	var e Entry
	err := b.db.QueryRowContext(ctx,
		`SELECT rules, notation, move, value, depth FROM positions WHERE key = ?`,
		Key(pos)).Scan(&storedRules, &stored, &mv, &e.Value, &e.Depth)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	if stored != notation || storedRules != rulesTag(pos.Rules()) {
		// Key collision with another position.
		return Entry{}, ErrNotFound
	}
	e.Move, err = move.Parse(mv)
	if err != nil {
		return Entry{}, fmt.Errorf("book entry for %q: %w", notation, err)
	}
	return e, nil
}

// Put saves e for pos. An existing entry is only replaced by one searched
// at least as deep.
func (b *Book) Put(ctx context.Context, pos *board.Position, e Entry) error {
	if e.Move.IsNone() {
		return fmt.Errorf("no move to store for %q", pos.Notation())
	}
	_, err := b.db.ExecContext(ctx, `
INSERT INTO positions (key, rules, notation, move, value, depth) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	rules = excluded.rules,
	notation = excluded.notation,
	move = excluded.move,
	value = excluded.value,
	depth = excluded.depth
WHERE excluded.depth >= positions.depth`,
		Key(pos), rulesTag(pos.Rules()), pos.Notation(), e.Move.String(), e.Value, e.Depth)
	return err
}

// Len is the number of positions in the book.
func (b *Book) Len(ctx context.Context) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM positions`).Scan(&n)
	return n, err
}
