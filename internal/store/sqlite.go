package store

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/crypto/blake2b"

	"github.com/KeiJoi/ffxivbingo4all/internal/bingo"
	"github.com/KeiJoi/ffxivbingo4all/internal/keylock"
)

// DefaultTimeout bounds every persistence call when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// errUnchanged lets a mutation report that nothing needs to be written.
var errUnchanged = errors.New("unchanged")

type Options struct {
	Timeout time.Duration
	Clock   quartz.Clock
}

// SQLStore implements Store on the rooms table. Each room is one JSONB
// document plus a digest of its room key.
//
// Read-modify-write cycles are serialized by an in-process lock per room
// code; the server process is the only writer.
type SQLStore struct {
	db      *sql.DB
	logger  *slog.Logger
	locks   *keylock.Locker
	clock   quartz.Clock
	timeout time.Duration
}

var _ Store = (*SQLStore)(nil)

// New wraps a migrated database.
func New(db *sql.DB, logger *slog.Logger, opts Options) *SQLStore {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	return &SQLStore{
		db:      db,
		logger:  logger.With("component", "store"),
		locks:   keylock.New(),
		clock:   opts.Clock,
		timeout: opts.Timeout,
	}
}

func keyDigest(roomKey string) string {
	sum := blake2b.Sum256([]byte(roomKey))
	return hex.EncodeToString(sum[:])
}

func sameDigest(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *SQLStore) unavailable(op, code string, err error) error {
	s.logger.Error("storage unavailable", "op", op, "room", code, "error", err)
	return fmt.Errorf("%w: %s %q: %v", bingo.ErrStorageUnavailable, op, code, err)
}

type roomRow struct {
	digest string
	data   string
}

func (s *SQLStore) readRow(ctx context.Context, code string) (roomRow, error) {
	var row roomRow
	err := s.db.QueryRowContext(ctx,
		`SELECT key_digest, json(data) FROM rooms WHERE code = ?`, code,
	).Scan(&row.digest, &row.data)
	if errors.Is(err, sql.ErrNoRows) {
		return roomRow{}, bingo.ErrNotFound
	}
	if err != nil {
		return roomRow{}, s.unavailable("read", code, err)
	}
	return row, nil
}

// decode returns nil for a document that cannot be parsed; such rooms are
// treated as missing.
func (s *SQLStore) decode(code, data string) *bingo.Room {
	var room bingo.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		s.logger.Warn("discarding unparseable room state", "room", code, "error", err)
		return nil
	}
	room.Code = code
	room.Normalize()
	return &room
}

func (s *SQLStore) write(ctx context.Context, digest string, room *bingo.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encoding room %q: %w", room.Code, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (code, key_digest, data, updated_at) VALUES (?, ?, jsonb(?), ?)
		 ON CONFLICT(code) DO UPDATE SET key_digest = excluded.key_digest, data = excluded.data, updated_at = excluded.updated_at`,
		room.Code, digest, string(data), room.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return s.unavailable("write", room.Code, err)
	}
	return nil
}

// access describes how a mutation authenticates.
type access struct {
	roomKey string
	keyed   bool
	// mustExist stops a keyed mutation from creating the room.
	mustExist bool
}

func hostAccess(roomKey string) access { return access{roomKey: roomKey, keyed: true} }

func validCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: room code required", bingo.ErrValidation)
	}
	return nil
}

// modify loads a room, applies fn, and saves it while holding the room's lock.
func (s *SQLStore) modify(ctx context.Context, code string, acc access, fn func(*bingo.Room) error) (*bingo.Room, error) {
	if err := validCode(code); err != nil {
		return nil, err
	}
	if acc.keyed && acc.roomKey == "" {
		return nil, fmt.Errorf("%w: room key required", bingo.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, code)
	if err != nil {
		return nil, s.unavailable("lock", code, err)
	}
	defer unlock()

	row, err := s.readRow(ctx, code)
	exists := err == nil
	if err != nil && !errors.Is(err, bingo.ErrNotFound) {
		return nil, err
	}

	digest := row.digest
	if acc.keyed {
		want := keyDigest(acc.roomKey)
		if exists && !sameDigest(digest, want) {
			return nil, bingo.ErrForbidden
		}
		digest = want
	}

	var room *bingo.Room
	if exists {
		room = s.decode(code, row.data)
	}
	if room == nil {
		if !acc.keyed || acc.mustExist {
			return nil, bingo.ErrNotFound
		}
		room = bingo.NewRoom(code)
	}

	if err := fn(room); err != nil {
		if errors.Is(err, errUnchanged) {
			return room, nil
		}
		return nil, err
	}

	room.Code = code
	room.UpdatedAt = s.clock.Now().UTC()
	room.Normalize()
	if err := s.write(ctx, digest, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *SQLStore) LoadRoom(ctx context.Context, code string) (*bingo.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row, err := s.readRow(ctx, code)
	if err != nil {
		return nil, err
	}
	room := s.decode(code, row.data)
	if room == nil {
		return nil, bingo.ErrNotFound
	}
	return room, nil
}

// SaveRoom upserts room under code and refreshes its UpdatedAt.
func (s *SQLStore) SaveRoom(ctx context.Context, code, roomKey string, room *bingo.Room) (*bingo.Room, error) {
	return s.modify(ctx, code, hostAccess(roomKey), func(r *bingo.Room) error {
		*r = *room.Clone()
		return nil
	})
}

// Authorize checks roomKey against an existing room.
func (s *SQLStore) Authorize(ctx context.Context, code, roomKey string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row, err := s.readRow(ctx, code)
	if err != nil {
		return err
	}
	if roomKey == "" || !sameDigest(row.digest, keyDigest(roomKey)) {
		return bingo.ErrForbidden
	}
	return nil
}

func (s *SQLStore) AppendCalledNumber(ctx context.Context, code, roomKey string, n int) (bool, *bingo.Room, error) {
	if !bingo.ValidNumber(n) {
		return false, nil, fmt.Errorf("%w: number %d outside 1-%d", bingo.ErrValidation, n, bingo.MaxNumber)
	}
	var added bool
	room, err := s.modify(ctx, code, hostAccess(roomKey), func(r *bingo.Room) error {
		var err error
		added, err = r.CallNumber(n)
		if err != nil {
			return err
		}
		if !added {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return added, room, nil
}

func (s *SQLStore) ReplaceHostState(ctx context.Context, code, roomKey string, state HostState) (*bingo.Room, error) {
	return s.modify(ctx, code, hostAccess(roomKey), func(r *bingo.Room) error {
		r.ReplaceHostState(state.CalledNumbers, state.IssuedCards, state.Config)
		return nil
	})
}

func (s *SQLStore) ResetRoom(ctx context.Context, code, roomKey string, v bingo.ResetVariant) (*bingo.Room, error) {
	acc := hostAccess(roomKey)
	acc.mustExist = true
	return s.modify(ctx, code, acc, func(r *bingo.Room) error {
		r.Reset(v)
		return nil
	})
}

// SetDaub adds or removes one mark. Seeds or card indexes outside the issued
// cards are ignored and report changed=false.
func (s *SQLStore) SetDaub(ctx context.Context, code, seed string, cardIndex, n int, marked bool) (bool, error) {
	var changed bool
	_, err := s.modify(ctx, code, access{}, func(r *bingo.Room) error {
		changed = r.SetMark(seed, cardIndex, n, marked)
		if !changed {
			return errUnchanged
		}
		return nil
	})
	return changed, err
}

// RecordWin appends a claim to the win history. With verify set, a claim in
// an enforced room must satisfy the game type on one of the seed's cards.
func (s *SQLStore) RecordWin(ctx context.Context, code, seed, callerName string, verify bool) (bingo.Win, error) {
	var win bingo.Win
	_, err := s.modify(ctx, code, access{}, func(r *bingo.Room) error {
		if !r.Admits(seed) {
			return bingo.ErrInvalidMembership
		}
		if verify && r.Enforced() {
			if _, ok := r.VerifyWin(seed); !ok {
				return bingo.ErrUnverifiedWin
			}
		}
		win = r.RecordWin(seed, callerName, s.clock.Now())
		return nil
	})
	return win, err
}

func (s *SQLStore) ListRoomsByKey(ctx context.Context, roomKey string) ([]RoomSummary, error) {
	if roomKey == "" {
		return nil, fmt.Errorf("%w: room key required", bingo.ErrValidation)
	}
	return s.list(ctx,
		`SELECT code, json(data) FROM rooms WHERE key_digest = ? ORDER BY updated_at DESC`,
		keyDigest(roomKey),
	)
}

func (s *SQLStore) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	return s.list(ctx, `SELECT code, json(data) FROM rooms ORDER BY updated_at DESC`)
}

func (s *SQLStore) list(ctx context.Context, query string, args ...any) ([]RoomSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.unavailable("list", "", err)
	}
	defer rows.Close()

	summaries := []RoomSummary{}
	for rows.Next() {
		var code, data string
		if err := rows.Scan(&code, &data); err != nil {
			return nil, s.unavailable("list", "", err)
		}
		if room := s.decode(code, data); room != nil {
			summaries = append(summaries, summarize(room))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.unavailable("list", "", err)
	}
	return summaries, nil
}

// CloseRoom deletes a room owned by roomKey.
func (s *SQLStore) CloseRoom(ctx context.Context, code, roomKey string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, code)
	if err != nil {
		return s.unavailable("lock", code, err)
	}
	defer unlock()

	row, err := s.readRow(ctx, code)
	if err != nil {
		return err
	}
	if roomKey == "" || !sameDigest(row.digest, keyDigest(roomKey)) {
		return bingo.ErrForbidden
	}
	return s.deleteLocked(ctx, code)
}

// DeleteRoom deletes a room regardless of its key.
func (s *SQLStore) DeleteRoom(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, code)
	if err != nil {
		return s.unavailable("lock", code, err)
	}
	defer unlock()

	return s.deleteLocked(ctx, code)
}

func (s *SQLStore) deleteLocked(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE code = ?`, code)
	if err != nil {
		return s.unavailable("delete", code, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return s.unavailable("delete", code, err)
	}
	if n == 0 {
		return bingo.ErrNotFound
	}
	return nil
}

// DeleteInactive removes rooms last updated before the cutoff and returns
// their codes.
func (s *SQLStore) DeleteInactive(ctx context.Context, before time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, s.unavailable("sweep", "", err)
	}
	defer tx.Rollback()

	cutoff := before.UnixMilli()
	rows, err := tx.QueryContext(ctx, `SELECT code FROM rooms WHERE updated_at < ? ORDER BY code`, cutoff)
	if err != nil {
		return nil, s.unavailable("sweep", "", err)
	}
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, s.unavailable("sweep", "", err)
		}
		codes = append(codes, code)
	}
	rows.Close()
	if len(codes) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE updated_at < ?`, cutoff); err != nil {
		return nil, s.unavailable("sweep", "", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.unavailable("sweep", "", err)
	}
	return codes, nil
}
