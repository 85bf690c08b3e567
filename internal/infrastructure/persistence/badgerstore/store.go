// Package badgerstore implements the player store and edition counter on an
// embedded Badger database. Every operation runs in a serializable Badger
// transaction; transactions that lose a write conflict are replayed.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

const (
	playerPrefix = "player:"
	seqKey       = "meta:player_seq"
	editionKey   = "meta:latest_edition"

	maxTxnAttempts = 64
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

// Options configures Open.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM (tests, ephemeral runs).
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// Open opens (or creates) the database.
func Open(opts Options, logger *slog.Logger) (*Store, error) {
	bo := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	}
	bo.Logger = nil // Badger's own logger is too chatty
	bo.SyncWrites = opts.SyncWrites
	bo.CompactL0OnClose = true

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("badger database opened", slog.String("path", opts.Path), slog.Bool("in_memory", opts.InMemory))

	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.logger.Info("closing badger database")
	return s.db.Close()
}

// Ping reports whether the database is open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger: database is closed")
	}
	return nil
}

// CollectGarbage rewrites value log files until Badger finds nothing worth
// rewriting. It returns the number of files rewritten.
func (s *Store) CollectGarbage(ctx context.Context, discardRatio float64) (int, error) {
	rewritten := 0
	for {
		if err := ctx.Err(); err != nil {
			return rewritten, err
		}
		err := s.db.RunValueLogGC(discardRatio)
		switch {
		case err == nil:
			rewritten++
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode), errors.Is(err, badger.ErrRejected):
			return rewritten, nil
		default:
			return rewritten, fmt.Errorf("badger: value log gc: %w", err)
		}
	}
}

// ════════════════════════════════════════════════════════════════════════════
// RECORD ENCODING
// ════════════════════════════════════════════════════════════════════════════

type playerRecord struct {
	Seq               uint64    `json:"seq"`
	UserID            int64     `json:"user_id"`
	Username          string    `json:"username"`
	NumGames          int       `json:"num_games"`
	Streak            int       `json:"streak"`
	ScoreAvg          float64   `json:"score_avg"`
	LastGame          int       `json:"last_game"`
	LastActiveChat    int64     `json:"last_active_chat"`
	MemberOfChats     []int64   `json:"member_of_chats"`
	ToggleRetroactive bool      `json:"toggle_retroactive"`
	Warning           bool      `json:"warning"`
	Synthetic         bool      `json:"synthetic"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toRecord(a *player.Aggregate, seq uint64) playerRecord {
	chats := make([]int64, len(a.MemberOfChats))
	for i, c := range a.MemberOfChats {
		chats[i] = int64(c)
	}
	return playerRecord{
		Seq:               seq,
		UserID:            int64(a.UserID),
		Username:          a.Username,
		NumGames:          a.NumGames,
		Streak:            a.Streak,
		ScoreAvg:          a.ScoreAvg,
		LastGame:          a.LastGame,
		LastActiveChat:    int64(a.LastActiveChat),
		MemberOfChats:     chats,
		ToggleRetroactive: a.ToggleRetroactive,
		Warning:           a.Warning,
		Synthetic:         a.Synthetic,
		Version:           a.Version,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func (r playerRecord) aggregate() *player.Aggregate {
	chats := make([]player.ChatID, len(r.MemberOfChats))
	for i, c := range r.MemberOfChats {
		chats[i] = player.ChatID(c)
	}
	return &player.Aggregate{
		UserID:            player.UserID(r.UserID),
		Username:          r.Username,
		NumGames:          r.NumGames,
		Streak:            r.Streak,
		ScoreAvg:          r.ScoreAvg,
		LastGame:          r.LastGame,
		LastActiveChat:    player.ChatID(r.LastActiveChat),
		MemberOfChats:     chats,
		ToggleRetroactive: r.ToggleRetroactive,
		Warning:           r.Warning,
		Synthetic:         r.Synthetic,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func playerKey(id player.UserID) []byte {
	return []byte(playerPrefix + strconv.FormatInt(int64(id), 10))
}

// ════════════════════════════════════════════════════════════════════════════
// TRANSACTION HELPERS
// ════════════════════════════════════════════════════════════════════════════

// update runs fn in a read-write transaction, replaying it on ErrConflict.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return shared.WrapError("player", "Update", shared.ErrConcurrentModification, "badger transaction kept conflicting", err)
}

func getRecord(txn *badger.Txn, id player.UserID) (playerRecord, error) {
	var rec playerRecord
	item, err := txn.Get(playerKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, shared.ErrPlayerNotFound
	}
	if err != nil {
		return rec, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return rec, err
}

func putRecord(txn *badger.Txn, rec playerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode player %d: %w", rec.UserID, err)
	}
	return txn.Set(playerKey(player.UserID(rec.UserID)), data)
}

// scan calls fn for every player record.
func scan(txn *badger.Txn, fn func(rec playerRecord) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(playerPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		var rec playerRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func readInt(txn *badger.Txn, key string) (int64, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v int64
	err = item.Value(func(val []byte) error {
		var perr error
		v, perr = strconv.ParseInt(string(val), 10, 64)
		return perr
	})
	return v, err
}

func writeInt(txn *badger.Txn, key string, v int64) error {
	return txn.Set([]byte(key), []byte(strconv.FormatInt(v, 10)))
}

// ════════════════════════════════════════════════════════════════════════════
// PLAYER REPOSITORY
// ════════════════════════════════════════════════════════════════════════════

var _ player.Repository = (*Store)(nil)

// Get returns the aggregate for id.
func (s *Store) Get(ctx context.Context, id player.UserID) (*player.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var agg *player.Aggregate
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		agg = rec.aggregate()
		return nil
	})
	return agg, err
}

// Create stores a new aggregate and assigns its creation sequence.
func (s *Store) Create(ctx context.Context, agg *player.Aggregate) error {
	if err := agg.Validate(); err != nil {
		return err
	}
	stored := agg.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
		stored.UpdatedAt = stored.CreatedAt
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := getRecord(txn, stored.UserID); err == nil {
			return shared.ErrPlayerAlreadyExists
		} else if !shared.IsNotFound(err) {
			return err
		}

		seq, err := readInt(txn, seqKey)
		if err != nil {
			return err
		}
		seq++
		if err := writeInt(txn, seqKey, seq); err != nil {
			return err
		}
		return putRecord(txn, toRecord(stored, uint64(seq)))
	})
}

// ConditionalUpdate reads, checks and writes inside one transaction.
func (s *Store) ConditionalUpdate(ctx context.Context, id player.UserID, cond player.Condition, mut player.Mutation) (bool, error) {
	var applied bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		applied = false
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		agg := rec.aggregate()
		if !cond.Matches(agg) {
			return nil
		}
		mut.Apply(agg, s.now())
		applied = true
		return putRecord(txn, toRecord(agg, rec.Seq))
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Delete removes the aggregate for id.
func (s *Store) Delete(ctx context.Context, id player.UserID) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := getRecord(txn, id); err != nil {
			return err
		}
		return txn.Delete(playerKey(id))
	})
}

// ListByChat returns the members of chat ordered by creation sequence.
func (s *Store) ListByChat(ctx context.Context, chat player.ChatID) ([]*player.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []playerRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, func(rec playerRecord) error {
			if slices.Contains(rec.MemberOfChats, int64(chat)) {
				recs = append(recs, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(recs, func(a, b playerRecord) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]*player.Aggregate, len(recs))
	for i, rec := range recs {
		out[i] = rec.aggregate()
	}
	return out, nil
}

// RemoveChat drops chat from every membership set.
func (s *Store) RemoveChat(ctx context.Context, chat player.ChatID) (int, error) {
	var n int
	mut := player.Mutation{}.LeaveChat(chat)
	err := s.update(ctx, func(txn *badger.Txn) error {
		n = 0
		var touched []playerRecord
		if err := scan(txn, func(rec playerRecord) error {
			if slices.Contains(rec.MemberOfChats, int64(chat)) {
				touched = append(touched, rec)
			}
			return nil
		}); err != nil {
			return err
		}

		now := s.now()
		for _, rec := range touched {
			agg := rec.aggregate()
			mut.Apply(agg, now)
			if err := putRecord(txn, toRecord(agg, rec.Seq)); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// Purge deletes every aggregate in scope.
func (s *Store) Purge(ctx context.Context, scope player.PurgeScope) (int, error) {
	if !scope.IsValid() {
		return 0, shared.NewDomainError("player", "Purge", shared.ErrInvalidInput, "unknown purge scope")
	}
	var n int
	err := s.update(ctx, func(txn *badger.Txn) error {
		n = 0
		var doomed []player.UserID
		if err := scan(txn, func(rec playerRecord) error {
			if scope == player.PurgeAll || rec.Synthetic {
				doomed = append(doomed, player.UserID(rec.UserID))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, id := range doomed {
			if err := txn.Delete(playerKey(id)); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// ════════════════════════════════════════════════════════════════════════════
// EDITION COUNTER
// ════════════════════════════════════════════════════════════════════════════

// EditionCounter stores the latest edition in the same database.
type EditionCounter struct {
	store *Store
}

// EditionCounter returns the counter bound to this store.
func (s *Store) EditionCounter() *EditionCounter {
	return &EditionCounter{store: s}
}

var _ player.EditionCounter = (*EditionCounter)(nil)

// Latest returns the stored edition, zero if never written.
func (c *EditionCounter) Latest(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var v int64
	err := c.store.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = readInt(txn, editionKey)
		return err
	})
	return int(v), err
}

// Advance stores max(current, edition).
func (c *EditionCounter) Advance(ctx context.Context, edition int) (int, error) {
	var result int64
	err := c.store.update(ctx, func(txn *badger.Txn) error {
		cur, err := readInt(txn, editionKey)
		if err != nil {
			return err
		}
		if int64(edition) <= cur {
			result = cur
			return nil
		}
		result = int64(edition)
		return writeInt(txn, editionKey, result)
	})
	return int(result), err
}

// Reset sets the counter unconditionally.
func (c *EditionCounter) Reset(ctx context.Context, edition int) error {
	return c.store.update(ctx, func(txn *badger.Txn) error {
		return writeInt(txn, editionKey, int64(edition))
	})
}
