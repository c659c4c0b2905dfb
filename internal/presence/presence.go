package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps advisory online/last-seen state in redis so profile-facing
// collaborators can read it. It is not authoritative: the in-process
// registry decides what is delivered where.
type Store struct {
	rdb *redis.Client
}

// NewStore constructs a Store. A nil client turns every call into a no-op.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func key(userID int) string {
	return "presence:" + strconv.Itoa(userID)
}

// MarkOnline flags the user online.
func (s *Store) MarkOnline(ctx context.Context, userID int) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.HSet(ctx, key(userID), "online", 1, "last_seen", time.Now().UTC().Format(time.RFC3339)).Err()
}

// MarkOffline flags the user offline with a last-seen timestamp.
func (s *Store) MarkOffline(ctx context.Context, userID int) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.HSet(ctx, key(userID), "online", 0, "last_seen", time.Now().UTC().Format(time.RFC3339)).Err()
}

