// Package idempotency keeps a Redis ledger of outbox events a worker has
// handed to the broker. A batch replayed after a failed commit consults the
// ledger instead of publishing again.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packquote-backend/pkg/redis"
)

// DefaultClaimTTL bounds how long a crashed worker can hold an event.
const DefaultClaimTTL = 2 * time.Minute

const (
	pendingValue    = "pending"
	publishedPrefix = "published:"
)

// Store is the Redis surface the ledger needs.
type Store interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type State int

const (
	// StateClaimed means the caller now owns the publish.
	StateClaimed State = iota
	// StatePublished means an earlier attempt confirmed the publish.
	StatePublished
	// StateInFlight means another attempt holds an unexpired claim.
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateClaimed:
		return "claimed"
	case StatePublished:
		return "published"
	case StateInFlight:
		return "in_flight"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Entry is what Claim found. MessageID is set for StatePublished.
type Entry struct {
	State     State
	MessageID string
}

// Ledger keys look like pq:idempotency:evt:<worker>:<event_id>.
type Ledger struct {
	store    Store
	ttl      time.Duration
	claimTTL time.Duration
}

// NewLedger remembers confirmed publishes for ttl.
func NewLedger(store Store, ttl time.Duration) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	claimTTL := DefaultClaimTTL
	if ttl > 0 && ttl < claimTTL {
		claimTTL = ttl
	}
	return &Ledger{store: store, ttl: ttl, claimTTL: claimTTL}, nil
}

// Claim reserves eventID for worker. When the event is already reserved it
// reports who got there first instead.
func (l *Ledger) Claim(ctx context.Context, worker string, eventID uuid.UUID) (Entry, error) {
	key, err := l.key(worker, eventID)
	if err != nil {
		return Entry{}, err
	}
	ok, err := l.store.SetNX(ctx, key, pendingValue, l.claimTTL)
	if err != nil {
		return Entry{}, fmt.Errorf("claim %s: %w", eventID, err)
	}
	if ok {
		return Entry{State: StateClaimed}, nil
	}

	raw, err := l.store.Get(ctx, key)
	switch {
	case redis.IsMiss(err):
		// Expired or released between the two calls; try once more.
		ok, err = l.store.SetNX(ctx, key, pendingValue, l.claimTTL)
		if err != nil {
			return Entry{}, fmt.Errorf("claim %s: %w", eventID, err)
		}
		if ok {
			return Entry{State: StateClaimed}, nil
		}
		return Entry{State: StateInFlight}, nil
	case err != nil:
		return Entry{}, fmt.Errorf("read claim %s: %w", eventID, err)
	}
	if id, found := strings.CutPrefix(raw, publishedPrefix); found {
		return Entry{State: StatePublished, MessageID: id}, nil
	}
	return Entry{State: StateInFlight}, nil
}

// Confirm records the broker's message id against a claimed event.
func (l *Ledger) Confirm(ctx context.Context, worker string, eventID uuid.UUID, messageID string) error {
	key, err := l.key(worker, eventID)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, key, publishedPrefix+messageID, l.ttl)
}

// Release drops the claim so the event can be published again.
func (l *Ledger) Release(ctx context.Context, worker string, eventID uuid.UUID) error {
	key, err := l.key(worker, eventID)
	if err != nil {
		return err
	}
	return l.store.Del(ctx, key)
}

func (l *Ledger) key(worker string, eventID uuid.UUID) (string, error) {
	if worker == "" {
		return "", errors.New("worker name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return l.store.IdempotencyKey("evt:"+worker, eventID.String()), nil
}
