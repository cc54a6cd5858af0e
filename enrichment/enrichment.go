// Package enrichment implements the EnrichmentCache described in
// spec.md §4.6: a Redis-backed key/value store the Dispatcher's
// modules use for page-title memoization, thread title/id
// memoization, and debounce bits, plus a pub/sub feed of
// "newusers:*" key expirations. Connection errors are non-fatal: every
// operation returns an error the caller logs, and the pipeline keeps
// running.
package enrichment

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// pageTitleCacheSize bounds the in-process read-through layer sitting
// in front of Get for page titles: the same oldid/diff pair is looked
// up twice per edit (spec.md §4.7's pagetitle property), so a small
// LRU avoids a redundant Redis round trip for the common case.
const pageTitleCacheSize = 4096

// expiredKeyspaceChannel is the keyspace-notification pattern for
// expired keys on database 0, per spec.md §4.6's pub/sub requirement.
// Requires the Redis server to have notify-keyspace-events including
// "Ex" enabled.
const expiredKeyspaceChannel = "__keyevent@0__:expired"

// Cache wraps a redis.UniversalClient (a single node over TCP, or a
// Unix socket, per spec.md §6) behind the six EnrichmentCache
// operations, with a local LRU read-through layer for page titles in
// front of Get.
type Cache struct {
	client redis.UniversalClient
	titles *lru.Cache[string, string]
}

// New builds a Cache around client.
func New(client redis.UniversalClient) *Cache {
	titles, err := lru.New[string, string](pageTitleCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// pageTitleCacheSize never is.
		panic(err)
	}
	return &Cache{client: client, titles: titles}
}

// Get returns the value stored under key, or "", false if absent or
// on a connection error (logged by the caller, per spec.md §4.6).
func (c *Cache) Get(ctx context.Context, key string) (string, bool, errors.E) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WithStack(err)
	}
	return value, true, nil
}

// Set stores value under key with no expiration.
func (c *Cache) Set(ctx context.Context, key, value string) errors.E {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// SetBit sets bit offset 0 of key to 1, used as the debounce flag for
// vandalism alerts and new-user expiry triggers (spec.md §4.6).
func (c *Cache) SetBit(ctx context.Context, key string) errors.E {
	if err := c.client.SetBit(ctx, key, 0, 1).Err(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Expire sets key's time-to-live, used to schedule the expiration
// event a module subscribes to via Expirations.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) errors.E {
	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Del removes key.
func (c *Cache) Del(ctx context.Context, key string) errors.E {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, errors.E) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return n > 0, nil
}

// GetPageTitle returns the page title cached under key ("{wiki}-{revid}",
// per spec.md §4.7's pagetitle property), checking the local LRU
// before falling through to Redis.
func (c *Cache) GetPageTitle(ctx context.Context, key string) (string, bool, errors.E) {
	if title, ok := c.titles.Get(key); ok {
		return title, true, nil
	}
	title, ok, errE := c.Get(ctx, "pagetitle:"+key)
	if errE != nil || !ok {
		return "", false, errE
	}
	c.titles.Add(key, title)
	return title, true, nil
}

// SetPageTitle stores title under key in both the local LRU and
// Redis, so other KockaLogger instances sharing the same Redis
// benefit from the memoization too.
func (c *Cache) SetPageTitle(ctx context.Context, key, title string) errors.E {
	c.titles.Add(key, title)
	return c.Set(ctx, "pagetitle:"+key, title)
}

// Expiration is a parsed "newusers:{user}:{wiki}:{lang}:{domain}"
// debounce key's expiry event, per spec.md §3's key shape — the full
// tuple a synthetic newusers event needs, not just the bare user
// name.
type Expiration struct {
	User     string
	Wiki     string
	Language string
	Domain   string
}

// parseNewUserExpiration splits an expired "newusers:*" key into its
// four fields. wiki/language/domain are plain subdomain/code tokens
// (never contain ":"), so a fixed 4-way split is exact.
func parseNewUserExpiration(key string) (Expiration, bool) {
	rest, ok := strings.CutPrefix(key, "newusers:")
	if !ok {
		return Expiration{}, false
	}
	parts := strings.SplitN(rest, ":", 4) //nolint:mnd
	if len(parts) != 4 {
		return Expiration{}, false
	}
	return Expiration{User: parts[0], Wiki: parts[1], Language: parts[2], Domain: parts[3]}, true
}

// Subscriber listens for Redis key-expiration events and reports each
// expired "newusers:*" key, fully parsed, on a channel, for the
// framework glue to dispatch as a synthetic newusers Message (spec.md
// §4.6). It runs until ctx is cancelled.
type Subscriber struct {
	client redis.UniversalClient
	logger zerolog.Logger
}

// NewSubscriber builds a Subscriber around its own dedicated
// connection: PSUBSCRIBE blocks the connection for its lifetime, so
// it must not share one with Cache's request/response operations.
func NewSubscriber(client redis.UniversalClient, logger zerolog.Logger) *Subscriber {
	return &Subscriber{client: client, logger: logger}
}

// Run subscribes to the expired-keys keyspace channel and sends every
// parsed "newusers:{user}:{wiki}:{lang}:{domain}" expiration to
// expirations, until ctx is cancelled. Requires the server to have
// notify-keyspace-events including "Ex" configured.
func (s *Subscriber) Run(ctx context.Context, expirations chan<- Expiration) {
	defer close(expirations)

	pubsub := s.client.PSubscribe(ctx, expiredKeyspaceChannel)
	defer pubsub.Close() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			expiration, isNewUser := parseNewUserExpiration(msg.Payload)
			if !isNewUser {
				continue
			}
			select {
			case expirations <- expiration:
			case <-ctx.Done():
				return
			}
		}
	}
}
