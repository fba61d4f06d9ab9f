package storage

import "context"

// Store is the durable key/value surface the bot needs: session token
// under two fixed keys, cached hour-lists under a namespaced family.
// A missing key reads as an empty string, not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// MSet writes all pairs as a single unit. The session token is
	// replaced through this so no intermediate state with only one
	// field updated is ever observable.
	MSet(ctx context.Context, pairs map[string]string) error
	Del(ctx context.Context, keys ...string) error
	// DelPrefix removes every key under the given prefix.
	DelPrefix(ctx context.Context, prefix string) error
}
