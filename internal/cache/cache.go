// Package cache provides a prefix-namespaced key-value store with TTL expiry,
// used to front the registry client and to park short-lived state such as
// pending MFA setups. Backends may be process-local or shared (Redis); the
// contract guarantees TTL expiry and read-your-write consistency within a
// single backing instance only.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Well-known key prefixes. Effective key is always "<prefix>:<key>", so
// different cache uses cannot collide inside one shared store.
const (
	PrefixLicenseVerify      = "license_verify"
	PrefixWebhookIdempotency = "webhook_idempotency"
	PrefixMFAPending         = "mfa_pending"
)

// Store is a generic key-value cache with per-entry TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Namespace wraps a Store so every key is transparently prefixed.
type Namespace struct {
	store  Store
	prefix string
}

// NewNamespace creates a prefixed view over a shared store.
func NewNamespace(store Store, prefix string) *Namespace {
	return &Namespace{store: store, prefix: prefix}
}

func (n *Namespace) key(key string) string {
	return n.prefix + ":" + key
}

// Get retrieves a value by key within the namespace.
func (n *Namespace) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.store.Get(ctx, n.key(key))
}

// Set stores a value by key within the namespace.
func (n *Namespace) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.store.Set(ctx, n.key(key), value, ttl)
}

// Delete removes a key within the namespace.
func (n *Namespace) Delete(ctx context.Context, key string) error {
	return n.store.Delete(ctx, n.key(key))
}

// GetJSON retrieves and unmarshals a cached value into dest.
// Returns false if the key is absent or expired.
func (n *Namespace) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, ok, err := n.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached value for %q: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals and stores a value.
func (n *Namespace) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}
	return n.Set(ctx, key, raw, ttl)
}
