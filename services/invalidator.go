package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/cppla/pacts/queue"
	"github.com/cppla/pacts/utils"
)

// Cache keys shared by readers and invalidators.
const (
	FeedCachePrefix    = "cache:feed:"
	pactPageKeyPrefix  = "cache:pact:detail:"
	profileCachePrefix = "cache:user:profile:"
)

// PactPageKey is the cache key for a pact page.
func PactPageKey(pactID uint) string {
	return pactPageKeyPrefix + strconv.FormatUint(uint64(pactID), 10)
}

// ProfileKey is the cache key for a user profile.
func ProfileKey(userID uint) string {
	return profileCachePrefix + strconv.FormatUint(uint64(userID), 10)
}

// Invalidator receives "the page for this pact is stale" signals.
type Invalidator interface {
	PactStale(ctx context.Context, pactID uint) error
}

// NopInvalidator drops every signal.
type NopInvalidator struct{}

func (NopInvalidator) PactStale(context.Context, uint) error { return nil }

// CacheInvalidator evicts the pact page and the feed from the page cache.
type CacheInvalidator struct {
	cache *utils.Cache
}

func NewCacheInvalidator(cache *utils.Cache) *CacheInvalidator {
	return &CacheInvalidator{cache: cache}
}

func (c *CacheInvalidator) PactStale(ctx context.Context, pactID uint) error {
	if err := c.cache.Delete(ctx, PactPageKey(pactID)); err != nil {
		return err
	}
	return c.cache.InvalidateByPrefix(ctx, FeedCachePrefix)
}

// EventPublisher is satisfied by *queue.Publisher.
type EventPublisher interface {
	PublishPactStale(ctx context.Context, ev queue.PactStaleEvent) error
}

// EventInvalidator forwards stale signals to a message broker for other consumers.
type EventInvalidator struct {
	pub EventPublisher
}

func NewEventInvalidator(pub EventPublisher) *EventInvalidator {
	return &EventInvalidator{pub: pub}
}

func (e *EventInvalidator) PactStale(ctx context.Context, pactID uint) error {
	return e.pub.PublishPactStale(ctx, queue.NewPactStaleEvent(pactID))
}

// FanOut delivers every signal to all targets and joins their errors.
type FanOut []Invalidator

func (f FanOut) PactStale(ctx context.Context, pactID uint) error {
	var errs []error
	for _, inv := range f {
		if inv == nil {
			continue
		}
		if err := inv.PactStale(ctx, pactID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
