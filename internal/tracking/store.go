package tracking

import (
	"errors"
	"hash/fnv"
	"log"
	"sync"

	"mealtrail-backend/internal/models"

	"github.com/google/uuid"
)

const shardCount = 16

// PositionSource tags which feed currently owns live position updates for an
// order. Either the partner's real device reports or the movement simulator
// does - never both concurrently for the same order.
type PositionSource string

const (
	SourceDevice    PositionSource = "device"
	SourceSimulator PositionSource = "simulator"
)

// ErrSourceOwned is returned when a publisher tries to claim an order whose
// live updates are owned by the other source.
var ErrSourceOwned = errors.New("order position feed is owned by another source")

// Subscription is the handle returned by Subscribe and consumed by Unsubscribe.
type Subscription struct {
	id   string
	key  ChannelKey
	sink Sink
}

type storeShard struct {
	mu     sync.RWMutex
	latest map[string]models.PositionSample        // orderID -> latest sample
	owners map[string]PositionSource               // orderID -> owning feed
	subs   map[ChannelKey]map[string]*Subscription // channel -> subscription id -> sub
}

// Store holds the latest known position per order and fans updates out to live
// subscribers. It replaces ambient global maps with an injected registry of
// sharded, mutex-protected maps so instances can be torn down cleanly and
// isolated in tests.
//
// Raw coordinate ticks go only to the order's channel; lifecycle events
// (creation, status change) additionally reach the owning restaurant-owner's
// channel and the admin-wide channel.
type Store struct {
	shards [shardCount]*storeShard
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &storeShard{
			latest: make(map[string]models.PositionSample),
			owners: make(map[string]PositionSource),
			subs:   make(map[ChannelKey]map[string]*Subscription),
		}
	}
	return s
}

// shardFor hashes the channel's scope id so an order's subscribers, latest
// sample and source owner always live behind the same lock.
func (s *Store) shardFor(scope string) *storeShard {
	h := fnv.New32a()
	h.Write([]byte(scope))
	return s.shards[h.Sum32()%shardCount]
}

func scopeOf(key ChannelKey) string {
	k := string(key)
	if len(k) > 6 && k[:6] == "order:" {
		return k[6:]
	}
	if len(k) > 6 && k[:6] == "owner:" {
		return k[6:]
	}
	return k
}

// Subscribe registers a sink on a channel. For order channels the current
// latest sample, if any, is delivered to the new sink before any live update,
// and never duplicated by a concurrent publish.
//
// A sink that rejects the replay is closed, nothing is registered, and the
// returned handle is nil so the transport can tear the connection down.
func (s *Store) Subscribe(key ChannelKey, sink Sink) *Subscription {
	sub := &Subscription{id: uuid.New().String(), key: key, sink: sink}
	shard := s.shardFor(scopeOf(key))

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if shard.subs[key] == nil {
		shard.subs[key] = make(map[string]*Subscription)
	}
	shard.subs[key][sub.id] = sub

	// Late joiners get the current state before the live stream starts.
	// Done under the shard lock so a concurrent Publish cannot interleave.
	if sample, ok := shard.latest[scopeOf(key)]; ok && key == OrderChannel(sample.OrderID) {
		if err := sink.Send(models.Event{Type: models.EventTypeLocation, Payload: sample}); err != nil {
			delete(shard.subs[key], sub.id)
			if len(shard.subs[key]) == 0 {
				delete(shard.subs, key)
			}
			sink.Close()
			return nil
		}
	}
	return sub
}

// Unsubscribe deregisters the handle. Idempotent; the sink is not closed here,
// tearing down the connection is the transport's job.
func (s *Store) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	shard := s.shardFor(scopeOf(sub.key))
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if m := shard.subs[sub.key]; m != nil {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(shard.subs, sub.key)
		}
	}
}

// Publish overwrites the latest sample for the order and pushes it to every
// live subscriber of that order's channel.
func (s *Store) Publish(orderID string, sample models.PositionSample) {
	shard := s.shardFor(orderID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.latest[orderID] = sample
	s.fanOutLocked(shard, OrderChannel(orderID), models.Event{
		Type:    models.EventTypeLocation,
		Payload: sample,
	})
}

// PublishLifecycle pushes an order lifecycle event to the order's channel, the
// owning restaurant-owner's channel and the admin-wide channel.
func (s *Store) PublishLifecycle(eventType string, ownerID string, payload models.OrderLifecyclePayload) {
	event := models.Event{Type: eventType, Payload: payload}

	for _, key := range []ChannelKey{OrderChannel(payload.OrderID), OwnerChannel(ownerID), AdminChannel} {
		shard := s.shardFor(scopeOf(key))
		shard.mu.Lock()
		s.fanOutLocked(shard, key, event)
		shard.mu.Unlock()
	}
}

// fanOutLocked delivers an event to every subscriber of a channel. A failed
// push never propagates: the offending subscriber is dropped and delivery
// continues for the rest.
func (s *Store) fanOutLocked(shard *storeShard, key ChannelKey, event models.Event) {
	for id, sub := range shard.subs[key] {
		if err := sub.sink.Send(event); err != nil {
			log.Printf("⚠️ Tracking: dropping slow subscriber on %s: %v", key, err)
			delete(shard.subs[key], id)
			sub.sink.Close()
		}
	}
	if len(shard.subs[key]) == 0 {
		delete(shard.subs, key)
	}
}

// Latest returns the current sample for an order, for late joiners that need
// state before live updates arrive.
func (s *Store) Latest(orderID string) (models.PositionSample, bool) {
	shard := s.shardFor(orderID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	sample, ok := shard.latest[orderID]
	return sample, ok
}

// ClaimSource records which feed owns live updates for an order. Claiming a
// feed already owned by the same source is a no-op; claiming one owned by the
// other source fails with ErrSourceOwned.
func (s *Store) ClaimSource(orderID string, source PositionSource) error {
	shard := s.shardFor(orderID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if current, ok := shard.owners[orderID]; ok && current != source {
		return ErrSourceOwned
	}
	shard.owners[orderID] = source
	return nil
}

// ReleaseSource gives up ownership if the caller's source holds it.
func (s *Store) ReleaseSource(orderID string, source PositionSource) {
	shard := s.shardFor(orderID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if shard.owners[orderID] == source {
		delete(shard.owners, orderID)
	}
}

// SubscriberCount reports the live subscriptions on a channel.
func (s *Store) SubscriberCount(key ChannelKey) int {
	shard := s.shardFor(scopeOf(key))
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return len(shard.subs[key])
}
