package capture

import (
	"container/list"
	"time"

	"github.com/mockbus/pubsub-capture/pkg/capture/cerr"
	"github.com/mockbus/pubsub-capture/pkg/concurrency"
	"github.com/mockbus/pubsub-capture/pkg/errors"
)

// handle is what order, byID and byTopic all point at: the list element
// wraps a Record so that removal from the doubly-linked order list is O(1)
// given the element pointer, matching the technique in
// pkg/datastructures/lru.Cache's entry type, generalized with a second
// index the generic LRU has no room for.
type handle struct {
	record Record
}

// Store is a thread-safe, bounded, multi-indexed in-memory repository of
// captured messages. The zero value is not usable; construct with New.
//
// Three structures move together under one lock: order (insertion/eviction
// sequence), byID (id -> element) and byTopic (topic -> per-topic ordered
// element list). Every public method keeps all three consistent before
// releasing the lock: each live record has exactly one entry in order, one
// in byID and one in its topic's byTopic sequence, in the same relative order.
type Store struct {
	mu       *concurrency.SmartRWMutex
	capacity int
	order    *list.List               // *list.Element.Value is *handle, oldest at Front
	byID     map[string]*list.Element // record id -> element in order
	byTopic  map[string][]*list.Element
}

// New constructs a Store with the given capacity. capacity must be
// positive.
func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, errors.New(errors.CodeInvalidArgument, "capacity must be positive", nil)
	}
	return &Store{
		mu:       concurrency.NewSmartRWMutex(concurrency.MutexConfig{Name: "capture.Store"}),
		capacity: capacity,
		order:    list.New(),
		byID:     make(map[string]*list.Element),
		byTopic:  make(map[string][]*list.Element),
	}, nil
}

// Capacity returns the store's fixed capacity.
func (s *Store) Capacity() int {
	return s.capacity
}

// Count returns the number of live records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len()
}

// Add inserts record, minting no new state beyond the three indices.
//
// If record.ID collides with a live record, the prior record is evicted
// first and the new one takes its place at the newest position — this is
// the id-collision replacement policy (§4.3): re-publishing an id is
// treated as a replacement, not an error, and keeps byID unique by
// construction. Otherwise, if the store is at capacity, the oldest record
// (front of order) is evicted to make room. Add never fails because of
// capacity; eviction absorbs the pressure.
//
// The critical section is O(1) on the plain and eviction paths: a map
// lookup, at most one list/index removal, and one append. Replacing a
// colliding id also scans that id's topic sequence to unlink it. No
// allocation-heavy work (copies, encoding) happens while the lock is held.
func (s *Store) Add(record Record) error {
	if record.ID == "" || record.Topic == "" {
		return cerr.NullMessage()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[record.ID]; ok {
		s.removeElement(existing)
	} else if s.order.Len() >= s.capacity {
		s.removeElement(s.order.Front())
	}

	el := s.order.PushBack(&handle{record: record})
	s.byID[record.ID] = el
	s.byTopic[record.Topic] = append(s.byTopic[record.Topic], el)

	return nil
}

// removeElement drops el from order, byID and byTopic. Caller must hold
// the write lock. el must be non-nil and live.
func (s *Store) removeElement(el *list.Element) {
	h := el.Value.(*handle)

	s.order.Remove(el)
	delete(s.byID, h.record.ID)

	topicSeq := s.byTopic[h.record.Topic]
	if len(topicSeq) > 0 && topicSeq[0] == el {
		// Eviction always removes the oldest record, which is also the
		// oldest in its topic: drop it by reslicing instead of compacting.
		topicSeq = topicSeq[1:]
	} else {
		for i, e := range topicSeq {
			if e == el {
				topicSeq = append(topicSeq[:i], topicSeq[i+1:]...)
				break
			}
		}
	}
	if len(topicSeq) == 0 {
		delete(s.byTopic, h.record.Topic)
	} else {
		s.byTopic[h.record.Topic] = topicSeq
	}
}

// GetAll returns every live record, oldest first, as an independent
// snapshot: mutations after the call returns never affect the slice.
func (s *Store) GetAll() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*handle).record.clone())
	}
	return out
}

// GetByTopic returns every live record for topic, in insertion order.
// An empty topic is an error; an unknown topic returns an empty (not nil)
// slice, not an error.
func (s *Store) GetByTopic(topic string) ([]Record, error) {
	if topic == "" {
		return nil, cerr.NullTopic()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.byTopic[topic]
	out := make([]Record, 0, len(seq))
	for _, el := range seq {
		out = append(out, el.Value.(*handle).record.clone())
	}
	return out, nil
}

// GetByTimeRange returns every live record whose Timestamp falls within
// [start, end], inclusive on both bounds. A degenerate range (start after
// end) returns an empty slice, not an error. The store keeps no time
// index; this is a linear scan over order, acceptable because it is not on
// the ingest hot path.
func (s *Store) GetByTimeRange(start, end time.Time) []Record {
	if start.After(end) {
		return []Record{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0)
	for el := s.order.Front(); el != nil; el = el.Next() {
		r := el.Value.(*handle).record
		if !r.Timestamp.Before(start) && !r.Timestamp.After(end) {
			out = append(out, r.clone())
		}
	}
	return out
}

// GetByID returns the record with the given id. An empty id is an error;
// an unknown id returns NotFound.
func (s *Store) GetByID(id string) (Record, error) {
	if id == "" {
		return Record{}, cerr.NullMessageID()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.byID[id]
	if !ok {
		return Record{}, cerr.NotFound(id)
	}
	return el.Value.(*handle).record.clone(), nil
}

// Clear drops every record and every index entry. Capacity is unchanged.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.Init()
	s.byID = make(map[string]*list.Element)
	s.byTopic = make(map[string][]*list.Element)
}
