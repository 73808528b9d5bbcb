package sisapi

import (
	"sort"
	"sync"
)

// DefaultIDKey is the identifier field used by most API resources.
const DefaultIDKey = "id"

// RecordCache is an in-memory store of previously fetched API records
// for one resource type, keyed by an identifier field. Beyond plain
// id lookup it tracks field coverage: the set of field names ever
// populated across all cached records. Accessors use that to decide
// whether the cache can satisfy a call that needs specific fields, so
// a partial projection from an earlier fetch never silently masks
// missing data on a more field-hungry one.
//
// A cache is safe for concurrent use; each instance carries its own
// mutex so independent resource types never contend.
type RecordCache struct {
	mu          sync.RWMutex
	idKey       string
	sortKey     string
	records     map[string]Record
	order       []string
	knownFields map[string]struct{}
}

// CacheOption configures a RecordCache.
type CacheOption func(*RecordCache)

// WithIDKey sets the identifier field. Defaults to "id".
func WithIDKey(idKey string) CacheOption {
	return func(c *RecordCache) {
		c.idKey = idKey
	}
}

// WithSortKey orders List results by the natural (lexical) order of the
// named field's value. Ties keep insertion order.
func WithSortKey(sortKey string) CacheOption {
	return func(c *RecordCache) {
		c.sortKey = sortKey
	}
}

// NewRecordCache creates an empty cache.
func NewRecordCache(opts ...CacheOption) *RecordCache {
	cache := &RecordCache{
		idKey:       DefaultIDKey,
		records:     make(map[string]Record),
		knownFields: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// IDKey returns the identifier field this cache keys on.
func (c *RecordCache) IDKey() string {
	return c.idKey
}

// Add upserts records by id. A record whose id already exists is merged
// field-by-field into the cached copy rather than duplicated. Field
// coverage grows by every field name added with a non-empty value.
// Records without an id under the cache's id key are rejected.
func (c *RecordCache) Add(records ...Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range records {
		id, ok := record.ID(c.idKey)
		if !ok {
			return &ValidationError{
				Field:  c.idKey,
				Reason: "record is missing its identifier field",
			}
		}

		existing, cached := c.records[id]
		if !cached {
			existing = make(Record, len(record))
			c.records[id] = existing
			c.order = append(c.order, id)
		}

		for field, value := range record {
			existing[field] = value
			if populated(value) {
				c.knownFields[field] = struct{}{}
			}
		}
	}

	return nil
}

// Get returns the cached record for id, or false on a miss. The record
// is a copy; mutating it does not touch the cache.
func (c *RecordCache) Get(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, ok := c.records[id]
	if !ok {
		return nil, false
	}

	return record.Clone(), true
}

// List returns all cached records matching filter (nil matches all),
// ordered by the sort key when one is configured, else by insertion.
func (c *RecordCache) List(filter Filter) []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := make([]Record, 0, len(c.order))

	for _, id := range c.order {
		record := c.records[id]
		if len(filter) > 0 && !record.Matches(filter) {
			continue
		}

		matched = append(matched, record.Clone())
	}

	if c.sortKey != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].String(c.sortKey) < matched[j].String(c.sortKey)
		})
	}

	return matched
}

// ListByID returns the matching records re-keyed into an id → record
// map instead of an ordered sequence.
func (c *RecordCache) ListByID(filter Filter) map[string]Record {
	records := c.List(filter)
	byID := make(map[string]Record, len(records))

	for _, record := range records {
		id, ok := record.ID(c.idKey)
		if !ok {
			continue
		}

		byID[id] = record
	}

	return byID
}

// HasFields reports whether every named field has been populated in at
// least one record added since the last full invalidation. This is the
// cache-staleness signal: a caller needing a field outside the covered
// set must treat the cache as a miss even when the id is present.
func (c *RecordCache) HasFields(fields ...string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, field := range fields {
		if _, ok := c.knownFields[field]; !ok {
			return false
		}
	}

	return true
}

// KnownFields returns the sorted field-coverage set.
func (c *RecordCache) KnownFields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fields := make([]string, 0, len(c.knownFields))
	for field := range c.knownFields {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	return fields
}

// Invalidate removes the listed ids. With no arguments it clears every
// record and resets field coverage.
func (c *RecordCache) Invalidate(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(ids) == 0 {
		c.records = make(map[string]Record)
		c.order = nil
		c.knownFields = make(map[string]struct{})

		return
	}

	for _, id := range ids {
		if _, ok := c.records[id]; !ok {
			continue
		}

		delete(c.records, id)

		for i, ordered := range c.order {
			if ordered == id {
				c.order = append(c.order[:i], c.order[i+1:]...)

				break
			}
		}
	}
}

// Len returns the number of cached records.
func (c *RecordCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.records)
}
