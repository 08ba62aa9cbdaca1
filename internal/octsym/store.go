// Package octsym implements the global symbol store ("flat storage"):
// a resizable, open-addressed hash table with per-bucket singly-linked
// collision chains, keyed by a bounded-length byte string (spec.md §4.3,
// grounded on Headers/FlatStorage.hpp / FlatStorage.cpp), plus the
// per-function relocation table that binds bytecode indices to symbols
// resolved against a store (spec.md §4.4, grounded on
// Headers/Functions.hpp's RelocationTable).
package octsym

import (
	"fmt"
	"strings"

	"github.com/octanevm/octane/internal/octsync"
	"github.com/octanevm/octane/internal/octutil"
)

// Type is the symbol's tag (spec.md §3).
type Type int

const (
	TypeInvalid Type = iota
	TypeFunc
	TypeData
	TypeMetadata
	TypeCollection
	TypeExtended
)

// ErrCode enumerates the symbol-store error taxonomy (spec.md §7).
type ErrCode int

const (
	Ok ErrCode = iota
	ErrSymbolExists
	ErrInvalidKey
	ErrInvalidValue
	ErrInvalidStorage
	ErrNotEnoughSpace
)

func (e ErrCode) String() string {
	switch e {
	case Ok:
		return "ok"
	case ErrSymbolExists:
		return "symbol_exists"
	case ErrInvalidKey:
		return "invalid_key"
	case ErrInvalidValue:
		return "invalid_value"
	case ErrInvalidStorage:
		return "invalid_storage"
	case ErrNotEnoughSpace:
		return "not_enough_space"
	default:
		return "unknown"
	}
}

// MaxKeyLen is the maximum key length, excluding any terminator (spec.md §3).
const MaxKeyLen = 254

// baseBucketCount and growthStep are the store's initial size and additive
// growth step (spec.md §4.3).
const (
	baseBucketCount = 32
	growthStep      = 16
)

// Symbol is a tagged value held in the store.
type Symbol struct {
	Type         Type
	ExtendedType uint32
	Value        any // untyped payload reference; the store does not own it

	key     string
	keyHash uint64
	next    *Symbol // intra-bucket collision chain
}

// Key returns the symbol's owned key copy.
func (s *Symbol) Key() string { return s.key }

// Request is the input to Assign.
type Request struct {
	Type         Type
	ExtendedType uint32
	Key          string
	Value        any
}

// Store is the flat, open-addressed symbol table.
type Store struct {
	mu       octsync.Mutex
	buckets  []*Symbol // each slot holds the head of a collision chain, or nil
	count    int       // populated_count
	initialized bool
}

// NewStore returns an initialized store with the base bucket count.
func NewStore() *Store {
	return &Store{
		buckets:     make([]*Symbol, baseBucketCount),
		initialized: true,
	}
}

func bucketIndex(hash uint64, bucketCount int) int {
	return int(hash % uint64(bucketCount))
}

// Assign inserts a new symbol. See spec.md §4.3 for the full error taxonomy.
func (s *Store) Assign(req Request) (*Symbol, ErrCode) {
	sc := octsync.NewScoped(&s.mu)
	defer sc.Unlock()

	if !s.initialized {
		return nil, ErrInvalidStorage
	}
	if len(req.Key) == 0 || len(req.Key) > MaxKeyLen {
		return nil, ErrInvalidKey
	}

	if s.count+1 >= len(s.buckets) {
		s.grow()
	}

	hash := octutil.SDBM64([]byte(req.Key))
	idx := bucketIndex(hash, len(s.buckets))

	for cur := s.buckets[idx]; cur != nil; cur = cur.next {
		if cur.keyHash == hash && cur.key == req.Key {
			return nil, ErrSymbolExists
		}
	}

	sym := &Symbol{
		Type:         req.Type,
		ExtendedType: req.ExtendedType,
		Value:        req.Value,
		key:          req.Key,
		keyHash:      hash,
	}
	sym.next = s.buckets[idx]
	s.buckets[idx] = sym
	s.count++
	return sym, Ok
}

// Lookup returns the symbol for key, or nil if absent.
func (s *Store) Lookup(key string) *Symbol {
	sc := octsync.NewScoped(&s.mu)
	defer sc.Unlock()
	return s.lookupLocked(key)
}

func (s *Store) lookupLocked(key string) *Symbol {
	if !s.initialized || key == "" {
		return nil
	}
	hash := octutil.SDBM64([]byte(key))
	idx := bucketIndex(hash, len(s.buckets))
	for cur := s.buckets[idx]; cur != nil; cur = cur.next {
		if cur.keyHash == hash && cur.key == key {
			return cur
		}
	}
	return nil
}

// Delete removes the first symbol whose key matches. Per spec.md's
// deliberately-not-mirrored Open Question, this guards only against a nil
// key or an uninitialized store — it does NOT reproduce the original's
// inverted "only delete when the map is empty" bug.
func (s *Store) Delete(key string) bool {
	sc := octsync.NewScoped(&s.mu)
	defer sc.Unlock()

	if !s.initialized || key == "" {
		return false
	}
	hash := octutil.SDBM64([]byte(key))
	idx := bucketIndex(hash, len(s.buckets))

	var prev *Symbol
	for cur := s.buckets[idx]; cur != nil; cur = cur.next {
		if cur.keyHash == hash && cur.key == key {
			if prev == nil {
				s.buckets[idx] = cur.next
			} else {
				prev.next = cur.next
			}
			s.count--
			return true
		}
		prev = cur
	}
	return false
}

// grow adds growthStep buckets and reinserts every symbol, preserving the
// symbol records themselves — only the bucket array is reallocated
// (spec.md §4.3's growth protocol). Must be called with s.mu held.
func (s *Store) grow() {
	newBuckets := make([]*Symbol, len(s.buckets)+growthStep)
	for _, head := range s.buckets {
		for cur := head; cur != nil; {
			next := cur.next // save before relinking
			idx := bucketIndex(cur.keyHash, len(newBuckets))
			cur.next = newBuckets[idx]
			newBuckets[idx] = cur
			cur = next
		}
	}
	s.buckets = newBuckets
}

// BucketCount exposes the current bucket array length.
func (s *Store) BucketCount() int {
	sc := octsync.NewScoped(&s.mu)
	defer sc.Unlock()
	return len(s.buckets)
}

// Count exposes populated_count.
func (s *Store) Count() int {
	sc := octsync.NewScoped(&s.mu)
	defer sc.Unlock()
	return s.count
}

// Dump renders a human-readable snapshot of the store, the debug-dump
// convenience spec.md §7 allows on the symbol store.
func (s *Store) Dump() string {
	sc := octsync.NewScoped(&s.mu)
	defer sc.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "Store{buckets=%d count=%d}\n", len(s.buckets), s.count)
	for i, head := range s.buckets {
		if head == nil {
			continue
		}
		fmt.Fprintf(&b, "  [%d]", i)
		for cur := head; cur != nil; cur = cur.next {
			fmt.Fprintf(&b, " -> %q(type=%d)", cur.key, cur.Type)
		}
		b.WriteString("\n")
	}
	return b.String()
}
