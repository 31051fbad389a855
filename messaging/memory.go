// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// subscriberBuffer is the per-subscription channel capacity. A slow
// subscriber that fills its buffer loses messages rather than
// blocking publishers; subscribers needing durability belong on a
// durable transport.
const subscriberBuffer = 256

// Memory is the in-process transport: a Bus and a Buckets provider
// backed by process-local state. It is the default transport for
// single-node deployments and the only one used in tests.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	closed      bool
	subscribers map[int]*memorySubscriber
	nextSubID   int
	buckets     map[string]*memoryBucket
}

type memorySubscriber struct {
	pattern string
	channel chan Message
}

// NewMemory returns an empty in-process transport.
func NewMemory() *Memory {
	return &Memory{
		subscribers: make(map[int]*memorySubscriber),
		buckets:     make(map[string]*memoryBucket),
	}
}

// Publish delivers data to every subscription whose pattern matches
// subject. Delivery is non-blocking: a subscriber whose buffer is
// full misses the message.
func (m *Memory) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &BusError{Op: "publish", Subject: subject, Err: err}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return &BusError{Op: "publish", Subject: subject, Err: ErrClosed}
	}

	message := Message{Subject: subject, Data: data}
	for _, sub := range m.subscribers {
		if MatchSubject(sub.pattern, subject) {
			select {
			case sub.channel <- message:
			default:
			}
		}
	}
	return nil
}

// Subscribe registers a pattern subscription. The returned
// subscription's channel closes on Unsubscribe or transport Close.
func (m *Memory) Subscribe(ctx context.Context, pattern string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &BusError{Op: "subscribe", Subject: pattern, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, &BusError{Op: "subscribe", Subject: pattern, Err: ErrClosed}
	}

	id := m.nextSubID
	m.nextSubID++
	sub := &memorySubscriber{
		pattern: pattern,
		channel: make(chan Message, subscriberBuffer),
	}
	m.subscribers[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.subscribers[id]; ok {
				delete(m.subscribers, id)
				close(sub.channel)
			}
		})
	}

	return &Subscription{C: sub.channel, cancel: cancel}, nil
}

// Bucket returns the named bucket, creating it on first use.
func (m *Memory) Bucket(ctx context.Context, name string) (Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, &BusError{Op: "bucket", Subject: name, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, &BusError{Op: "bucket", Subject: name, Err: ErrClosed}
	}

	bucket, ok := m.buckets[name]
	if !ok {
		bucket = &memoryBucket{name: name, objects: make(map[string][]byte)}
		m.buckets[name] = bucket
	}
	return bucket, nil
}

// Close shuts the transport down: all subscription channels close and
// further operations fail with ErrClosed. Bucket contents are
// retained until the process exits.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, sub := range m.subscribers {
		delete(m.subscribers, id)
		close(sub.channel)
	}
}

// memoryBucket is a process-local object bucket.
type memoryBucket struct {
	name    string
	mu      sync.RWMutex
	objects map[string][]byte
}

func (b *memoryBucket) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &BusError{Op: "bucket.put", Subject: b.name + "/" + key, Err: err}
	}
	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = stored
	return nil
}

func (b *memoryBucket) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &BusError{Op: "bucket.get", Subject: b.name + "/" + key, Err: err}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

func (b *memoryBucket) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return &BusError{Op: "bucket.delete", Subject: b.name + "/" + key, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memoryBucket) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &BusError{Op: "bucket.list", Subject: b.name, Err: err}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	// Sorted so that ordering is stable within a call.
	sort.Strings(keys)
	return keys, nil
}
