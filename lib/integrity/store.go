// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"context"
	"errors"
	"sync"

	"github.com/vellum-foundation/vellum/lib/codec"
	"github.com/vellum-foundation/vellum/lib/identity"
)

// ErrChainNotFound is returned when no chain exists for an instance.
var ErrChainNotFound = errors.New("chain not found")

// ChainStore persists workflow event chains.
type ChainStore interface {
	// Save writes the chain, replacing any stored version.
	Save(ctx context.Context, chain *Chain) error

	// Load returns the chain for an instance, or ErrChainNotFound.
	Load(ctx context.Context, instanceID identity.WorkflowInstanceID) (*Chain, error)

	// ForDocument returns the instance IDs of every chain recorded
	// for a document.
	ForDocument(ctx context.Context, documentID identity.DocumentID) ([]identity.WorkflowInstanceID, error)
}

// MemoryChainStore is an in-process ChainStore for tests and
// single-process deployments.
type MemoryChainStore struct {
	mu     sync.Mutex
	chains map[identity.WorkflowInstanceID][]byte
	byDoc  map[identity.DocumentID][]identity.WorkflowInstanceID
}

// NewMemoryChainStore returns an empty in-memory store.
func NewMemoryChainStore() *MemoryChainStore {
	return &MemoryChainStore{
		chains: make(map[identity.WorkflowInstanceID][]byte),
		byDoc:  make(map[identity.DocumentID][]identity.WorkflowInstanceID),
	}
}

// Save stores a deep copy of the chain via its canonical encoding, so
// later mutation of the caller's chain cannot corrupt the stored one.
func (s *MemoryChainStore) Save(ctx context.Context, chain *Chain) error {
	encoded, err := codec.Marshal(chain)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.chains[chain.InstanceID]; !exists {
		s.byDoc[chain.DocumentID] = append(s.byDoc[chain.DocumentID], chain.InstanceID)
	}
	s.chains[chain.InstanceID] = encoded
	return nil
}

func (s *MemoryChainStore) Load(ctx context.Context, instanceID identity.WorkflowInstanceID) (*Chain, error) {
	s.mu.Lock()
	encoded, ok := s.chains[instanceID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrChainNotFound
	}
	var chain Chain
	if err := codec.Unmarshal(encoded, &chain); err != nil {
		return nil, err
	}
	return &chain, nil
}

func (s *MemoryChainStore) ForDocument(ctx context.Context, documentID identity.DocumentID) ([]identity.WorkflowInstanceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]identity.WorkflowInstanceID(nil), s.byDoc[documentID]...), nil
}
