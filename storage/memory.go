package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/martinemde/vanna/user"
)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*Conversation)}
}

func (s *MemoryStore) Create(ctx context.Context, conv *Conversation) error {
	cp, err := conv.Clone()
	if err != nil {
		return fmt.Errorf("copy conversation: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.convs[conv.ID]; ok && !existing.OwnedBy(conv.User) {
		return fmt.Errorf("create %s: %w", conv.ID, ErrConversationOwned)
	}
	s.convs[conv.ID] = cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string, u *user.User) (*Conversation, error) {
	s.mu.RLock()
	conv, ok := s.convs[id]
	s.mu.RUnlock()
	if !ok || !conv.OwnedBy(u) {
		return nil, nil
	}
	return conv.Clone()
}

func (s *MemoryStore) Update(ctx context.Context, conv *Conversation) error {
	cp, err := conv.Clone()
	if err != nil {
		return fmt.Errorf("copy conversation: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.convs[conv.ID]
	if !ok {
		return fmt.Errorf("update %s: %w", conv.ID, ErrConversationNotFound)
	}
	if !existing.OwnedBy(conv.User) {
		return fmt.Errorf("update %s: %w", conv.ID, ErrConversationOwned)
	}
	s.convs[conv.ID] = cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string, u *user.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok || !conv.OwnedBy(u) {
		return false, nil
	}
	delete(s.convs, id)
	return true, nil
}

func (s *MemoryStore) List(ctx context.Context, u *user.User, limit, offset int) ([]*Conversation, error) {
	s.mu.RLock()
	var owned []*Conversation
	for _, conv := range s.convs {
		if conv.OwnedBy(u) {
			owned = append(owned, conv)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].UpdatedAt.After(owned[j].UpdatedAt)
	})

	selected := page(owned, limit, offset)
	out := make([]*Conversation, 0, len(selected))
	for _, conv := range selected {
		cp, err := conv.Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}
