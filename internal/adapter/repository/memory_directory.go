package repository

import (
	"context"
	"sync"

	"kowa/internal/domain/entity"
	"kowa/pkg/errors"
)

// MemoryDirectory serves user profiles and listings from memory. It backs the
// memory store driver and tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	users    map[string]*entity.UserProfile
	listings map[string]*entity.Listing
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:    make(map[string]*entity.UserProfile),
		listings: make(map[string]*entity.Listing),
	}
}

func (d *MemoryDirectory) PutUser(profile *entity.UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := *profile
	d.users[p.ID] = &p
}

func (d *MemoryDirectory) PutListing(listing *entity.Listing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := *listing
	d.listings[l.ID] = &l
}

func (d *MemoryDirectory) GetProfile(ctx context.Context, id string) (*entity.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	out := *p
	return &out, nil
}

func (d *MemoryDirectory) GetListing(ctx context.Context, id string) (*entity.Listing, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	l, ok := d.listings[id]
	if !ok {
		return nil, errors.NotFound("Product", nil)
	}
	out := *l
	return &out, nil
}
