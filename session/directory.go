package session

import (
	"context"
	"sync"

	"rental-messenger/conversation"
	"rental-messenger/model"
)

// cachedDirectory remembers resolved profiles for the life of a session, so recomputing
// the conversation list only looks up counterparts never seen before. Misses are retried.
type cachedDirectory struct {
	next conversation.Directory

	mu       sync.Mutex
	profiles map[model.Identity]model.Profile
}

func newCachedDirectory(next conversation.Directory) *cachedDirectory {
	return &cachedDirectory{next: next, profiles: make(map[model.Identity]model.Profile)}
}

func (d *cachedDirectory) Lookup(ctx context.Context, identities []model.Identity) ([]model.Profile, error) {
	d.mu.Lock()
	out := make([]model.Profile, 0, len(identities))
	var missing []model.Identity
	for _, identity := range identities {
		if p, ok := d.profiles[identity]; ok {
			out = append(out, p)
			continue
		}
		missing = append(missing, identity)
	}
	d.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}
	found, err := d.next.Lookup(ctx, missing)
	if err != nil {
		return out, err
	}

	d.mu.Lock()
	for _, p := range found {
		d.profiles[p.Identity()] = p
	}
	d.mu.Unlock()
	return append(out, found...), nil
}
