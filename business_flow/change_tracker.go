package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/amirphl/chat-sequencer/app/services"
	"github.com/amirphl/chat-sequencer/models"
)

// ChangeTracker records which parents have a counter ahead of the relational store
type ChangeTracker interface {
	MarkDirty(ctx context.Context, parent models.ParentKey) error
	// ListDirty returns the dirty parents of family in no particular order
	ListDirty(ctx context.Context, family models.Family) ([]models.ParentKey, error)
	// Claim removes parents from the dirty set before their counters are read
	Claim(ctx context.Context, family models.Family, parents ...models.ParentKey) error
	// Restore re-adds parents whose reconciliation failed
	Restore(ctx context.Context, family models.Family, parents ...models.ParentKey) error
}

// ChangeTrackerImpl keeps one dirty set per family in the counter store
type ChangeTrackerImpl struct {
	store services.CounterStore
}

func NewChangeTracker(store services.CounterStore) ChangeTracker {
	return &ChangeTrackerImpl{store: store}
}

func (t *ChangeTrackerImpl) MarkDirty(ctx context.Context, parent models.ParentKey) error {
	return t.store.AddMembers(ctx, parent.Family().ChangesSet(), parent.Member())
}

func (t *ChangeTrackerImpl) ListDirty(ctx context.Context, family models.Family) ([]models.ParentKey, error) {
	set := family.ChangesSet()
	if set == "" {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownFamily, family)
	}

	members, err := t.store.Members(ctx, set)
	if err != nil {
		return nil, err
	}

	parents := make([]models.ParentKey, 0, len(members))
	var malformed []string
	for _, member := range members {
		parent, err := models.ParseParentKey(family, member)
		if err != nil {
			log.Printf("change tracker: skipping %s member %q: %v", family, member, err)
			malformed = append(malformed, member)
			continue
		}
		parents = append(parents, parent)
	}

	// a malformed member can never be reconciled
	if len(malformed) > 0 {
		if _, err := t.store.RemoveMembers(ctx, set, malformed...); err != nil {
			log.Printf("change tracker: failed to drop malformed %s members: %v", family, err)
		}
	}

	return parents, nil
}

func (t *ChangeTrackerImpl) Claim(ctx context.Context, family models.Family, parents ...models.ParentKey) error {
	members, err := membersOf(family, parents)
	if err != nil {
		return err
	}
	_, err = t.store.RemoveMembers(ctx, family.ChangesSet(), members...)
	return err
}

func (t *ChangeTrackerImpl) Restore(ctx context.Context, family models.Family, parents ...models.ParentKey) error {
	members, err := membersOf(family, parents)
	if err != nil {
		return err
	}
	return t.store.AddMembers(ctx, family.ChangesSet(), members...)
}

func membersOf(family models.Family, parents []models.ParentKey) ([]string, error) {
	members := make([]string, len(parents))
	for i, p := range parents {
		if p.Family() != family {
			return nil, fmt.Errorf("%w: %s parent %q in %s set", models.ErrUnknownFamily, p.Family(), p.Member(), family)
		}
		members[i] = p.Member()
	}
	return members, nil
}
