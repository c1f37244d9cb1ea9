package memory

import (
	"fmt"

	"github.com/google/btree"

	"github.com/kwvg/dash/common/collateral"
	"github.com/kwvg/dash/common/crypto/hash"
	"github.com/kwvg/dash/common/errors"
	"github.com/kwvg/dash/common/keys"
	"github.com/kwvg/dash/common/node"
	"github.com/kwvg/dash/registry/api"
)

const treeDegree = 32

func entryLess(a, b *api.Entry) bool {
	return a.ProviderID.Less(&b.ProviderID)
}

func newEntryTree() *btree.BTreeG[*api.Entry] {
	return btree.NewG(treeDegree, entryLess)
}

func entryKey(id hash.Hash) *api.Entry {
	return &api.Entry{ProviderID: id}
}

// snapshot is the entry set as of a height.
type snapshot struct {
	height  int64
	entries *btree.BTreeG[*api.Entry]
}

func snapshotLess(a, b *snapshot) bool {
	return a.height < b.height
}

// claims are the unique properties held by active entries at the tip.
type claims struct {
	collateral map[collateral.Outpoint]hash.Hash
	endpoints  map[string]hash.Hash
	platform   map[node.PlatformNodeID]hash.Hash
	operator   map[keys.OperatorPublicKey]hash.Hash
	owner      map[keys.Address]hash.Hash
}

func newClaims() *claims {
	return &claims{
		collateral: make(map[collateral.Outpoint]hash.Hash),
		endpoints:  make(map[string]hash.Hash),
		platform:   make(map[node.PlatformNodeID]hash.Hash),
		operator:   make(map[keys.OperatorPublicKey]hash.Hash),
		owner:      make(map[keys.Address]hash.Hash),
	}
}

// check returns an error if any unique property of e is held by an entry
// other than e itself.
func (c *claims) check(e *api.Entry) error {
	held := func(holder hash.Hash, ok bool) bool {
		return ok && !holder.Equal(&e.ProviderID)
	}

	if holder, ok := c.collateral[e.Collateral.Outpoint]; held(holder, ok) {
		return errors.WithContext(api.ErrDuplicateCollateral, fmt.Sprintf("%s backs %s", e.Collateral.Outpoint, holder))
	}
	for _, ep := range e.Addresses.All() {
		if holder, ok := c.endpoints[api.EndpointKey(ep)]; held(holder, ok) {
			return errors.WithContext(api.ErrDuplicateAddress, fmt.Sprintf("%s used by %s", ep, holder))
		}
	}
	if e.PlatformNodeID != nil {
		if holder, ok := c.platform[*e.PlatformNodeID]; held(holder, ok) {
			return errors.WithContext(api.ErrDuplicatePlatformNodeID, fmt.Sprintf("%s used by %s", e.PlatformNodeID, holder))
		}
	}
	if holder, ok := c.operator[e.OperatorPublicKey]; held(holder, ok) {
		return errors.WithContext(api.ErrDuplicateKey, fmt.Sprintf("operator key used by %s", holder))
	}
	if holder, ok := c.owner[e.OwnerAddress]; held(holder, ok) {
		return errors.WithContext(api.ErrDuplicateKey, fmt.Sprintf("owner address used by %s", holder))
	}
	return nil
}

func (c *claims) claim(e *api.Entry) {
	c.collateral[e.Collateral.Outpoint] = e.ProviderID
	for _, ep := range e.Addresses.All() {
		c.endpoints[api.EndpointKey(ep)] = e.ProviderID
	}
	if e.PlatformNodeID != nil {
		c.platform[*e.PlatformNodeID] = e.ProviderID
	}
	c.operator[e.OperatorPublicKey] = e.ProviderID
	c.owner[e.OwnerAddress] = e.ProviderID
}

func (c *claims) release(e *api.Entry) {
	releaseHeld(c.collateral, e.Collateral.Outpoint, e.ProviderID)
	for _, ep := range e.Addresses.All() {
		releaseHeld(c.endpoints, api.EndpointKey(ep), e.ProviderID)
	}
	if e.PlatformNodeID != nil {
		releaseHeld(c.platform, *e.PlatformNodeID, e.ProviderID)
	}
	releaseHeld(c.operator, e.OperatorPublicKey, e.ProviderID)
	releaseHeld(c.owner, e.OwnerAddress, e.ProviderID)
}

func releaseHeld[K comparable](m map[K]hash.Hash, k K, id hash.Hash) {
	if holder, ok := m[k]; ok && holder == id {
		delete(m, k)
	}
}

// diffTrees compares the entry sets of two snapshots. Entries are never
// deleted, so every entry of base is also in target.
func diffTrees(base, target *btree.BTreeG[*api.Entry]) (added []*api.Entry, removed []hash.Hash, updated []*api.UpdatedEntry) {
	target.Ascend(func(e *api.Entry) bool {
		old, ok := base.Get(e)
		wasActive := ok && old.IsActive()
		switch {
		case !wasActive && e.IsActive():
			added = append(added, e.Clone())
		case wasActive && !e.IsActive():
			removed = append(removed, e.ProviderID)
		case wasActive && e.IsActive():
			if mask := api.ChangedFields(old, e); mask != 0 {
				updated = append(updated, &api.UpdatedEntry{Entry: e.Clone(), Fields: mask})
			}
		}
		return true
	})
	return
}
