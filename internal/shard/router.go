package shard

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/config"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/dberrors"
)

// KeyspaceSize is the number of slots the shard set partitions. Every
// routing key hashes to exactly one slot in [0, KeyspaceSize).
const KeyspaceSize uint32 = 16384

// Descriptor identifies one shard: the key range it owns and the backend
// that serves it.
type Descriptor struct {
	ID      int
	MinKey  uint32
	MaxKey  uint32
	Backend config.BackendConfig
}

// Router maps routing keys to shard descriptors. It owns the static
// descriptor list, loaded once at startup and read-only thereafter, so it
// is safe for unsynchronized concurrent use.
type Router struct {
	descriptors []Descriptor
}

// NewRouter builds a router from shard configuration, validating that the
// descriptor set partitions [0, KeyspaceSize) into disjoint, contiguous,
// ordered ranges with no gaps. A violation is a configuration bug and
// fails startup.
func NewRouter(shards []config.ShardConfig) (*Router, error) {
	if len(shards) == 0 {
		return nil, dberrors.InvalidConfig("shard set is empty", nil)
	}

	descriptors := make([]Descriptor, len(shards))
	for i, s := range shards {
		descriptors[i] = Descriptor{
			ID:      s.ID,
			MinKey:  s.MinKey,
			MaxKey:  s.MaxKey,
			Backend: s.Backend,
		}
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].MinKey < descriptors[j].MinKey
	})

	if err := validatePartition(descriptors); err != nil {
		return nil, err
	}

	return &Router{descriptors: descriptors}, nil
}

// validatePartition checks totality and disjointness of the key ranges.
func validatePartition(descriptors []Descriptor) error {
	if descriptors[0].MinKey != 0 {
		return dberrors.InvalidConfig(
			fmt.Sprintf("shard %d: key space must start at 0, got %d", descriptors[0].ID, descriptors[0].MinKey), nil)
	}
	for i, d := range descriptors {
		if d.MinKey > d.MaxKey {
			return dberrors.InvalidConfig(
				fmt.Sprintf("shard %d: min_key %d exceeds max_key %d", d.ID, d.MinKey, d.MaxKey), nil)
		}
		if i > 0 {
			prev := descriptors[i-1]
			if d.MinKey != prev.MaxKey+1 {
				return dberrors.InvalidConfig(
					fmt.Sprintf("shards %d and %d: ranges must be contiguous, [..%d] followed by [%d..]",
						prev.ID, d.ID, prev.MaxKey, d.MinKey), nil)
			}
		}
	}
	last := descriptors[len(descriptors)-1]
	if last.MaxKey != KeyspaceSize-1 {
		return dberrors.InvalidConfig(
			fmt.Sprintf("shard %d: key space must end at %d, got %d", last.ID, KeyspaceSize-1, last.MaxKey), nil)
	}
	return nil
}

// Slot returns the key-space slot a routing key hashes to. Equal ids
// always hash to the same slot.
func (r *Router) Slot(id string) uint32 {
	sum := sha256.Sum256([]byte(id))
	return uint32(binary.BigEndian.Uint64(sum[:8]) % uint64(KeyspaceSize))
}

// Resolve maps a routing key to the shard owning its slot. The error path
// is unreachable while the partition invariant holds; its occurrence
// indicates a misconfiguration, not a runtime condition to recover from.
func (r *Router) Resolve(id string) (Descriptor, error) {
	slot := r.Slot(id)

	i := sort.Search(len(r.descriptors), func(i int) bool {
		return r.descriptors[i].MaxKey >= slot
	})
	if i < len(r.descriptors) && r.descriptors[i].MinKey <= slot {
		return r.descriptors[i], nil
	}
	return Descriptor{}, dberrors.NoShardForKey(id, slot)
}

// All returns the full partition set ordered by MinKey, for scatter-gather.
func (r *Router) All() []Descriptor {
	return r.descriptors
}
