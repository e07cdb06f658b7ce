package gk

import "gatekeeper/core/flow"

// retaSize is the fixed RSS redirection-table size the source hardcodes
// (RTE_VERIFY(reta_size == 128)); Go has no hardware RETA to query so the
// table is simply sized to match.
const retaSize = 128

// ShardRouter deterministically maps a flow to the shard (GK instance)
// responsible for it, by masking its RSS-style hash into a fixed-size
// redirection table, the Go equivalent of get_responsible_gk_mailbox. The
// same table is used both to route newly-arriving packets and to route
// policy updates for the same flow, guaranteeing they land on the same
// goroutine without any cross-shard locking.
type ShardRouter struct {
	reta [retaSize]int
}

// NewShardRouter builds a ShardRouter that spreads flows evenly across
// numShards shards by filling all retaSize redirection-table entries
// round-robin.
func NewShardRouter(numShards int) *ShardRouter {
	if numShards <= 0 {
		panic("gk: numShards must be positive")
	}
	r := &ShardRouter{}
	for i := range r.reta {
		r.reta[i] = i % numShards
	}
	return r
}

// ShardFor returns the index of the shard responsible for k.
func (r *ShardRouter) ShardFor(k flow.Key) int {
	h := flow.Hash(k)
	return r.reta[h&(retaSize-1)]
}
