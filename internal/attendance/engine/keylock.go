package engine

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// keyedMutex serializes work per employee id across all device workers.
// Keys hash onto a fixed set of shards; two employees may share a shard,
// which costs a little contention but never correctness.
type keyedMutex struct {
	shards [lockShards]sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	shard := &k.shards[shardIndex(key)]
	shard.Lock()
	return shard.Unlock
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % lockShards
}
