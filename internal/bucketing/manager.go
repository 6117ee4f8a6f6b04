package bucketing

import (
	"hash"
	"strconv"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/spaolacci/murmur3"
)

// BucketingManager maps keys onto a fixed number of buckets with murmur3.
// It doubles as a kafka.Balancer, so every message with the same key lands on
// the same partition and per-user event order is kept.
type BucketingManager struct {
	hasherPool sync.Pool
}

var _ kafka.Balancer = (*BucketingManager)(nil)

func NewBucketingManager() *BucketingManager {
	return &BucketingManager{
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
	}
}

// GetUserBucket returns a stable bucket in [0, buckets) for userID.
func (bm *BucketingManager) GetUserBucket(userID int64, buckets int) int {
	return bm.getBucket([]byte(strconv.FormatInt(userID, 10)), buckets)
}

// Balance picks a partition for msg from its key. Keyless messages go to the
// first partition offered.
func (bm *BucketingManager) Balance(msg kafka.Message, partitions ...int) int {
	if len(partitions) == 0 {
		return 0
	}
	if len(msg.Key) == 0 {
		return partitions[0]
	}
	return partitions[bm.getBucket(msg.Key, len(partitions))]
}

func (bm *BucketingManager) getBucket(key []byte, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}
	return int(bm.getHash(key) % uint64(numBuckets))
}

func (bm *BucketingManager) getHash(key []byte) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	_, _ = hasher.Write(key)
	return hasher.Sum64()
}
