package bucketing

import (
	"strconv"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestBalanceIsStablePerKey(t *testing.T) {
	bm := NewBucketingManager()
	partitions := []int{0, 1, 2, 3, 4, 5, 6, 7}

	for id := 1; id <= 50; id++ {
		msg := kafka.Message{Key: []byte(strconv.Itoa(id))}
		first := bm.Balance(msg, partitions...)
		for i := 0; i < 5; i++ {
			if got := bm.Balance(msg, partitions...); got != first {
				t.Fatalf("key %d: partition %d then %d", id, first, got)
			}
		}
		if bucket := bm.GetUserBucket(int64(id), len(partitions)); partitions[bucket] != first {
			t.Fatalf("key %d: bucket %d disagrees with partition %d", id, bucket, first)
		}
	}
}

func TestBalanceSpreadsKeys(t *testing.T) {
	bm := NewBucketingManager()
	partitions := []int{0, 1, 2, 3}

	seen := map[int]bool{}
	for id := 0; id < 200; id++ {
		seen[bm.Balance(kafka.Message{Key: []byte(strconv.Itoa(id))}, partitions...)] = true
	}
	if len(seen) != len(partitions) {
		t.Fatalf("only %d of %d partitions used", len(seen), len(partitions))
	}
}

func TestBalanceEdgeCases(t *testing.T) {
	bm := NewBucketingManager()

	if got := bm.Balance(kafka.Message{}, 3, 4); got != 3 {
		t.Errorf("keyless message: partition %d, want 3", got)
	}
	if got := bm.Balance(kafka.Message{Key: []byte("1")}); got != 0 {
		t.Errorf("no partitions: %d", got)
	}
	if got := bm.GetUserBucket(1, 0); got != 0 {
		t.Errorf("zero buckets: %d", got)
	}
}
