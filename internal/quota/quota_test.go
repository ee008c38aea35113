package quota

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestStaticReader(t *testing.T) {
	reader := NewStaticReader(map[string]int64{"user": 100, "cluster": 10_000})

	balances, err := reader.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, int64(100), balances["user"])
	require.Equal(t, int64(10_000), balances["cluster"])

	// Callers own their copy.
	balances["user"] = 0
	again, err := reader.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, int64(100), again["user"])
}

func newRedisReader(t *testing.T, limits map[string]int64) (*RedisReader, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisReader(client, limits), mr
}

func TestRedisReaderMissingKeyMeansFullLimit(t *testing.T) {
	reader, _ := newRedisReader(t, map[string]int64{"user": 500})

	balances, err := reader.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, int64(500), balances["user"])
}

func TestRedisReaderSubtractsUsage(t *testing.T) {
	reader, mr := newRedisReader(t, map[string]int64{"user": 500, "cluster": 100})
	mr.Set("modelgate:quota:user:alice", "120")

	balances, err := reader.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, int64(380), balances["user"])
	require.Equal(t, int64(100), balances["cluster"])
}

func TestRedisReaderClampsOverdraft(t *testing.T) {
	reader, mr := newRedisReader(t, map[string]int64{"user": 500})
	mr.Set("modelgate:quota:user:alice", "900")

	balances, err := reader.Remaining(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, int64(0), balances["user"])
}

func TestRedisReaderRejectsGarbageValue(t *testing.T) {
	reader, mr := newRedisReader(t, map[string]int64{"user": 500})
	mr.Set("modelgate:quota:user:alice", "plenty")

	_, err := reader.Remaining(context.Background(), "alice")
	require.Error(t, err)
}
