package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatementCacheLifecycle(t *testing.T) {
	t.Parallel()

	cache := newStatementCache()

	name1 := cache.next()
	name2 := cache.next()
	require.NotEqual(t, name1, name2)

	stmt := &preparedStatement{name: name1, sql: "SELECT 1"}
	cache.put(stmt)

	got, ok := cache.get(name1)
	require.True(t, ok)
	require.Same(t, stmt, got)

	cache.delete(name1)
	_, ok = cache.get(name1)
	require.False(t, ok)
}

func TestPortalCacheNamesAreUnique(t *testing.T) {
	t.Parallel()

	cache := newPortalCache()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name := cache.next()
		require.False(t, seen[name])
		seen[name] = true
	}
}
