package relation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGetRelations(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutRelation("obj-1", "target-a", "ref"))
	require.NoError(t, s.PutRelation("obj-1", "target-b", "ref"))

	rels, err := s.GetRelations("obj-1", "ref")
	require.NoError(t, err)
	require.Len(t, rels, 2)
}

func TestPutRelationIncrementsRefCount(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutRelation("obj-1", "target-a", "ref"))
	require.NoError(t, s.PutRelation("obj-1", "target-a", "ref"))

	rels, err := s.GetRelations("obj-1", "ref")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Equal(t, int64(2), rels[0].RefCount)
}

func TestPutRelationKeepsDistinctTargetsSeparate(t *testing.T) {
	// Regression guard for the original source's apparent bug: upserting
	// on object_id alone would collapse rows for distinct targets under
	// the same object. The composite-key conflict target here must not.
	s := openTestStore(t)

	require.NoError(t, s.PutRelation("obj-1", "target-a", "ref"))
	require.NoError(t, s.PutRelation("obj-1", "target-b", "ref"))
	require.NoError(t, s.PutRelation("obj-1", "target-a", "ref"))

	rels, err := s.GetRelations("obj-1", "ref")
	require.NoError(t, err)
	require.Len(t, rels, 2)
}

func TestDecreaseRelationDeletesAtZero(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutRelation("obj-1", "target-a", "ref"))

	count, err := s.DecreaseRelation("obj-1", "target-a", "ref")
	require.NoError(t, err)
	require.Equal(t, int64(0), count)

	rels, err := s.GetRelations("obj-1", "ref")
	require.NoError(t, err)
	require.Empty(t, rels)
}

func TestDecreaseRelationKeepsRowAboveZero(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutRelation("obj-1", "target-a", "ref"))
	require.NoError(t, s.PutRelation("obj-1", "target-a", "ref"))

	count, err := s.DecreaseRelation("obj-1", "target-a", "ref")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	rels, err := s.GetRelations("obj-1", "ref")
	require.NoError(t, err)
	require.Len(t, rels, 1)
}

func TestRemoveObjectRelations(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutRelation("obj-1", "target-a", "ref"))
	require.NoError(t, s.PutRelation("obj-1", "target-b", "other"))
	require.NoError(t, s.PutRelation("obj-2", "target-c", "ref"))

	require.NoError(t, s.RemoveObjectRelations("obj-1"))

	rels, err := s.GetRelations("obj-1", "ref")
	require.NoError(t, err)
	require.Empty(t, rels)

	rels, err = s.GetRelations("obj-2", "ref")
	require.NoError(t, err)
	require.Len(t, rels, 1)
}

func TestGetRelationByPage(t *testing.T) {
	s := openTestStore(t)
	for _, target := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.PutRelation("obj-1", target, "ref"))
	}

	page, err := s.GetRelationByPage("obj-1", "ref", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
}
