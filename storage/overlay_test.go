package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayReadsThroughToBase(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("k1"), []byte("base")))

	ov := NewOverlay(base)
	got, err := ov.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), got)

	ok, err := ov.Has([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, ov.Dirty())
}

func TestOverlayBuffersUntilCommit(t *testing.T) {
	base := NewMemDB()
	ov := NewOverlay(base)

	require.NoError(t, ov.Put([]byte("k1"), []byte("v1")))
	require.True(t, ov.Dirty())

	got, err := ov.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	// The base must not see the write before commit.
	got, err = base.Get([]byte("k1"))
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, ov.Commit())
	require.False(t, ov.Dirty())

	got, err = base.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
}

func TestOverlayDiscardDropsEverything(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("keep"), []byte("old")))

	ov := NewOverlay(base)
	require.NoError(t, ov.Put([]byte("new"), []byte("v")))
	require.NoError(t, ov.Delete([]byte("keep")))
	ov.Discard()
	require.False(t, ov.Dirty())

	got, err := base.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("old"), got)
	got, err = base.Get([]byte("new"))
	require.NoError(t, err)
	require.Nil(t, got)

	// Discarded mutations must not leak into later reads either.
	got, err = ov.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("old"), got)
}

func TestOverlayDeleteShadowsBase(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("k1"), []byte("base")))

	ov := NewOverlay(base)
	require.NoError(t, ov.Delete([]byte("k1")))

	got, err := ov.Get([]byte("k1"))
	require.NoError(t, err)
	require.Nil(t, got)
	ok, err := ov.Has([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	// Base still holds the value until commit.
	got, err = base.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), got)

	require.NoError(t, ov.Commit())
	got, err = base.Get([]byte("k1"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOverlayPutAfterDeleteWins(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("k1"), []byte("base")))

	ov := NewOverlay(base)
	require.NoError(t, ov.Delete([]byte("k1")))
	require.NoError(t, ov.Put([]byte("k1"), []byte("v2")))

	got, err := ov.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)

	require.NoError(t, ov.Commit())
	got, err = base.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}

func TestOverlayCopiesValues(t *testing.T) {
	base := NewMemDB()
	ov := NewOverlay(base)

	value := []byte("mutable")
	require.NoError(t, ov.Put([]byte("k1"), value))
	value[0] = 'X'

	got, err := ov.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("mutable"), got)

	got[0] = 'Y'
	again, err := ov.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("mutable"), again)
}

func TestMemDBAbsenceIsNil(t *testing.T) {
	db := NewMemDB()
	got, err := db.Get([]byte("missing"))
	require.NoError(t, err)
	require.Nil(t, got)
	ok, err := db.Has([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, db.Delete([]byte("missing")))
}
