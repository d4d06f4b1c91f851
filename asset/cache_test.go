package asset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_SaveThenFindByMint(t *testing.T) {
	c := NewCache(10, time.Minute)
	r := Record{Mint: "mintA", Kind: KindToken, Metadata: Metadata{Symbol: "AAA"}}
	c.Save(r)

	found, ok := c.FindByMint("mintA")
	require.True(t, ok)
	require.Equal(t, "AAA", found.Metadata.Symbol)
}

func TestCache_FindByMint_MissReturnsFalse(t *testing.T) {
	c := NewCache(10, time.Minute)
	_, ok := c.FindByMint("unknown")
	require.False(t, ok)
}

func TestCache_EntryExpiresAfterTTL(t *testing.T) {
	c := NewCache(10, 5*time.Millisecond)
	c.Save(Record{Mint: "mintA", Kind: KindToken})

	time.Sleep(10 * time.Millisecond)

	_, ok := c.FindByMint("mintA")
	require.False(t, ok)
}

func TestCache_OverflowEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Save(Record{Mint: "a"})
	c.Save(Record{Mint: "b"})
	c.Save(Record{Mint: "c"})

	_, okA := c.FindByMint("a")
	_, okB := c.FindByMint("b")
	_, okC := c.FindByMint("c")

	require.False(t, okA)
	require.True(t, okB)
	require.True(t, okC)
}

func TestCache_GetVerifiedAssets_FiltersUnverified(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.SaveMany([]Record{
		{Mint: "a", Metadata: Metadata{Verified: true}},
		{Mint: "b", Metadata: Metadata{Verified: false}},
	})

	verified := c.GetVerifiedAssets()
	require.Len(t, verified, 1)
	require.Equal(t, "a", verified[0].Mint)
}

func TestCache_Clear_RemovesEverything(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Save(Record{Mint: "a"})
	c.Clear()

	_, ok := c.FindByMint("a")
	require.False(t, ok)
}

func TestCache_IsNFT_ReflectsKind(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Save(Record{Mint: "nft1", Kind: KindNFT})
	c.Save(Record{Mint: "tok1", Kind: KindToken})

	isNFT, known := c.IsNFT("nft1")
	require.True(t, known)
	require.True(t, isNFT)

	isNFT, known = c.IsNFT("tok1")
	require.True(t, known)
	require.False(t, isNFT)

	_, known = c.IsNFT("missing")
	require.False(t, known)
}
