package corelang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternSymbolPointerEquality(t *testing.T) {
	a := InternSymbol([]byte("hello"))
	b := InternSymbol([]byte("hello"))
	assert.True(t, a == b, "equal byte sequences must intern to the same object")

	c := InternSymbol([]byte("hellp"))
	assert.False(t, a == c)
}

func TestInternKeywordDistinctFromSymbolNamespace(t *testing.T) {
	sym := InternSymbol([]byte("foo"))
	kw := InternKeyword([]byte("foo"))
	assert.False(t, sym == kw, "symbol and keyword namespaces must not collide despite equal bytes")
	assert.True(t, sym.IsKeyword() == false)
	assert.True(t, kw.IsKeyword())
}

func TestSymCacheGrowsAndKeepsPointerIdentity(t *testing.T) {
	c := newSymCache(4)
	first := c.Intern([]byte("a"), false)
	for i := 0; i < 200; i++ {
		c.Intern([]byte{byte('b' + i%20)}, false)
	}
	again := c.Intern([]byte("a"), false)
	assert.Same(t, first, again, "growth must preserve previously interned identities")
}
