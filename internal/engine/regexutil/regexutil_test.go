package regexutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern_MatchString(t *testing.T) {
	p := NewPattern(`Apache/([0-9.]+)`)
	c, ok := p.MatchString("Server: Apache/2.4.52")
	require.True(t, ok)
	group, found := c.Get(1)
	require.True(t, found)
	assert.Equal(t, "2.4.52", group)
}

func TestPattern_MatchBytes(t *testing.T) {
	p := NewPattern(`pong`)
	c, ok := p.MatchBytes([]byte("\x00pong\n"))
	require.True(t, ok)
	group, found := c.Get(0)
	require.True(t, found)
	assert.Equal(t, "pong", group)
}

func TestPattern_MatchStringThenBytes_FallsBackToBytes(t *testing.T) {
	p := NewPattern(`\xff`)
	_, okStr := p.MatchString("no match here")
	assert.False(t, okStr)
	c, ok := p.MatchStringThenBytes("no match here", []byte{0xff})
	require.True(t, ok)
	_, found := c.Get(0)
	assert.True(t, found)
}

func TestPattern_InvalidPatternDoesNotPanic(t *testing.T) {
	p := NewPattern(`(unclosed`)
	_, ok := p.MatchString("anything")
	assert.False(t, ok)
	assert.Error(t, p.Err())
}

func TestPattern_CompiledOnce(t *testing.T) {
	p := NewPattern(`abc`)
	_, _ = p.MatchString("xabcx")
	re1 := p.re
	_, _ = p.MatchString("yabcy")
	assert.Same(t, re1, p.re)
}

func TestNewPair(t *testing.T) {
	pair := NewPair([]string{"a", "b", "c"})
	assert.Len(t, pair.Patterns, 3)
}
