package linkz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextStackRemove(t *testing.T) {
	a, b, c := &tracer{}, &tracer{}, &tracer{}
	s := &contextStack{}

	s.push(a)
	s.push(b)
	s.push(c)
	assert.Same(t, c, s.top())

	assert.True(t, s.remove(b))
	assert.Same(t, c, s.top())
	assert.Equal(t, []*tracer{a, c}, s.entries)

	assert.False(t, s.remove(b))
	assert.True(t, s.remove(c))
	assert.Same(t, a, s.top())
	assert.True(t, s.remove(a))
	assert.Nil(t, s.top())
}

func TestStacksDropEmptyGoroutines(t *testing.T) {
	var s stacks
	a, b := &tracer{}, &tracer{}

	s.push(1, a)
	s.push(2, b)
	assert.Equal(t, 2, s.count())
	assert.Same(t, a, s.top(1))
	assert.Nil(t, s.top(3))

	s.remove(1, a)
	assert.Equal(t, 1, s.count())
	assert.Nil(t, s.current(1))

	assert.False(t, s.remove(1, a))
	s.remove(2, b)
	assert.Zero(t, s.count())
}

func TestGoroutineIDDiffersAcrossGoroutines(t *testing.T) {
	mine := goroutineID()
	var theirs int64
	onOtherGoroutine(func() {
		theirs = goroutineID()
	})

	assert.Equal(t, mine, goroutineID())
	assert.NotEqual(t, mine, theirs)
}
