package frontier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair is a partially ordered time for tests: (a1,b1) <= (a2,b2) iff both
// coordinates are <=.
type pair struct {
	a, b int
}

func (p pair) Less(o pair) bool {
	return (p.a <= o.a && p.b <= o.b) && p != o
}

func (p pair) Join(o pair) pair {
	out := p
	if o.a > out.a {
		out.a = o.a
	}
	if o.b > out.b {
		out.b = o.b
	}
	return out
}

func TestAntichainInsertKeepsMinimal(t *testing.T) {
	a := NewAntichain[Tick]()
	assert.True(t, a.Insert(5))
	assert.False(t, a.Insert(7), "dominated element should be rejected")
	assert.True(t, a.Insert(3), "smaller element should displace larger")
	assert.Equal(t, []Tick{3}, a.Elements())
}

func TestAntichainIncomparableElements(t *testing.T) {
	a := NewAntichain[pair]()
	assert.True(t, a.Insert(pair{1, 3}))
	assert.True(t, a.Insert(pair{3, 1}))
	assert.Equal(t, 2, a.Len())

	assert.True(t, a.LessEqual(pair{3, 3}))
	assert.False(t, a.LessEqual(pair{0, 0}))
	assert.True(t, a.LessThan(pair{2, 4}))
}

func TestAntichainLessEqual(t *testing.T) {
	a := NewAntichain[Tick](4)
	assert.True(t, a.LessEqual(4))
	assert.True(t, a.LessEqual(9))
	assert.False(t, a.LessEqual(3))
	assert.False(t, a.LessThan(4))
	assert.True(t, a.LessThan(5))
}

func TestJoin(t *testing.T) {
	a := NewAntichain[Tick](2)
	b := NewAntichain[Tick](5)
	assert.Equal(t, []Tick{5}, Join(a, b).Elements())

	p := NewAntichain(pair{1, 3})
	q := NewAntichain(pair{3, 1})
	assert.Equal(t, []pair{{3, 3}}, Join(p, q).Elements())
}

func TestAdvances(t *testing.T) {
	fr := NewAntichain[Tick](6)
	assert.True(t, Advances(fr, NewAntichain[Tick](5)))
	assert.False(t, Advances(fr, NewAntichain[Tick](6)))
	assert.False(t, Advances(fr, NewAntichain[Tick](9)))

	empty := NewAntichain[Tick]()
	assert.True(t, Advances(empty, NewAntichain[Tick](0)), "an empty frontier has passed everything")
}

func TestMutableAntichainFrontierMovesForward(t *testing.T) {
	m := NewMutableAntichain[Tick]()
	assert.Equal(t, 0, m.Frontier().Len())

	require.True(t, m.Update(0, 2))
	assert.Equal(t, []Tick{0}, m.Frontier().Elements())

	// One producer moves on, one still holds 0.
	require.False(t, m.UpdateAll([]Delta[Tick]{{Time: 0, Diff: -1}, {Time: 3, Diff: 1}}))
	assert.Equal(t, []Tick{0}, m.Frontier().Elements())

	// The second producer retires 0 as well.
	require.True(t, m.Update(0, -1))
	assert.Equal(t, []Tick{3}, m.Frontier().Elements())
	assert.False(t, m.LessEqual(2))
	assert.True(t, m.LessEqual(3))

	require.True(t, m.Update(3, -1))
	assert.Equal(t, 0, m.Frontier().Len())
}

func TestMutableAntichainPartialOrder(t *testing.T) {
	m := NewMutableAntichain[pair]()
	m.UpdateAll([]Delta[pair]{{Time: pair{1, 3}, Diff: 1}, {Time: pair{3, 1}, Diff: 1}})
	assert.Equal(t, 2, m.Frontier().Len())

	m.Update(pair{1, 3}, -1)
	assert.Equal(t, []pair{{3, 1}}, m.Frontier().Elements())
}

func TestDiff(t *testing.T) {
	old := NewAntichain[Tick](2)
	next := NewAntichain[Tick](5)
	deltas := Diff(old, next)
	assert.ElementsMatch(t, []Delta[Tick]{{Time: 2, Diff: -1}, {Time: 5, Diff: 1}}, deltas)

	assert.Empty(t, Diff(next, next.Clone()))
	assert.Equal(t, []Delta[Tick]{{Time: 5, Diff: -1}}, Diff(next, NewAntichain[Tick]()))
}
