package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceTableIsTotal(t *testing.T) {
	tbl := ReferenceTable()
	require.Equal(t, 10, tbl.Len())
	for id := 0; id < tbl.Len(); id++ {
		for code := InputCode(0); code < NumInputs; code++ {
			nx := tbl.Next(StateID(id), code)
			assert.Less(t, int(nx), tbl.Len(), "%s input %d", tbl.State(StateID(id)).Name, code)
		}
	}
}

func TestReferenceTableTerminal(t *testing.T) {
	tbl := ReferenceTable()
	assert.Equal(t, Center, tbl.Start())
	assert.Equal(t, FullStop, tbl.Terminal())
	assert.True(t, tbl.Absorbing(tbl.Terminal()))
	st := tbl.State(FullStop)
	assert.Equal(t, uint16(0), st.Left)
	assert.Equal(t, uint16(0), st.Right)

	for id := 0; id < tbl.Len(); id++ {
		if StateID(id) != FullStop {
			assert.False(t, tbl.Absorbing(StateID(id)), tbl.State(StateID(id)).Name)
		}
	}
}

func TestLostStatesWaitThenGoForward(t *testing.T) {
	tbl := ReferenceTable()
	for _, id := range []StateID{LostLeft, LostRight} {
		st := tbl.State(id)
		assert.Greater(t, st.Dwell, tbl.State(Center).Dwell, st.Name)
		for code := InputCode(0); code < NumInputs; code++ {
			assert.Equal(t, Forward, tbl.Next(id, code), "%s input %d", st.Name, code)
		}
	}
}

func TestTableLookup(t *testing.T) {
	tbl := ReferenceTable()
	id, ok := tbl.Lookup("RightOff2")
	require.True(t, ok)
	assert.Equal(t, RightOff2, id)
	_, ok = tbl.Lookup("Sideways")
	assert.False(t, ok)
	assert.Equal(t, "Center", tbl.Names()[0])
	assert.Equal(t, "FullStop", tbl.Names()[9])
}

func TestNextUsesLowBits(t *testing.T) {
	tbl := ReferenceTable()
	assert.Equal(t, tbl.Next(Center, 1), tbl.Next(Center, 5))
}

func TestTableIsACopy(t *testing.T) {
	states := referenceStates()
	tbl, err := NewTable(states, Center, FullStop)
	require.NoError(t, err)
	states[Center].Dwell = 9999
	assert.Equal(t, uint32(5), tbl.State(Center).Dwell)

	st := tbl.State(Center)
	st.Next[0] = FullStop
	assert.Equal(t, RightOff1, tbl.Next(Center, 0))
}

func TestNewTableRejects(t *testing.T) {
	loop := [NumInputs]StateID{0, 0, 0, 0}

	_, err := NewTable(nil, 0, 0)
	assert.ErrorIs(t, err, ErrEmptyTable)

	_, err = NewTable([]State{{Name: "A", Next: loop}, {Name: "A", Next: loop}}, 0, 0)
	assert.ErrorIs(t, err, ErrDuplicateState)

	_, err = NewTable([]State{{Name: "A", Next: [NumInputs]StateID{0, 0, 3, 0}}}, 0, 0)
	assert.ErrorIs(t, err, ErrDanglingTransition)

	_, err = NewTable([]State{
		{Name: "Go", Next: [NumInputs]StateID{1, 1, 1, 1}},
		{Name: "Halt", Next: [NumInputs]StateID{1, 1, 0, 1}},
	}, 0, 1)
	assert.ErrorIs(t, err, ErrNotAbsorbing)

	_, err = NewTable([]State{{Name: "A", Next: loop}}, 2, 0)
	assert.ErrorIs(t, err, ErrUnknownState)

	_, err = NewTable([]State{{Next: loop}}, 0, 0)
	assert.Error(t, err)
}
