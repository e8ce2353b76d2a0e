package poise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskTableCreateLookupReclaim(t *testing.T) {
	tt := NewTaskTable()
	a, e := tt.Create(0x8000_0000, 0x8000_2000)
	require.Equal(t, NoError, e)
	b, e := tt.Create(0x8001_0000, 0x8001_2000)
	require.Equal(t, NoError, e)

	require.NotEqual(t, a.Id, b.Id, "task ids are unique across slots")
	require.NotEqual(t, a.Slot, b.Slot)
	require.Equal(t, uint16(2), tt.Running())
	require.Same(t, a, tt.Lookup(a.Slot))

	require.Equal(t, NoError, tt.Reclaim(a.Slot))
	require.Nil(t, tt.Lookup(a.Slot))
	require.Equal(t, uint16(1), tt.Running())

	//the freed slot is reusable, with a fresh id
	c, e := tt.Create(0x8002_0000, 0x8002_2000)
	require.Equal(t, NoError, e)
	require.Equal(t, a.Slot, c.Slot)
	require.NotEqual(t, a.Id, c.Id)
}

func TestTaskTableExhaustion(t *testing.T) {
	tt := NewTaskTable()
	for i := 0; i < maxTasks; i++ {
		_, e := tt.Create(0, 0x1000)
		require.Equal(t, NoError, e)
	}
	_, e := tt.Create(0, 0x1000)
	require.NotEqual(t, NoError, e)
	require.Contains(t, EntryErrorMessage(e), "no free task slot")
}

func TestTaskTableReclaimBadSlot(t *testing.T) {
	tt := NewTaskTable()
	require.NotEqual(t, NoError, tt.Reclaim(3))
	require.NotEqual(t, NoError, tt.Reclaim(TaskId(maxTasks)))
	require.Nil(t, tt.Lookup(TaskId(maxTasks+7)))
}

func TestDoomIsSticky(t *testing.T) {
	tt := NewTaskTable()
	a, _ := tt.Create(0, 0x1000)
	require.False(t, a.Doomed())
	a.Doom()
	require.True(t, a.Doomed())
	a.Doom()
	require.True(t, a.Doomed())
}

func TestErrorTextCarriesTaskSlot(t *testing.T) {
	e := MakeError(ErrorWindowBackingStoreFault, 7)
	require.Contains(t, EntryErrorMessage(e), "Task slot 7")

	unknown := EntryError(0x00aa_0000_0000_0042)
	require.Equal(t, "Unknown error code", EntryErrorMessage(unknown))
}
