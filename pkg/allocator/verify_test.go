package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyReportsEveryViolation(t *testing.T) {
	in := scenarioInput()
	in.InvalidSlots = map[string]CellSet{"Math": NewCellSet(Cell{Day: "Monday", Timeslot: "9:00"})}

	schedule := Schedule{
		{Day: "Monday", Timeslot: "9:00", Subject: "Math"},
		{Day: "Monday", Timeslot: "9:00", Subject: "Art"},
		{Day: "Sunday", Timeslot: "9:00", Subject: "Art"},
	}
	violations := Verify(in, schedule, true)

	kinds := make(map[string]int)
	for _, v := range violations {
		kinds[v.Kind]++
	}
	assert.Equal(t, 1, kinds[ViolationInvalidSlot])
	assert.Equal(t, 1, kinds[ViolationDoubleBooked])
	assert.Equal(t, 1, kinds[ViolationUnknownCell])
	assert.Equal(t, 1, kinds[ViolationCredits], "Math has 1 of 3 lectures, Art is exact")
}

func TestVerifyWithoutCreditCheck(t *testing.T) {
	in := scenarioInput()
	schedule := Schedule{{Day: "Tuesday", Timeslot: "10:00", Subject: "Math"}}
	require.Empty(t, Verify(in, schedule, false))
	require.Len(t, Verify(in, schedule, true), 2)
}
