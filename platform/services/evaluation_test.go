package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 {
	return &v
}

func TestAggregateAttemptGroups(t *testing.T) {
	record := map[string]*float64{
		"sprint_1":       fptr(5),
		"agility_1":      fptr(3),
		"agility_2":      fptr(0),
		"agility_3":      fptr(6),
		"power_strong_2": fptr(10),
		"power_strong_4": fptr(20),
	}

	groups := aggregateAttemptGroups(record)

	// Every known group is present even when no attempts were recorded.
	assert.Len(t, groups, len(attemptGroups))

	sprint := groups["sprint"]
	assert.Equal(t, 5.0, *sprint.Average)
	assert.Equal(t, 5.0, *sprint.Max)
	assert.Equal(t, 5.0, *sprint.Total)

	// A recorded zero is a valid attempt, missing slots are not.
	agility := groups["agility"]
	assert.Equal(t, 3.0, *agility.Average)
	assert.Equal(t, 6.0, *agility.Max)
	assert.Equal(t, 9.0, *agility.Total)
	assert.Len(t, agility.Attempts, 3)

	// Attempts keep their positions.
	power := groups["power_strong"]
	assert.Nil(t, power.Attempts[0])
	assert.Equal(t, 10.0, *power.Attempts[1])
	assert.Nil(t, power.Attempts[2])
	assert.Equal(t, 20.0, *power.Attempts[3])
	assert.Equal(t, 15.0, *power.Average)
	assert.Equal(t, 20.0, *power.Max)
	assert.Equal(t, 30.0, *power.Total)
}

func TestAggregateEmptyGroupOmitsDerivedFields(t *testing.T) {
	groups := aggregateAttemptGroups(map[string]*float64{})

	for name, stats := range groups {
		assert.Nil(t, stats.Average, "group %v", name)
		assert.Nil(t, stats.Max, "group %v", name)
		assert.Nil(t, stats.Total, "group %v", name)
		assert.Equal(t, attemptGroups[name], len(stats.Attempts))
	}
}

func TestAggregateIgnoresNullAttempts(t *testing.T) {
	record := map[string]*float64{
		"juggling_1": nil,
		"juggling_2": fptr(12),
	}

	groups := aggregateAttemptGroups(record)

	juggling := groups["juggling"]
	assert.Equal(t, 12.0, *juggling.Average)
	assert.Equal(t, 12.0, *juggling.Total)
}
