package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeIDDeterministic(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.July, 5, 20, 0, 0, 0, time.UTC)

	a := ComputeID("Rey Rey Cafe", "Jazz Night", start)
	b := ComputeID("Rey Rey Cafe", "Jazz Night", start)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestComputeIDNormalizesKeyParts(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.July, 5, 20, 0, 0, 0, time.UTC)
	canonical := ComputeID("Rey Rey Cafe", "Jazz Night", start)

	assert.Equal(t, canonical, ComputeID("  Rey Rey Cafe  ", "JAZZ NIGHT", start))
	assert.Equal(t, canonical, ComputeID("rey rey cafe", "Jazz   Night", start))
}

func TestComputeIDDistinguishesEvents(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.July, 5, 20, 0, 0, 0, time.UTC)
	base := ComputeID("Rey Rey Cafe", "Jazz Night", start)

	assert.NotEqual(t, base, ComputeID("Commodore Ballroom", "Jazz Night", start))
	assert.NotEqual(t, base, ComputeID("Rey Rey Cafe", "Open Mic", start))
	assert.NotEqual(t, base, ComputeID("Rey Rey Cafe", "Jazz Night", start.Add(time.Hour)))
}

func TestComputeIDUsesUTC(t *testing.T) {
	t.Parallel()

	eastern := time.FixedZone("EDT", -4*60*60)
	local := time.Date(2025, time.July, 5, 16, 0, 0, 0, eastern)
	utc := time.Date(2025, time.July, 5, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, ComputeID("Rey Rey Cafe", "Jazz Night", utc), ComputeID("Rey Rey Cafe", "Jazz Night", local))
}
