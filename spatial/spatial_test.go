package spatial_test

import (
	"math"
	"testing"

	"github.com/galanafai/godview/ids"
	"github.com/galanafai/godview/spatial"
	"github.com/stretchr/testify/require"
)

func TestGnomonicRoundTripAtHighLatitude(t *testing.T) {
	require := require.New(t)

	origin := spatial.Position{Lat: 60.0, Lon: 10.0, Alt: 0}
	c := spatial.Position{Lat: 60.0, Lon: 10.0, Alt: 0}

	local := spatial.ToLocal(origin, c)
	moved := spatial.Local{X: local.X + 50, Y: local.Y, Z: local.Z}
	global := spatial.ToGlobal(origin, moved)
	roundTrip := spatial.ToLocal(origin, global)

	// spec §8 scenario 2: moving +50m east and converting back must
	// agree with (50, 0, 0) to within 0.1m.
	delta := math.Hypot(roundTrip.X-50, roundTrip.Y-0)
	require.Less(delta, 0.1)
}

func TestGlobalLocalGlobalRoundTripWithinTolerance(t *testing.T) {
	require := require.New(t)

	origin := spatial.Position{Lat: 37.77, Lon: -122.42, Alt: 0}
	p := spatial.Position{Lat: 37.7715, Lon: -122.4185, Alt: 12}

	local := spatial.ToLocal(origin, p)
	back := spatial.ToGlobal(origin, local)

	require.Less(math.Abs(back.Lat-p.Lat)*111320, 0.1)
	require.Less(math.Abs(back.Alt-p.Alt), 0.1)
}

func TestVerticalSeparationScenario(t *testing.T) {
	require := require.New(t)

	idx := spatial.NewIndex(9, 10, 5)
	a := ids.NewEntityID()
	b := ids.NewEntityID()

	posA := spatial.Position{Lat: 37.7749, Lon: -122.4194, Alt: 0.0}
	posB := spatial.Position{Lat: 37.7749, Lon: -122.4194, Alt: 300.0}

	require.NoError(idx.Insert(a, posA))
	require.NoError(idx.Insert(b, posB))

	results, err := idx.RadiusQuery(posA, 10.0)
	require.NoError(err)

	found := make(map[ids.EntityID]bool)
	for _, r := range results {
		found[r.EntityID] = true
	}
	require.True(found[a])
	require.False(found[b])
}

func TestInsertRemoveInsertMatchesSingleInsert(t *testing.T) {
	require := require.New(t)

	p := spatial.Position{Lat: 10, Lon: 10, Alt: 1}
	id := ids.NewEntityID()

	idxA := spatial.NewIndex(9, 10, 5)
	require.NoError(idxA.Insert(id, p))

	idxB := spatial.NewIndex(9, 10, 5)
	require.NoError(idxB.Insert(id, p))
	require.NoError(idxB.Remove(id))
	require.NoError(idxB.Insert(id, p))

	resA, err := idxA.RadiusQuery(p, 1)
	require.NoError(err)
	resB, err := idxB.RadiusQuery(p, 1)
	require.NoError(err)
	require.Equal(len(resA), len(resB))
}

func TestRemoveUnknownEntityErrors(t *testing.T) {
	idx := spatial.NewIndex(9, 10, 5)
	err := idx.Remove(ids.NewEntityID())
	require.ErrorIs(t, err, spatial.ErrUnknownEntity)
}

func TestInsertRejectsNonFinitePosition(t *testing.T) {
	idx := spatial.NewIndex(9, 10, 5)
	err := idx.Insert(ids.NewEntityID(), spatial.Position{Lat: math.NaN(), Lon: 0, Alt: 0})
	require.ErrorIs(t, err, spatial.ErrInvalidPosition)
}
