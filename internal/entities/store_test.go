package entities

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/vanet.sim/internal/fcd"
	"github.com/banshee-data/vanet.sim/internal/geo"
	"github.com/banshee-data/vanet.sim/internal/gis/gistest"
)

// offset returns map-centre coordinates displaced east by the given metres.
func offset(meters float64) (float64, float64) {
	return geo.XCenter + meters*geo.MetersToDegrees, geo.YCenter
}

func frame(t float64, recs ...fcd.VehicleRecord) *fcd.Timestep {
	return &fcd.Timestep{Time: t, Vehicles: recs}
}

func TestApplyFrameLifecycle(t *testing.T) {
	ix := &gistest.Index{}
	s := NewStore(ix, false)

	x1, y1 := offset(0)
	x2, y2 := offset(50)

	require.NoError(t, s.ApplyFrame(frame(0,
		fcd.VehicleRecord{ID: 1, X: x1, Y: y1, Speed: 10},
		fcd.VehicleRecord{ID: 2, X: x2, Y: y2, Speed: 0},
	)))

	v1, v2 := s.Vehicle(1), s.Vehicle(2)
	require.NotNil(t, v1)
	require.NotNil(t, v2)
	require.True(t, v1.Active)
	require.True(t, v2.Active)
	require.True(t, v2.Parked, "zero-speed vehicle should be parked")
	require.False(t, v1.Parked)
	require.NotZero(t, v1.GID)
	require.NotEqual(t, v1.GID, v2.GID)
	require.Equal(t, 0.0, v1.TimeAdded)

	// Cell coordinates stay consistent with geographic ones.
	wantX, wantY := geo.CellFromWGS84(x1, y1)
	require.Equal(t, wantX, v1.XCell)
	require.Equal(t, wantY, v1.YCell)

	// Next frame: vehicle 2 disappears, vehicle 1 moves.
	x1b, y1b := offset(30)
	require.NoError(t, s.ApplyFrame(frame(1,
		fcd.VehicleRecord{ID: 1, X: x1b, Y: y1b, Speed: 8},
	)))

	require.True(t, v1.Active)
	require.False(t, v2.Active, "absent vehicle must go inactive")
	require.Equal(t, 2, s.VehicleCount(), "inactive vehicles stay in the store")
	require.InDelta(t, x1b, v1.XGeo, 1e-12)

	// The spatial index tracked the move.
	gx, gy, err := ix.Coords(v1.GID)
	require.NoError(t, err)
	require.InDelta(t, x1b, gx, 1e-12)
	require.InDelta(t, y1b, gy, 1e-12)

	// Reappearance reactivates the same entity with the same gid.
	oldGID := v2.GID
	require.NoError(t, s.ApplyFrame(frame(2,
		fcd.VehicleRecord{ID: 2, X: x2, Y: y2, Speed: 4},
	)))
	require.True(t, v2.Active)
	require.Equal(t, oldGID, v2.GID)
	require.False(t, v2.Parked)
	require.False(t, v1.Active)
}

func TestAddRSUObstructed(t *testing.T) {
	ix := &gistest.Index{}
	x, y := offset(0)
	d := 10 * geo.MetersToDegrees
	ix.AddBuildingRect(x-d, y-d, x+d, y+d)

	s := NewStore(ix, false)
	_, err := s.AddRSU(10001, x, y, true, 0)
	require.ErrorIs(t, err, ErrObstructed)
	require.Empty(t, s.RSUs(), "failed placement must not mutate the RSU list")

	// No gid was reserved: the next insert gets the first gid.
	clearX, clearY := offset(100)
	r, err := s.AddRSU(10001, clearX, clearY, true, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), r.GID)
	require.True(t, r.Active)
	require.NotNil(t, r.NeighborMaps)
	require.Equal(t, r.XCell, r.Coverage.XCenter)
	require.Equal(t, r.YCell, r.Coverage.YCenter)
}

func TestVehiclesInRangeSignalFilter(t *testing.T) {
	ix := &gistest.Index{}
	s := NewStore(ix, false)

	xc, yc := offset(0)
	x140, y140 := offset(140) // LOS signal 2: kept
	x160, y160 := offset(160) // out of range entirely
	x120, y120 := offset(120) // LOS signal 3, but NLOS signal 2 via building

	require.NoError(t, s.ApplyFrame(frame(0,
		fcd.VehicleRecord{ID: 1, X: xc, Y: yc, Speed: 5},
		fcd.VehicleRecord{ID: 2, X: x140, Y: y140, Speed: 5},
		fcd.VehicleRecord{ID: 3, X: x160, Y: y160, Speed: 5},
		fcd.VehicleRecord{ID: 4, X: x120, Y: y120, Speed: 5},
	)))

	src := s.Vehicle(1)
	got, err := s.VehiclesInRange(&src.Node)
	require.NoError(t, err)
	require.ElementsMatch(t, []int{2, 4}, vehicleIDs(got))

	// A building across the path to vehicle 2 drops it to NLOS: at 140m the
	// NLOS signal is 0, below the usable floor.
	bx, by := offset(70)
	d := 5 * geo.MetersToDegrees
	ix.AddBuildingRect(bx-d, by-d, bx+d, by+d)

	got, err = s.VehiclesInRange(&src.Node)
	require.NoError(t, err)
	require.ElementsMatch(t, []int{4}, vehicleIDs(got))
}

func TestVehiclesInRangeSkipsInactive(t *testing.T) {
	ix := &gistest.Index{}
	s := NewStore(ix, false)

	xc, yc := offset(0)
	xn, yn := offset(50)
	require.NoError(t, s.ApplyFrame(frame(0,
		fcd.VehicleRecord{ID: 1, X: xc, Y: yc, Speed: 5},
		fcd.VehicleRecord{ID: 2, X: xn, Y: yn, Speed: 5},
	)))
	// Vehicle 2 leaves the trace but its stale point stays in the index.
	require.NoError(t, s.ApplyFrame(frame(1,
		fcd.VehicleRecord{ID: 1, X: xc, Y: yc, Speed: 5},
	)))

	src := s.Vehicle(1)
	got, err := s.VehiclesInRange(&src.Node)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRSUsInRangeFilter(t *testing.T) {
	ix := &gistest.Index{}
	s := NewStore(ix, false)

	xc, yc := offset(0)
	require.NoError(t, s.ApplyFrame(frame(0,
		fcd.VehicleRecord{ID: 1, X: xc, Y: yc, Speed: 5},
	)))
	src := s.Vehicle(1)

	xa, ya := offset(60)
	xi, yi := offset(-60)
	active, err := s.AddRSU(10001, xa, ya, true, 0)
	require.NoError(t, err)
	inactive, err := s.AddRSU(10002, xi, yi, true, 0)
	require.NoError(t, err)
	inactive.Active = false

	got, err := s.RSUsInRange(&src.Node, AllActive)
	require.NoError(t, err)
	require.Equal(t, []*RSU{active}, got)

	got, err = s.RSUsInRange(&src.Node, All)
	require.NoError(t, err)
	require.ElementsMatch(t, []*RSU{active, inactive}, got)
}

func TestVehiclesNearPoint(t *testing.T) {
	ix := &gistest.Index{}
	s := NewStore(ix, false)

	x5, y5 := offset(5)
	x40, y40 := offset(40)
	require.NoError(t, s.ApplyFrame(frame(0,
		fcd.VehicleRecord{ID: 1, X: x5, Y: y5, Speed: 5},
		fcd.VehicleRecord{ID: 2, X: x40, Y: y40, Speed: 5},
	)))

	cx, cy := offset(0)
	got, err := s.VehiclesNearPoint(cx, cy, 8)
	require.NoError(t, err)
	require.Equal(t, []int{1}, vehicleIDs(got))

	got, err = s.VehiclesNearPoint(cx, cy, 64)
	require.NoError(t, err)
	require.ElementsMatch(t, []int{1, 2}, vehicleIDs(got))
}
