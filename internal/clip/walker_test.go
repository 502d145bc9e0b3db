package clip

import (
	"context"
	"testing"

	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/logging"
	"github.com/annel0/blockclip/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordFor(t *testing.T, records []ClippedInstanceRecord, id drawing.ObjectID) ClippedInstanceRecord {
	t.Helper()
	for _, r := range records {
		if r.InstanceID == id {
			return r
		}
	}
	t.Fatalf("запись для вставки %s не найдена", id)
	return ClippedInstanceRecord{}
}

func TestFindClippedInstances_UnclippedTopLevel(t *testing.T) {
	f := newFixture(t)
	f.block("PLAIN", true)
	f.insert(f.ms, drawing.BlockInstance{BlockName: "PLAIN"})

	records, err := f.svc.Walker.FindClippedInstances(context.Background(), f.ms)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFindClippedInstances_NestedWorldPosition(t *testing.T) {
	f := newFixture(t)
	n := f.nested()

	records, err := f.svc.Walker.FindClippedInstances(context.Background(), f.ms)
	require.NoError(t, err)
	require.Len(t, records, 2)

	a := recordFor(t, records, n.a)
	assert.Equal(t, 0, a.NestLevel)
	assert.Equal(t, "OUTER", a.BlockName)
	assert.Equal(t, MethodNative, a.DetectionMethod)
	assert.Equal(t, []drawing.ObjectID{n.a}, a.Path)

	b := recordFor(t, records, n.b)
	assert.Equal(t, 2, b.NestLevel)
	assert.Equal(t, []drawing.ObjectID{n.a, n.m, n.b}, b.Path)
	assert.Equal(t, "hidden", b.Layer)

	composed := f.instance(n.a).Transform.
		Multiply(f.instance(n.m).Transform).
		Multiply(f.instance(n.b).Transform)
	assert.True(t, composed.NearlyEqual(b.WorldTransform, 1e-9))
	assert.True(t, composed.Origin().NearlyEqual(b.WorldPosition, 1e-9))
	assert.True(t, b.WorldPosition.NearlyEqual(vec.Vec3{X: 110, Y: 5}, 1e-9),
		"ожидалась позиция (110, 5), получено %+v", b.WorldPosition)
}

func TestFindClippedInstances_NestLevelMatchesContainer(t *testing.T) {
	f := newFixture(t)
	n := f.nested()

	// Подрезаем и промежуточную вставку
	_, err := f.svc.Builder.BuildBoundary(context.Background(),
		[]drawing.ObjectID{n.a, n.m},
		[]vec.Vec2{{X: 90, Y: -10}, {X: 130, Y: 30}}, Rectangle)
	require.NoError(t, err)

	records, err := f.svc.Walker.FindClippedInstances(context.Background(), f.ms)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for _, r := range records {
		owner := f.instance(r.InstanceID).Owner
		assert.Equal(t, r.ContainerID, owner)
		assert.Equal(t, r.NestLevel == 0, owner == f.ms, "вставка %s", r.InstanceID)
		assert.Len(t, r.Path, r.NestLevel+1)
	}
}

func TestFindClippedInstances_EffectiveName(t *testing.T) {
	f := newFixture(t)
	_, err := f.db.AddDefinition("*U12", "DOOR")
	require.NoError(t, err)
	f.insert(f.ms, drawing.BlockInstance{BlockName: "*U12", Clip: square()})

	records, err := f.svc.Walker.FindClippedInstances(context.Background(), f.ms)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "DOOR", records[0].BlockName)
}

func TestFindClippedInstancesByLayer(t *testing.T) {
	f := newFixture(t)
	f.block("PLAIN", true)
	onWalls := f.insert(f.ms, drawing.BlockInstance{BlockName: "PLAIN", Layer: "walls", Clip: square()})
	f.insert(f.ms, drawing.BlockInstance{BlockName: "PLAIN", Layer: "hidden", Clip: square()})
	// Цвет ПОСЛОЮ не влияет на фильтр: учитывается только собственный слой
	f.insert(f.ms, drawing.BlockInstance{BlockName: "PLAIN", Layer: "0", Color: drawing.ExplicitColor(drawing.ColorRed)})

	records, err := f.svc.Walker.FindClippedInstancesByLayer(context.Background(), f.ms, "WALLS")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, onWalls, records[0].InstanceID)
}

func TestFindClippedInstances_CycleSuspected(t *testing.T) {
	f := newFixture(t)
	loop := f.block("LOOP", true)
	f.insert(loop, drawing.BlockInstance{BlockName: "LOOP", Transform: geom.Translate(vec.Vec3{X: 1})})
	f.insert(f.ms, drawing.BlockInstance{BlockName: "LOOP"})

	svc := New(Options{Engine: f.db, Logger: logging.NewNop(), MaxDepth: 8})
	_, err := svc.Walker.FindClippedInstances(context.Background(), f.ms)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleSuspected)
	assert.Equal(t, CycleSuspected, KindOf(err))
}

func TestFindClippedInstances_DepthLimitIsInclusive(t *testing.T) {
	f := newFixture(t)
	// Цепочка L0 -> L1 -> L2, подрезана самая глубокая вставка (уровень 2)
	f.block("L2", true)
	l1 := f.block("L1", false)
	l0 := f.block("L0", false)
	f.insert(l1, drawing.BlockInstance{BlockName: "L2", Clip: square()})
	f.insert(l0, drawing.BlockInstance{BlockName: "L1"})
	f.insert(f.ms, drawing.BlockInstance{BlockName: "L0"})

	svc := New(Options{Engine: f.db, Logger: logging.NewNop(), MaxDepth: 2})
	records, err := svc.Walker.FindClippedInstances(context.Background(), f.ms)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].NestLevel)

	svc = New(Options{Engine: f.db, Logger: logging.NewNop(), MaxDepth: 1})
	_, err = svc.Walker.FindClippedInstances(context.Background(), f.ms)
	assert.ErrorIs(t, err, ErrCycleSuspected)
}

func TestFindClippedInstances_SkipsUnreadableInstance(t *testing.T) {
	f := newFixture(t)
	f.block("PLAIN", true)
	bad := f.insert(f.ms, drawing.BlockInstance{BlockName: "PLAIN", Clip: square()})
	good := f.insert(f.ms, drawing.BlockInstance{BlockName: "PLAIN", Clip: square()})

	engine := &failingEngine{Database: f.db, broken: bad}
	svc := New(Options{Engine: engine, Logger: logging.NewNop()})

	records, err := svc.Walker.FindClippedInstances(context.Background(), f.ms)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, good, records[0].InstanceID)
}

func TestFindClippedInstances_UnknownContainer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Walker.FindClippedInstances(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFindClippedInstances_Metrics(t *testing.T) {
	f := newFixture(t)
	f.nested()

	metrics := NewMetrics(prometheus.NewRegistry())
	svc := New(Options{Engine: f.db, Logger: logging.NewNop(), Metrics: metrics})

	_, err := svc.Walker.FindClippedInstances(context.Background(), f.ms)
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.visited))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.found.WithLabelValues(MethodNative)))
}
