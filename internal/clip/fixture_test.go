package clip

import (
	"errors"
	"math"
	"testing"

	"github.com/annel0/blockclip/internal/drawing"
	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/logging"
	"github.com/annel0/blockclip/internal/vec"
	"github.com/stretchr/testify/require"
)

var errHost = errors.New("сбой движка")

// square - квадрат 0..4 в локальных координатах
func square() *drawing.ClipRegion {
	return &drawing.ClipRegion{Points: []vec.Vec2{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}}
}

type fixture struct {
	t   *testing.T
	db  *drawing.Database
	svc *Service
	ms  drawing.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := drawing.NewDatabase()
	require.NoError(t, db.AddLayer(drawing.Layer{Name: "walls", Color: drawing.ColorRed, Linetype: "DASHED"}))
	require.NoError(t, db.AddLayer(drawing.Layer{Name: "hidden", Color: drawing.ColorBlue, Linetype: "HIDDEN"}))

	return &fixture{
		t:   t,
		db:  db,
		svc: New(Options{Engine: db, Logger: logging.NewNop()}),
		ms:  db.ModelSpace(),
	}
}

// block создает определение; withLine добавляет отрезок (0,0)-(10,5)
func (f *fixture) block(name string, withLine bool) drawing.ObjectID {
	f.t.Helper()
	id, err := f.db.AddDefinition(name, "")
	require.NoError(f.t, err)
	if withLine {
		_, err = f.db.AddLine(id, drawing.Line{End: vec.Vec3{X: 10, Y: 5}})
		require.NoError(f.t, err)
	}
	return id
}

func (f *fixture) insert(container drawing.ObjectID, inst drawing.BlockInstance) drawing.ObjectID {
	f.t.Helper()
	if inst.Color == (drawing.ColorSpec{}) {
		inst.Color = drawing.ColorByLayer()
	}
	if inst.Linetype == (drawing.LinetypeSpec{}) {
		inst.Linetype = drawing.LinetypeByLayer()
	}
	id, err := f.db.AddInstance(container, inst)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) instance(id drawing.ObjectID) *drawing.BlockInstance {
	f.t.Helper()
	inst, err := f.db.Instance(id)
	require.NoError(f.t, err)
	return inst
}

func (f *fixture) count(container drawing.ObjectID) int {
	f.t.Helper()
	ids, err := f.db.Entities(container)
	require.NoError(f.t, err)
	return len(ids)
}

// nested строит A (в модели, подрезана) -> M (поворот 90°) -> B (подрезана, масштаб 2)
type nested struct {
	a, m, b drawing.ObjectID
	mid     drawing.ObjectID // определение MID, владелец B
}

func (f *fixture) nested() nested {
	f.t.Helper()
	f.block("INNER", true)
	mid := f.block("MID", false)
	outer := f.block("OUTER", true)

	n := nested{mid: mid}
	n.b = f.insert(mid, drawing.BlockInstance{
		BlockName: "INNER",
		Transform: geom.Placement(vec.Vec3{X: 5}, 0, vec.Vec3{X: 2, Y: 2, Z: 1}),
		Layer:     "hidden",
		Color:     drawing.ColorByBlock(),
		Linetype:  drawing.LinetypeByLayer(),
		Clip:      square(),
	})
	n.m = f.insert(outer, drawing.BlockInstance{
		BlockName: "MID",
		Transform: geom.Placement(vec.Vec3{X: 10}, math.Pi/2, vec.Vec3{X: 1, Y: 1, Z: 1}),
		Color:     drawing.ExplicitColor(drawing.ColorGreen),
	})
	n.a = f.insert(f.ms, drawing.BlockInstance{
		BlockName: "OUTER",
		Transform: geom.Translate(vec.Vec3{X: 100}),
		Layer:     "walls",
		Clip:      square(),
	})
	return n
}

// failingEngine подменяет транзакции и чтение отдельных сущностей
type failingEngine struct {
	*drawing.Database
	failOn string
	broken drawing.ObjectID
}

func (e *failingEngine) Entity(id drawing.ObjectID) (drawing.Entity, error) {
	if id == e.broken {
		return nil, errHost
	}
	return e.Database.Entity(id)
}

func (e *failingEngine) Begin() (drawing.Transaction, error) {
	if e.failOn == "Begin" {
		return nil, errHost
	}
	tx, err := e.Database.Begin()
	if err != nil {
		return nil, err
	}
	return &failingTx{Transaction: tx, failOn: e.failOn}, nil
}

type failingTx struct {
	drawing.Transaction
	failOn string
}

func (t *failingTx) SetClip(id drawing.ObjectID, region *drawing.ClipRegion) error {
	if t.failOn == "SetClip" {
		return errHost
	}
	return t.Transaction.SetClip(id, region)
}

func (t *failingTx) SetIsolation(ids []drawing.ObjectID) error {
	if t.failOn == "SetIsolation" {
		return errHost
	}
	return t.Transaction.SetIsolation(ids)
}
