package drawing

import (
	"errors"
	"testing"

	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDrawing строит чертеж: ROOM (линия 0..10) вставлен в модель со сдвигом (100, 0)
func newTestDrawing(t *testing.T) (*Database, ObjectID) {
	t.Helper()

	db := NewDatabase()
	roomID, err := db.AddDefinition("ROOM", "")
	require.NoError(t, err)

	_, err = db.AddLine(roomID, Line{Start: vec.Vec3{}, End: vec.Vec3{X: 10, Y: 5}})
	require.NoError(t, err)

	instID, err := db.AddInstance(db.ModelSpace(), BlockInstance{
		BlockName: "room",
		Transform: geom.Translate(vec.Vec3{X: 100}),
		Color:     ColorByLayer(),
		Linetype:  LinetypeByLayer(),
	})
	require.NoError(t, err)
	return db, instID
}

func TestDatabase_Defaults(t *testing.T) {
	db, instID := newTestDrawing(t)

	inst, err := db.Instance(instID)
	require.NoError(t, err)

	assert.Equal(t, db.ModelSpace(), inst.Owner, "владелец - пространство модели")
	assert.Equal(t, "0", inst.Layer, "слой по умолчанию")
	assert.Equal(t, 1.0, inst.LinetypeScale, "масштаб типа линий по умолчанию")

	layer, ok := db.Layer("0")
	require.True(t, ok)
	assert.True(t, layer.Color.Equal(ColorWhite))
	assert.Equal(t, LinetypeContinuous, layer.Linetype)

	_, err = db.AddDefinition("Room", "")
	assert.Error(t, err, "имена определений не зависят от регистра")
}

func TestDatabase_EntityReturnsCopy(t *testing.T) {
	db, instID := newTestDrawing(t)

	inst, err := db.Instance(instID)
	require.NoError(t, err)
	inst.Layer = "changed"
	inst.Clip = &ClipRegion{Points: []vec.Vec2{{X: 1}}}

	again, err := db.Instance(instID)
	require.NoError(t, err)
	assert.Equal(t, "0", again.Layer, "изменение копии не должно влиять на чертеж")
	assert.Nil(t, again.Clip)
}

func TestDatabase_Extents(t *testing.T) {
	db, instID := newTestDrawing(t)

	ext, err := db.Extents(instID)
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3{X: 100}, ext.Min)
	assert.Equal(t, vec.Vec3{X: 110, Y: 5}, ext.Max)

	emptyID, err := db.AddDefinition("EMPTY", "")
	require.NoError(t, err)
	_, err = db.AddPolyline(emptyID, Polyline{})
	require.NoError(t, err)
	id, err := db.AddInstance(db.ModelSpace(), BlockInstance{BlockName: "EMPTY"})
	require.NoError(t, err)

	ext, err = db.Extents(id)
	require.NoError(t, err)
	assert.True(t, ext.IsEmpty(), "ломаная без точек дает пустой габарит")
}

func TestDatabase_ExtentsCycle(t *testing.T) {
	db := NewDatabase()
	aID, err := db.AddDefinition("A", "")
	require.NoError(t, err)
	_, err = db.AddInstance(aID, BlockInstance{BlockName: "A"})
	require.NoError(t, err)
	top, err := db.AddInstance(db.ModelSpace(), BlockInstance{BlockName: "A"})
	require.NoError(t, err)

	_, err = db.Extents(top)
	assert.ErrorIs(t, err, ErrNestingTooDeep)
}

func TestTransaction_CommitAndAbort(t *testing.T) {
	db, instID := newTestDrawing(t)
	region := &ClipRegion{Points: []vec.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}}

	// Откат возвращает все изменения
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SetClip(instID, region))
	require.NoError(t, tx.SetExtension(instID, "ACAD_FILTER", "SPATIAL", "x"))
	newID, err := tx.AddInstance(db.ModelSpace(), &BlockInstance{BlockName: "ROOM"})
	require.NoError(t, err)
	require.NoError(t, tx.SetIsolation([]ObjectID{instID, newID}))
	require.NoError(t, tx.Abort())

	inst, err := db.Instance(instID)
	require.NoError(t, err)
	assert.Nil(t, inst.Clip)
	assert.Empty(t, inst.Extension)
	_, err = db.Entity(newID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, db.Isolated())

	ids, err := db.Entities(db.ModelSpace())
	require.NoError(t, err)
	assert.Equal(t, []ObjectID{instID}, ids)

	// Фиксация сохраняет изменения
	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SetClip(instID, region))
	require.NoError(t, tx.Commit())

	inst, err = db.Instance(instID)
	require.NoError(t, err)
	assert.Equal(t, region, inst.Clip)

	assert.ErrorIs(t, tx.Commit(), ErrTransactionClosed)
	assert.ErrorIs(t, tx.SetClip(instID, nil), ErrTransactionClosed)
}

func TestTransaction_SingleActive(t *testing.T) {
	db, _ := newTestDrawing(t)

	tx, err := db.Begin()
	require.NoError(t, err)

	_, err = db.Begin()
	assert.True(t, errors.Is(err, ErrTransactionActive))

	require.NoError(t, tx.Abort())
	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func TestTransaction_ArrayRejectsNativeClip(t *testing.T) {
	db, _ := newTestDrawing(t)
	id, err := db.AddInstance(db.ModelSpace(), BlockInstance{BlockName: "ROOM", Array: true})
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Abort()

	err = tx.SetClip(id, &ClipRegion{Points: []vec.Vec2{{}, {X: 1}, {Y: 1}}})
	assert.ErrorIs(t, err, ErrNativeClipUnsupported)
	assert.NoError(t, tx.SetClip(id, nil), "снятие подрезки разрешено")
}

func TestTransaction_DeleteExtension(t *testing.T) {
	db, instID := newTestDrawing(t)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SetExtension(instID, "D", "E", "v"))
	require.NoError(t, tx.Commit())

	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.DeleteExtension(instID, "D", "E"))
	require.NoError(t, tx.DeleteExtension(instID, "D", "missing"))
	require.NoError(t, tx.Abort())

	inst, err := db.Instance(instID)
	require.NoError(t, err)
	v, ok := inst.Extension.Get("D", "E")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
