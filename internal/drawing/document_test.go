package drawing

import (
	"math"
	"testing"

	"github.com/annel0/blockclip/internal/geom"
	"github.com/annel0/blockclip/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `
layers:
  - name: walls
    color: "1"
    linetype: Dashed
model:
  - insert:
      id: top
      block: FLOOR
      position: {x: 100, y: 50}
      rotation: 90
      layer: walls
      color: bylayer
      linetype: byblock
blocks:
  - name: ROOM
    entities:
      - line: {from: {x: 0, y: 0}, to: {x: 10, y: 0}}
      - circle: {center: {x: 5, y: 5}, radius: 2}
  - name: FLOOR
    entities:
      - insert:
          block: ROOM
          position: {x: 1, y: 2}
          scale: {x: 2, y: 2, z: 1}
          color: "#00ff00"
          clip:
            points: [{x: 0, y: 0}, {x: 4, y: 0}, {x: 4, y: 4}]
`

func TestDocument_Build(t *testing.T) {
	doc, err := ParseDocument([]byte(testDocument))
	require.NoError(t, err)

	db, err := doc.Build()
	require.NoError(t, err)

	layer, ok := db.Layer("WALLS")
	require.True(t, ok)
	assert.True(t, layer.Color.Equal(ColorRed))
	assert.Equal(t, "Dashed", layer.Linetype)

	top, err := db.Instance("top")
	require.NoError(t, err)
	assert.Equal(t, "walls", top.Layer)
	assert.Equal(t, ByLayer, top.Color.Kind)
	assert.Equal(t, ByBlock, top.Linetype.Kind)
	assert.True(t, top.Transform.Apply(vec.Vec3{X: 1}).NearlyEqual(vec.Vec3{X: 100, Y: 51}, 1e-9))

	floor, err := db.Definition("FLOOR")
	require.NoError(t, err)
	require.Len(t, floor.Entities, 1)

	nested, err := db.Instance(floor.Entities[0])
	require.NoError(t, err)
	assert.True(t, nested.Color.Value.Equal(ColorGreen))
	require.NotNil(t, nested.Clip)
	assert.Len(t, nested.Clip.Points, 3)
}

func TestDocument_ExportRoundTrip(t *testing.T) {
	doc, err := ParseDocument([]byte(testDocument))
	require.NoError(t, err)
	db, err := doc.Build()
	require.NoError(t, err)

	data, err := ExportDocument(db).Marshal()
	require.NoError(t, err)

	again, err := ParseDocument(data)
	require.NoError(t, err)
	db2, err := again.Build()
	require.NoError(t, err)

	top1, err := db.Instance("top")
	require.NoError(t, err)
	top2, err := db2.Instance("top")
	require.NoError(t, err)
	assert.True(t, top1.Transform.NearlyEqual(top2.Transform, 1e-9))
	assert.Equal(t, top1.Color, top2.Color)
	assert.Equal(t, top1.Linetype, top2.Linetype)
	assert.Len(t, db2.Definitions(), 3, "ROOM, FLOOR и пространство модели")
}

func TestDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown block", "model:\n  - insert: {block: NOPE}\n"},
		{"bad color", "blocks:\n  - name: A\nmodel:\n  - insert: {block: A, color: purple}\n"},
		{"empty entity", "model:\n  - {}\n"},
		{"bad layer color", "layers:\n  - {name: x, color: byblock}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.src))
			require.NoError(t, err)
			_, err = doc.Build()
			assert.Error(t, err)
		})
	}
}

func TestDocument_PlanarScaleKeepsZ(t *testing.T) {
	src := "blocks:\n  - name: A\nmodel:\n  - insert: {id: r1, block: A, scale: {x: 2, y: 2}}\n"
	doc, err := ParseDocument([]byte(src))
	require.NoError(t, err)
	db, err := doc.Build()
	require.NoError(t, err)

	r1, err := db.Instance("r1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, r1.Transform.M[2][2])
	_, ok := r1.Transform.Inverse()
	assert.True(t, ok, "матрица плоской вставки обратима")
}

func TestDocument_SkewedTransformRoundTrip(t *testing.T) {
	db := NewDatabase()
	def, err := db.AddDefinition("A", "")
	require.NoError(t, err)
	_, err = db.AddLine(def, Line{End: vec.Vec3{X: 1}})
	require.NoError(t, err)

	// Неравномерный масштаб родителя и повернутая вставка дают перекос
	skew := geom.Scale(3, 1, 1).Multiply(geom.RotateZ(math.Pi / 4))
	_, err = db.AddInstance(db.ModelSpace(), BlockInstance{ID: "skew", BlockName: "A", Transform: skew})
	require.NoError(t, err)
	plain := geom.Placement(vec.Vec3{X: 5}, math.Pi/6, vec.Vec3{X: 2, Y: -1, Z: 1})
	_, err = db.AddInstance(db.ModelSpace(), BlockInstance{ID: "plain", BlockName: "A", Transform: plain})
	require.NoError(t, err)

	doc := ExportDocument(db)
	require.Len(t, doc.Model, 2)
	for _, e := range doc.Model {
		require.NotNil(t, e.Insert)
		if e.Insert.ID == "skew" {
			assert.NotNil(t, e.Insert.Transform)
		} else {
			assert.Nil(t, e.Insert.Transform, "раскладываемая матрица пишется компонентами")
		}
	}

	data, err := doc.Marshal()
	require.NoError(t, err)
	again, err := ParseDocument(data)
	require.NoError(t, err)
	db2, err := again.Build()
	require.NoError(t, err)

	got, err := db2.Instance("skew")
	require.NoError(t, err)
	assert.True(t, got.Transform.NearlyEqual(skew, 1e-9), "было %v, стало %v", skew.M, got.Transform.M)
	got, err = db2.Instance("plain")
	require.NoError(t, err)
	assert.True(t, got.Transform.NearlyEqual(plain, 1e-9))
}
