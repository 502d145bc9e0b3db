package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliDocument = `
layers:
  - name: walls
    color: "1"
    linetype: Dashed
model:
  - insert:
      id: top
      block: FLOOR
      position: {x: 100, y: 50}
      layer: walls
      color: bylayer
blocks:
  - name: ROOM
    entities:
      - line: {from: {x: 0, y: 0}, to: {x: 10, y: 0}}
      - circle: {center: {x: 5, y: 5}, radius: 2}
  - name: FLOOR
    entities:
      - insert:
          id: room
          block: ROOM
          position: {x: 1, y: 2}
          color: "#00ff00"
          clip:
            points: [{x: 0, y: 0}, {x: 4, y: 0}, {x: 4, y: 4}]
`

type cliEnv struct {
	t       *testing.T
	dataDir string
	docPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Setenv("BLOCKCLIP_CONFIG", "")
	t.Setenv("BLOCKCLIP_LOG_LEVEL", "error")

	dir := t.TempDir()
	docPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(docPath, []byte(cliDocument), 0o644))
	return &cliEnv{t: t, dataDir: filepath.Join(dir, "data"), docPath: docPath}
}

func (e *cliEnv) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"--data-dir", e.dataDir}, args...)
	code := execute(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (e *cliEnv) mustRun(args ...string) string {
	code, out, errOut := e.run(args...)
	require.Equal(e.t, 0, code, "stderr: %s", errOut)
	return out
}

func TestCLI_ImportListDelete(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun("import", env.docPath)
	assert.Contains(t, out, "plan:")

	out = env.mustRun("list")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "plan")

	env.mustRun("delete", "plan")
	code, _, errOut := env.run("export", "plan")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "ошибка")
}

func TestCLI_FindJSON(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("import", env.docPath, "--name", "plan")

	out := env.mustRun("find", "plan", "--json")
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "room", records[0]["instance_id"])
	assert.EqualValues(t, 1, records[0]["nest_level"])

	out = env.mustRun("find", "plan", "--layer", "walls")
	assert.NotContains(t, out, "room")
}

func TestCLI_IsolateWithVerification(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("import", env.docPath, "--name", "plan")

	out := env.mustRun("isolate", "plan", "--verify")
	assert.Contains(t, out, "PROMOTED room")
	assert.Contains(t, out, ": ok")
	assert.NotContains(t, out, "FAIL")

	// Оригинал остается во FLOOR, копия подрезана на верхнем уровне
	out = env.mustRun("find", "plan")
	assert.Equal(t, 2, strings.Count(out, "ROOM"))

	out = env.mustRun("unisolate", "plan")
	assert.Contains(t, out, "изоляция снята")
}

func TestCLI_ClipAutoclipUnclip(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("import", env.docPath, "--name", "plan")

	out := env.mustRun("clip", "plan", "--path", "top", "--rect", "100,50,105,55")
	assert.Contains(t, out, "top: граница из 4 вершин")

	env.mustRun("unclip", "plan", "--id", "top")
	out = env.mustRun("autoclip", "plan", "--path", "top/room")
	assert.Contains(t, out, "room:")

	out = env.mustRun("export", "plan")
	assert.Contains(t, out, "clip:")
}

func TestCLI_Errors(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("import", env.docPath, "--name", "plan")

	code, _, errOut := env.run("clip", "plan", "--path", "top", "--rect", "1,1,1,1")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "DegenerateBoundary")

	code, _, errOut = env.run("autoclip", "plan", "--path", "missing")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "InstanceNotFound")

	code, _, _ = env.run("clip", "plan", "--path", "top")
	assert.Equal(t, 1, code)

	code, _, _ = env.run("clip", "plan", "--path", "top", "--rect", "1,2,3")
	assert.Equal(t, 1, code)
}

func TestParsePolygon(t *testing.T) {
	pts, err := parsePolygon("0,0; 10,0; 10,5;")
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.Equal(t, 10.0, pts[2].X)
	assert.Equal(t, 5.0, pts[2].Y)

	_, err = parsePolygon("0,0;1")
	assert.Error(t, err)

	path, err := parsePath("a/ b /c")
	require.NoError(t, err)
	assert.Len(t, path, 3)

	_, err = parsePath(" / ")
	assert.Error(t, err)
}

const sharedDocument = `
model:
  - insert: {id: left, block: FLOOR, position: {x: 0, y: 0}}
  - insert: {id: right, block: FLOOR, position: {x: 100, y: 0}}
blocks:
  - name: ROOM
    entities:
      - line: {from: {x: 0, y: 0}, to: {x: 10, y: 0}}
  - name: FLOOR
    entities:
      - insert:
          id: room
          block: ROOM
          position: {x: 1, y: 2}
          clip:
            points: [{x: 0, y: 0}, {x: 4, y: 0}, {x: 4, y: 4}]
`

func TestCLI_IsolateVerifiesSharedDefinition(t *testing.T) {
	env := newCLIEnv(t)
	shared := filepath.Join(t.TempDir(), "shared.yaml")
	require.NoError(t, os.WriteFile(shared, []byte(sharedDocument), 0o644))
	env.mustRun("import", shared, "--name", "shared")

	out := env.mustRun("isolate", "shared", "--verify")
	assert.Equal(t, 2, strings.Count(out, "PROMOTED room"))
	assert.Equal(t, 2, strings.Count(out, ": ok"))
	assert.NotContains(t, out, "ожидалось")

	// Повторный запуск не плодит копии
	out = env.mustRun("isolate", "shared", "--verify")
	assert.Equal(t, 2, strings.Count(out, "REUSED room"))
	assert.NotContains(t, out, "PROMOTED")
}
