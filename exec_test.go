package facenorm

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, imaging.Save(testImage(w, h), path))
}

func TestExec_Directory(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "out")
	writeTestImage(t, filepath.Join(src, "a.png"), 200, 200)
	writeTestImage(t, filepath.Join(src, "b.jpg"), 200, 200)
	writeTestImage(t, filepath.Join(src, "small.png"), 30, 30)
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("skip"), 0o644))

	f := newFixture(squareFace)
	f.proc.Mode = ModeSquare
	f.proc.Square = SquareOptions{Size: 100}

	err := f.proc.Execute(context.Background(), &Ops{Src: src, Dst: dst, PipeName: "-", Workers: 2, Report: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageTooSmall)
	assert.ErrorContains(t, err, "small.png")

	for _, name := range []string{"a.png", "b.jpg"} {
		img, err := imaging.Open(filepath.Join(dst, name))
		require.NoError(t, err, name)
		assert.Equal(t, 100, img.Bounds().Dx(), name)

		data, err := os.ReadFile(filepath.Join(dst, name+".json"))
		require.NoError(t, err, name)

		var rep map[string]any
		require.NoError(t, json.Unmarshal(data, &rep))
		assert.Equal(t, string(ModeSquare), rep["mode"])
		assert.Equal(t, filepath.Join(src, name), rep["source"])
		assert.Contains(t, rep, "box")
	}

	// The failed image leaves no output behind.
	assert.NoFileExists(t, filepath.Join(dst, "small.png"))
	assert.NoFileExists(t, filepath.Join(dst, "notes.txt"))
	assert.EqualValues(t, 2, f.reg.calls.Load())
}

func TestExec_SingleFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "face.png")
	writeTestImage(t, in, 200, 200)

	f := newFixture(squareFace)
	f.proc.Mode = ModeDetect

	out := filepath.Join(dir, "detected.png")
	require.NoError(t, f.proc.Execute(context.Background(), &Ops{Src: in, Dst: out, PipeName: "-"}))
	assert.FileExists(t, out)
	assert.NoFileExists(t, out+".json")

	err := f.proc.Execute(context.Background(), &Ops{Src: in, Dst: filepath.Join(dir, "face.xyz"), PipeName: "-"})
	assert.ErrorContains(t, err, "file type not supported")

	err = f.proc.Execute(context.Background(), &Ops{Src: filepath.Join(dir, "missing.png"), Dst: out, PipeName: "-"})
	assert.ErrorContains(t, err, "failed to load the source image")
}

func TestExec_FailedImageIsRemoved(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "face.png")
	writeTestImage(t, in, 200, 200)

	f := newFixture(squareFace)
	f.det.faces = nil

	out := filepath.Join(dir, "norm.png")
	err := f.proc.Execute(context.Background(), &Ops{Src: in, Dst: out, PipeName: "-"})
	assertStage(t, err, StageDetect, ErrFaceCount)
	assert.NoFileExists(t, out)
}

func TestExec_NestedDirectories(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "b", "c"), 0o755))
	writeTestImage(t, filepath.Join(src, "a", "x.png"), 200, 200)
	writeTestImage(t, filepath.Join(src, "b", "c", "x.png"), 200, 200)

	f := newFixture(squareFace)
	f.proc.Mode = ModeSquare
	f.proc.Square = SquareOptions{Size: 100}

	require.NoError(t, f.proc.Execute(context.Background(), &Ops{Src: src, Dst: dst, PipeName: "-", Workers: 2, Report: true}))

	// Files sharing a name in different directories keep separate outputs.
	for _, rel := range []string{"a/x.png", "b/c/x.png"} {
		out := filepath.Join(dst, filepath.FromSlash(rel))
		assert.FileExists(t, out)

		data, err := os.ReadFile(out + ".json")
		require.NoError(t, err, rel)
		var rep map[string]any
		require.NoError(t, json.Unmarshal(data, &rep))
		assert.Equal(t, filepath.Join(src, filepath.FromSlash(rel)), rep["source"])
	}
	assert.NoFileExists(t, filepath.Join(dst, "x.png"))
}

func TestExec_OutputPath(t *testing.T) {
	root, dst := t.TempDir(), filepath.Join(t.TempDir(), "out")

	out, err := outputPath(root, dst, filepath.Join(root, "nested", "face.png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "nested", "face.png"), out)
	assert.DirExists(t, filepath.Join(dst, "nested"))
}

func TestExec_WalkDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"a.PNG", "nested/b.jpeg", "c.txt", "nested/d"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	paths, errc := walkDir(context.Background(), dir, validExtensions)
	var got []string
	for p := range paths {
		rel, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		got = append(got, filepath.ToSlash(rel))
	}
	require.NoError(t, <-errc)

	slices.Sort(got)
	assert.Equal(t, []string{"a.PNG", "nested/b.jpeg"}, got)
}
