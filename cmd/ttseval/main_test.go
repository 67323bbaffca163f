package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ttseval/internal/items"
	"ttseval/internal/storage"
	"ttseval/internal/workbook"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	require.NoError(t, root.ExecuteContext(context.Background()))
	return out.String()
}

func TestMigrateGenerateCompile(t *testing.T) {
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("TTS_POLL_INTERVAL", "10ms")

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "texts.csv")
	wbPath := filepath.Join(dir, "eval", "results.xlsx")
	audioDir := filepath.Join(dir, "audio")
	annDir := filepath.Join(dir, "annotations")
	outPath := filepath.Join(dir, "eval", "compiled.xlsx")

	require.NoError(t, os.WriteFile(csvPath, []byte("ID,Sentence,Category\n1,আমি ভাত খাই।,plain\n2,দাম ২৫০ টাকা।,numbers\n"), 0o644))

	out := runCLI(t, "migrate", "--csv", csvPath, "--workbook", wbPath)
	require.Contains(t, out, "[Male Female]")

	wb, err := workbook.Open(wbPath)
	require.NoError(t, err)
	require.Equal(t, []string{"Male", "Female"}, wb.SheetNames())

	out = runCLI(t, "generate", "--dry-run", "--workbook", wbPath, "--audio-dir", audioDir, "--interval", "1ms", "--timeout", "5s")
	require.Contains(t, out, "requests 4, results 4")

	info, err := storage.NewAudioDir(audioDir).Inspect("Female", "T-0002")
	require.NoError(t, err)
	require.True(t, info.Present)
	require.Greater(t, info.Duration, 0.0)

	store := storage.NewFileStore(annDir)
	require.NoError(t, store.Put(context.Background(), "Male", "T-0001", items.Annotation{
		"Naturalness": "4",
		"Notes":       "slightly fast",
	}))

	out = runCLI(t, "compile", "--workbook", wbPath, "--annotations", annDir, "--output", outPath)
	require.Contains(t, out, "1 rows updated")

	compiled, err := workbook.Open(outPath)
	require.NoError(t, err)
	male, err := compiled.Sheet("Male")
	require.NoError(t, err)
	require.Equal(t, "4", male.Value(0, "Naturalness: Does it sound robotic or human?"))
	require.Equal(t, "slightly fast", male.Value(0, "Notes"))
	require.Equal(t, "", male.Value(1, "Notes"))

	female, err := compiled.Sheet("Female")
	require.NoError(t, err)
	require.Equal(t, "", female.Value(0, "Notes"))
}

func TestCompileRejectsUnknownPolicy(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"compile", "--missing-columns", "guess", "--workbook", filepath.Join(t.TempDir(), "none.xlsx")})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	require.ErrorContains(t, root.ExecuteContext(context.Background()), "unknown missing-column policy")
}
