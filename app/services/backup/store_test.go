package backup

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/Maizu/RLAccountMigrator/app/services/savemanager"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func dirContents(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(data)
	}
	return out
}

func generation(t *testing.T, dir, baseID string) *savemanager.Generation {
	t.Helper()
	gens, err := savemanager.ListGenerations(dir)
	require.NoError(t, err)
	for i := range gens {
		if gens[i].BaseID == baseID {
			return &gens[i]
		}
	}
	t.Fatalf("generation %s not found in %s", baseID, dir)
	return nil
}

func TestStore_CaptureIntoEmptySlot(t *testing.T) {
	root := t.TempDir()
	saveDir := filepath.Join(root, "saves")
	slot := filepath.Join(root, "slot")
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeFile(t, saveDir, "a1b2.save", "main", mtime)
	writeFile(t, saveDir, "a1b2_1.save", "extra", mtime)

	store := NewStore("", 0)
	copied, err := store.Capture(slot, generation(t, saveDir, "a1b2"))
	require.NoError(t, err)
	assert.Len(t, copied, 2)

	assert.Equal(t, map[string]string{"a1b2.save": "main", "a1b2_1.save": "extra"}, dirContents(t, slot))

	info, err := os.Stat(filepath.Join(slot, "a1b2.save"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
}

func TestStore_CaptureConflictWritesNothing(t *testing.T) {
	root := t.TempDir()
	saveDir := filepath.Join(root, "saves")
	slot := filepath.Join(root, "slot")
	now := time.Now()
	writeFile(t, saveDir, "a1b2.save", "new", now)
	writeFile(t, slot, "ffff.save", "old backup", now)

	store := NewStore("", 0)
	_, err := store.Capture(slot, generation(t, saveDir, "a1b2"))

	var conflict *types.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, map[string]string{"ffff.save": "old backup"}, dirContents(t, slot))

	// clearing first makes the retry succeed
	_, err = store.Clear(slot)
	require.NoError(t, err)
	_, err = store.Capture(slot, generation(t, saveDir, "a1b2"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a1b2.save": "new"}, dirContents(t, slot))
}

func TestStore_IsEmpty(t *testing.T) {
	root := t.TempDir()
	slot := filepath.Join(root, "slot")
	store := NewStore("", 0)

	empty, err := store.IsEmpty(slot)
	require.NoError(t, err)
	assert.True(t, empty, "missing slot counts as empty")

	require.NoError(t, os.MkdirAll(filepath.Join(slot, "sub"), 0755))
	empty, err = store.IsEmpty(slot)
	require.NoError(t, err)
	assert.True(t, empty, "directories are not slot content")

	writeFile(t, slot, "desktop.ini", "x", time.Now())
	empty, err = store.IsEmpty(slot)
	require.NoError(t, err)
	assert.True(t, empty, "files that are not saves are not slot content")

	writeFile(t, slot, "a.save", "x", time.Now())
	empty, err = store.IsEmpty(slot)
	require.NoError(t, err)
	assert.False(t, empty)

	_, err = store.IsEmpty("")
	var cfgErr *types.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestStore_RestoreIntoRenamesAndKeepsSlot(t *testing.T) {
	root := t.TempDir()
	saveDir := filepath.Join(root, "saves")
	slot := filepath.Join(root, "slot")
	now := time.Now()
	writeFile(t, slot, "c3d4.save", "settings", now)
	writeFile(t, slot, "c3d4_1.save", "bindings", now)
	writeFile(t, slot, "notes.txt", "ignored", now)
	writeFile(t, saveDir, "beef.save", "fresh", now)

	store := NewStore("", 0)
	copied, err := store.RestoreInto(slot, saveDir, "beef")
	require.NoError(t, err)
	assert.Len(t, copied, 2)

	assert.Equal(t, map[string]string{"beef.save": "settings", "beef_1.save": "bindings"}, dirContents(t, saveDir))
	assert.Len(t, dirContents(t, slot), 3)
}

func TestStore_RestoreIntoEmptySlot(t *testing.T) {
	root := t.TempDir()
	saveDir := filepath.Join(root, "saves")
	require.NoError(t, os.MkdirAll(saveDir, 0755))

	store := NewStore("", 0)
	_, err := store.RestoreInto(filepath.Join(root, "slot"), saveDir, "beef")
	var conflict *types.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestStore_RestoreIntoMissingSaveDir(t *testing.T) {
	root := t.TempDir()
	slot := filepath.Join(root, "slot")
	writeFile(t, slot, "c3d4.save", "settings", time.Now())

	store := NewStore("", 0)
	_, err := store.RestoreInto(slot, filepath.Join(root, "missing"), "beef")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStore_ReplaceAndCapture(t *testing.T) {
	root := t.TempDir()
	saveDir := filepath.Join(root, "saves")
	slot := filepath.Join(root, "slot")
	now := time.Now()
	writeFile(t, slot, "c3d4.save", "old account", now)
	writeFile(t, saveDir, "abc123.save", "fresh", now)
	writeFile(t, saveDir, "abc123_1.save", "fresh1", now)
	writeFile(t, saveDir, "abc123_2.save", "fresh2", now)
	writeFile(t, saveDir, "dead.save", "other", now)

	store := NewStore(filepath.Join(root, "snapshots"), 5)
	copied, err := store.ReplaceAndCapture(slot, saveDir, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(saveDir, "abc123.save")}, copied)

	assert.Equal(t, map[string]string{"abc123.save": "old account", "dead.save": "other"}, dirContents(t, saveDir))
	assert.Equal(t, map[string]string{"c3d4.save": "old account"}, dirContents(t, slot))

	snapshots, err := ListSnapshots(filepath.Join(root, "snapshots"))
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	restored := filepath.Join(root, "restored")
	files, err := ExtractSnapshot(snapshots[0].Path, restored)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Equal(t, map[string]string{"abc123.save": "fresh", "abc123_1.save": "fresh1", "abc123_2.save": "fresh2"}, dirContents(t, restored))
}

func TestStore_ReplaceAndCaptureWithoutSavesTouchesNothing(t *testing.T) {
	root := t.TempDir()
	saveDir := filepath.Join(root, "saves")
	slot := filepath.Join(root, "slot")
	snapDir := filepath.Join(root, "snapshots")
	now := time.Now()
	writeFile(t, slot, "desktop.ini", "[.ShellClassInfo]", now)
	writeFile(t, saveDir, "c3d4.save", "fresh", now)
	writeFile(t, saveDir, "c3d4_1.save", "fresh1", now)

	for _, store := range []*Store{NewStore("", 0), NewStore(snapDir, 5)} {
		_, err := store.ReplaceAndCapture(slot, saveDir, "c3d4")

		var conflict *types.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, map[string]string{"c3d4.save": "fresh", "c3d4_1.save": "fresh1"}, dirContents(t, saveDir))
	}

	snapshots, err := ListSnapshots(snapDir)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func TestStore_CaptureIgnoresOtherFilesInSlot(t *testing.T) {
	root := t.TempDir()
	saveDir := filepath.Join(root, "saves")
	slot := filepath.Join(root, "slot")
	now := time.Now()
	writeFile(t, slot, ".DS_Store", "x", now)
	writeFile(t, saveDir, "a1b2.save", "main", now)

	_, err := NewStore("", 0).Capture(slot, generation(t, saveDir, "a1b2"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{".DS_Store": "x", "a1b2.save": "main"}, dirContents(t, slot))
}

func TestStore_FailedSnapshotLeavesNoArchive(t *testing.T) {
	root := t.TempDir()
	snapDir := filepath.Join(root, "snapshots")
	store := NewStore(snapDir, 5)

	_, err := store.snapshot("broken", []string{filepath.Join(root, "gone.save")})
	require.Error(t, err)

	entries, err := os.ReadDir(snapDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_CaptureThenReplaceRoundTrip(t *testing.T) {
	root := t.TempDir()
	saveDir := filepath.Join(root, "saves")
	slot := filepath.Join(root, "slot")
	now := time.Now().Truncate(time.Second)
	original := map[string]string{"abc123.save": "\x00\x01binary", "abc123_1.save": "\xff\xfe more"}
	for name, content := range original {
		writeFile(t, saveDir, name, content, now)
	}

	store := NewStore("", 0)
	_, err := store.Capture(slot, generation(t, saveDir, "abc123"))
	require.NoError(t, err)

	// the game overwrites the live files afterwards
	writeFile(t, saveDir, "abc123.save", "clobbered", now.Add(time.Minute))
	writeFile(t, saveDir, "abc123_7.save", "new index", now.Add(time.Minute))

	_, err = store.ReplaceAndCapture(slot, saveDir, "abc123")
	require.NoError(t, err)
	assert.Equal(t, original, dirContents(t, saveDir))
}

func TestStore_CaptureAndReplaceSlot(t *testing.T) {
	root := t.TempDir()
	saveDir := filepath.Join(root, "saves")
	slot := filepath.Join(root, "slot")
	now := time.Now()
	writeFile(t, slot, "0001.save", "stale backup", now)
	writeFile(t, saveDir, "c3d4.save", "new", now)
	writeFile(t, saveDir, "c3d4_1.save", "new1", now)
	writeFile(t, saveDir, "a1b2.save", "other", now)

	store := NewStore(filepath.Join(root, "snapshots"), 5)
	copied, err := store.CaptureAndReplaceSlot(slot, saveDir, "c3d4")
	require.NoError(t, err)

	names := make([]string, 0)
	for _, c := range copied {
		names = append(names, filepath.Base(c))
	}
	sort.Strings(names)
	assert.Equal(t, []string{"c3d4.save", "c3d4_1.save"}, names)
	assert.Equal(t, map[string]string{"c3d4.save": "new", "c3d4_1.save": "new1"}, dirContents(t, slot))

	_, err = store.CaptureAndReplaceSlot(slot, saveDir, "9999")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStore_SnapshotRetention(t *testing.T) {
	root := t.TempDir()
	slot := filepath.Join(root, "slot")
	snapDir := filepath.Join(root, "snapshots")
	store := NewStore(snapDir, 2)

	for i := 0; i < 4; i++ {
		writeFile(t, slot, "a1.save", "x", time.Now())
		_, err := store.Clear(slot)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	snapshots, err := ListSnapshots(snapDir)
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)
	assert.True(t, snapshots[0].Name > snapshots[1].Name)
}
