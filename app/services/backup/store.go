package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Maizu/RLAccountMigrator/app/services/savemanager"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
)

// Store moves save generations in and out of the shared backup slot. All slot
// mutations are serialised through one mutex.
type Store struct {
	mu           sync.Mutex
	snapshotDir  string
	snapshotKeep int
}

func NewStore(snapshotDir string, snapshotKeep int) *Store {
	return &Store{
		snapshotDir:  snapshotDir,
		snapshotKeep: snapshotKeep,
	}
}

// Files returns the names of the regular files currently held in the slot.
func (s *Store) Files(slot string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slotFiles(slot)
}

// IsEmpty reports whether the slot holds no save files. Other files, such as
// desktop.ini, are not backup data.
func (s *Store) IsEmpty(slot string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := slotSaveFiles(slot)
	if err != nil {
		return false, err
	}
	return len(files) == 0, nil
}

// Capture copies every member of gen into an empty slot.
func (s *Store) Capture(slot string, gen *savemanager.Generation) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := slotSaveFiles(slot)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, &types.ConflictError{Slot: slot, Reason: "backup folder is not empty, clear it before creating a new backup"}
	}

	return copyMembers(gen, slot)
}

// RestoreInto copies the slot files into saveDir renamed to targetBaseID.
// The slot is left untouched.
func (s *Store) RestoreInto(slot, saveDir, targetBaseID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !utils.IsDir(saveDir) {
		return nil, &types.NotFoundError{What: "save directory", Path: saveDir}
	}

	files, err := nonEmptySlot(slot)
	if err != nil {
		return nil, err
	}

	return copySlotAs(slot, files, saveDir, targetBaseID)
}

// ReplaceAndCapture deletes the baseID generation in saveDir and puts the
// slot files in its place under the same base id. The slot is the source and
// keeps its contents.
func (s *Store) ReplaceAndCapture(slot, saveDir, baseID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !utils.IsDir(saveDir) {
		return nil, &types.NotFoundError{What: "save directory", Path: saveDir}
	}

	files, err := nonEmptySlot(slot)
	if err != nil {
		return nil, err
	}

	current, err := membersOf(saveDir, baseID)
	if err != nil {
		return nil, err
	}

	if _, err := s.snapshot("replace_"+baseID, current); err != nil {
		return nil, fmt.Errorf("snapshot before replace: %w", err)
	}

	for _, path := range current {
		utils.DebugLogger.Printf("Removing %s\r\n", path)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return copySlotAs(slot, files, saveDir, baseID)
}

// CaptureAndReplaceSlot empties the slot and fills it with the baseID
// generation from saveDir.
func (s *Store) CaptureAndReplaceSlot(slot, saveDir, baseID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gens, err := savemanager.ListGenerations(saveDir)
	if err != nil {
		return nil, err
	}

	var gen *savemanager.Generation
	for i := range gens {
		if gens[i].BaseID == baseID {
			gen = &gens[i]
			break
		}
	}
	if gen == nil {
		return nil, &types.NotFoundError{What: "save generation " + baseID, Path: saveDir}
	}

	if err := s.clear(slot); err != nil {
		return nil, err
	}

	return copyMembers(gen, slot)
}

// Clear removes every file from the slot, snapshotting them first.
func (s *Store) Clear(slot string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := slotFiles(slot)
	if err != nil {
		return nil, err
	}
	return files, s.clear(slot)
}

func (s *Store) clear(slot string) error {
	files, err := slotFiles(slot)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, filepath.Join(slot, f))
	}

	if _, err := s.snapshot("slot", paths); err != nil {
		return fmt.Errorf("snapshot before clearing slot: %w", err)
	}

	for _, path := range paths {
		utils.DebugLogger.Printf("Removing %s\r\n", path)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func slotFiles(slot string) ([]string, error) {
	if slot == "" {
		return nil, &types.ConfigurationError{Field: "backup_path", Reason: "backup folder is not set"}
	}

	entries, err := os.ReadDir(slot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// slotSaveFiles is slotFiles without the names that are not save files.
func slotSaveFiles(slot string) ([]string, error) {
	files, err := slotFiles(slot)
	if err != nil {
		return nil, err
	}

	saves := make([]string, 0, len(files))
	for _, name := range files {
		if _, _, ok := savemanager.ParseSaveName(name); ok {
			saves = append(saves, name)
		} else {
			utils.DebugLogger.Printf("Ignoring %s in backup folder, not a save file\r\n", name)
		}
	}
	return saves, nil
}

// nonEmptySlot returns the slot's save files, failing before anything is
// touched when there are none.
func nonEmptySlot(slot string) ([]string, error) {
	files, err := slotSaveFiles(slot)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &types.ConflictError{Slot: slot, Reason: "backup folder is empty, nothing to migrate"}
	}
	return files, nil
}

func membersOf(saveDir, baseID string) ([]string, error) {
	saveFiles, err := savemanager.GetSaveFiles(saveDir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0)
	for _, sf := range saveFiles {
		if sf.BaseID == baseID {
			paths = append(paths, sf.FilePath)
		}
	}
	return paths, nil
}

func copyMembers(gen *savemanager.Generation, slot string) ([]string, error) {
	if err := utils.CreateFolder(slot); err != nil {
		return nil, err
	}

	copied := make([]string, 0, len(gen.Members))
	for _, member := range gen.Members {
		dst := filepath.Join(slot, member.FileName)
		utils.DebugLogger.Printf("Copying %s -> %s\r\n", member.FilePath, dst)
		if err := utils.CopyFile(member.FilePath, dst); err != nil {
			return copied, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

func copySlotAs(slot string, files []string, saveDir, baseID string) ([]string, error) {
	copied := make([]string, 0, len(files))
	for _, name := range files {
		target, ok := savemanager.RenameForBase(name, baseID)
		if !ok {
			utils.WarnLogger.Printf("Skipping %s in backup folder, not a save file\r\n", name)
			continue
		}

		src := filepath.Join(slot, name)
		dst := filepath.Join(saveDir, target)
		utils.DebugLogger.Printf("Copying %s -> %s\r\n", src, dst)
		if err := utils.CopyFile(src, dst); err != nil {
			return copied, err
		}
		copied = append(copied, dst)
	}

	if len(copied) == 0 {
		return nil, &types.ConflictError{Slot: slot, Reason: "backup folder holds no save files"}
	}
	return copied, nil
}
