package savemanager

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
)

// Save files are named <baseId>[_<n>].save with a lowercase hex base id.
var saveFileRegex = regexp.MustCompile(`^([a-f0-9]+)(_\d+)?\.save$`)

const SaveExtension = ".save"

type SaveFile struct {
	FilePath string    `json:"filePath" yaml:"filePath"`
	FileName string    `json:"fileName" yaml:"fileName"`
	BaseID   string    `json:"baseId" yaml:"baseId"`
	Suffix   string    `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	ModTime  time.Time `json:"modTime" yaml:"modTime"`
	Size     int64     `json:"size" yaml:"size"`
}

// Generation is every save file in a directory sharing one base id.
type Generation struct {
	BaseID  string     `json:"baseId" yaml:"baseId"`
	Members []SaveFile `json:"members" yaml:"members"`
	ModTime time.Time  `json:"modTime" yaml:"modTime"`
}

func (g *Generation) Paths() []string {
	paths := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		paths = append(paths, m.FilePath)
	}
	return paths
}

func (g *Generation) FileNames() []string {
	names := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		names = append(names, m.FileName)
	}
	return names
}

// ParseSaveName splits a save file name into its base id and index suffix.
func ParseSaveName(name string) (baseID string, suffix string, ok bool) {
	m := saveFileRegex.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// RenameForBase returns name rewritten so its base id becomes baseID.
func RenameForBase(name string, baseID string) (string, bool) {
	_, suffix, ok := ParseSaveName(name)
	if !ok {
		return "", false
	}
	return baseID + suffix + SaveExtension, true
}

// GetSaveFiles lists the save files directly inside dir. Non-matching names
// and subdirectories are skipped.
func GetSaveFiles(dir string) ([]SaveFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &types.NotFoundError{What: "save directory", Path: dir}
		}
		return nil, err
	}

	saveFiles := make([]SaveFile, 0)

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		baseID, suffix, ok := ParseSaveName(file.Name())
		if !ok {
			continue
		}

		fileInfo, err := file.Info()
		if err != nil {
			utils.DebugLogger.Printf("Skipping %s: %s\r\n", file.Name(), err.Error())
			continue
		}

		saveFiles = append(saveFiles, SaveFile{
			FilePath: filepath.Join(dir, file.Name()),
			FileName: file.Name(),
			BaseID:   baseID,
			Suffix:   suffix,
			ModTime:  fileInfo.ModTime(),
			Size:     fileInfo.Size(),
		})
	}

	return saveFiles, nil
}

// ListGenerations groups the save files in dir by base id. Generations are
// ordered newest first; equal times fall back to base id order.
func ListGenerations(dir string) ([]Generation, error) {
	saveFiles, err := GetSaveFiles(dir)
	if err != nil {
		return nil, err
	}
	return groupGenerations(saveFiles), nil
}

func groupGenerations(saveFiles []SaveFile) []Generation {
	byBase := make(map[string]*Generation)
	order := make([]string, 0)

	for _, sf := range saveFiles {
		gen, ok := byBase[sf.BaseID]
		if !ok {
			gen = &Generation{BaseID: sf.BaseID}
			byBase[sf.BaseID] = gen
			order = append(order, sf.BaseID)
		}
		gen.Members = append(gen.Members, sf)
		if sf.ModTime.After(gen.ModTime) {
			gen.ModTime = sf.ModTime
		}
	}

	generations := make([]Generation, 0, len(order))
	for _, baseID := range order {
		gen := byBase[baseID]
		sort.SliceStable(gen.Members, func(i, j int) bool {
			if gen.Members[i].ModTime.Equal(gen.Members[j].ModTime) {
				return gen.Members[i].FileName < gen.Members[j].FileName
			}
			return gen.Members[i].ModTime.After(gen.Members[j].ModTime)
		})
		generations = append(generations, *gen)
	}

	sort.SliceStable(generations, func(i, j int) bool {
		if generations[i].ModTime.Equal(generations[j].ModTime) {
			return generations[i].BaseID < generations[j].BaseID
		}
		return generations[i].ModTime.After(generations[j].ModTime)
	})

	return generations
}

// LatestGeneration returns the generation whose newest member is the most
// recent. With since set, only members modified on that calendar date count.
// A missing directory or no qualifying generation returns nil.
func LatestGeneration(dir string, since *time.Time) (*Generation, error) {
	saveFiles, err := GetSaveFiles(dir)
	if err != nil {
		var notFound *types.NotFoundError
		if errors.As(err, &notFound) {
			utils.DebugLogger.Printf("Save directory %s does not exist\r\n", dir)
			return nil, nil
		}
		return nil, err
	}

	if since != nil {
		filtered := saveFiles[:0]
		for _, sf := range saveFiles {
			if utils.SameDay(sf.ModTime, *since) {
				filtered = append(filtered, sf)
			}
		}
		saveFiles = filtered
	}

	generations := groupGenerations(saveFiles)
	if len(generations) == 0 {
		return nil, nil
	}

	latest := generations[0]
	return &latest, nil
}

// BaseIDs returns the set of base ids currently present in dir.
func BaseIDs(dir string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	saveFiles, err := GetSaveFiles(dir)
	if err != nil {
		var notFound *types.NotFoundError
		if errors.As(err, &notFound) {
			return ids, nil
		}
		return nil, err
	}

	for _, sf := range saveFiles {
		ids[sf.BaseID] = struct{}{}
	}
	return ids, nil
}

// HasSaveFiles reports whether dir holds at least one .save file.
func HasSaveFiles(dir string) bool {
	files, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == SaveExtension {
			return true
		}
	}
	return false
}
