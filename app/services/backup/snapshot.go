package backup

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Maizu/RLAccountMigrator/app/utils"
	"github.com/klauspost/compress/zstd"
)

const SnapshotExtension = ".tar.zst"

type Snapshot struct {
	Name    string    `json:"name" yaml:"name"`
	Path    string    `json:"path" yaml:"path"`
	Size    int64     `json:"size" yaml:"size"`
	Created time.Time `json:"created" yaml:"created"`
}

// snapshot archives files before they are deleted. It is a no-op when no
// snapshot directory is configured or there is nothing to archive.
func (s *Store) snapshot(label string, files []string) (string, error) {
	if s.snapshotDir == "" || len(files) == 0 {
		return "", nil
	}

	if err := utils.CreateFolder(s.snapshotDir); err != nil {
		return "", err
	}

	name := time.Now().Format("20060102_150405.000000") + "_" + label + SnapshotExtension
	archivePath := filepath.Join(s.snapshotDir, name)

	utils.InfoLogger.Printf("Creating snapshot %s\r\n", name)

	archive, err := os.Create(archivePath)
	if err != nil {
		return "", err
	}
	defer archive.Close()

	// a partial archive must not be left behind for ListSnapshots to pick up
	discard := func(err error) (string, error) {
		archive.Close()
		if rmErr := os.Remove(archivePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			utils.WarnLogger.Printf("Couldn't remove partial snapshot %s: %s\r\n", archivePath, rmErr.Error())
		}
		return "", err
	}

	zw, err := zstd.NewWriter(archive)
	if err != nil {
		return discard(err)
	}
	tw := tar.NewWriter(zw)

	for _, file := range files {
		if err := addFileToArchive(tw, file, filepath.Base(file)); err != nil {
			tw.Close()
			zw.Close()
			return discard(err)
		}
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return discard(err)
	}
	if err := zw.Close(); err != nil {
		return discard(err)
	}

	s.pruneSnapshots()

	return archivePath, nil
}

func addFileToArchive(tw *tar.Writer, filePath string, destPath string) error {
	if !utils.CheckFileExists(filePath) {
		return nil
	}

	utils.DebugLogger.Printf("Adding File: %s\r\n", filePath)
	f1, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f1.Close()

	info, err := f1.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = destPath
	header.Format = tar.FormatPAX

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.Copy(tw, f1); err != nil {
		return err
	}

	return nil
}

func (s *Store) pruneSnapshots() {
	if s.snapshotKeep <= 0 {
		return
	}

	snapshots, err := ListSnapshots(s.snapshotDir)
	if err != nil {
		utils.WarnLogger.Printf("Couldn't list snapshots for pruning: %s\r\n", err.Error())
		return
	}

	for i := s.snapshotKeep; i < len(snapshots); i++ {
		utils.DebugLogger.Printf("Pruning snapshot %s\r\n", snapshots[i].Name)
		if err := os.Remove(snapshots[i].Path); err != nil {
			utils.WarnLogger.Printf("Couldn't remove snapshot %s: %s\r\n", snapshots[i].Name, err.Error())
		}
	}
}

// ListSnapshots returns the snapshots in dir, newest first.
func ListSnapshots(dir string) ([]Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Snapshot{}, nil
		}
		return nil, err
	}

	snapshots := make([]Snapshot, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), SnapshotExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			Created: info.ModTime(),
		})
	}

	// names start with a sortable timestamp
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name > snapshots[j].Name
	})
	return snapshots, nil
}

// ExtractSnapshot unpacks a snapshot archive into destDir, restoring file
// modification times.
func ExtractSnapshot(archivePath, destDir string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	if err := utils.CreateFolder(destDir); err != nil {
		return nil, err
	}

	tr := tar.NewReader(zr)
	extracted := make([]string, 0)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return extracted, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(filepath.Clean(header.Name))
		if name == "." || name == ".." || name == string(filepath.Separator) {
			return extracted, fmt.Errorf("invalid entry name %q in %s", header.Name, archivePath)
		}

		target := filepath.Join(destDir, name)
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return extracted, err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return extracted, err
		}
		if err := out.Close(); err != nil {
			return extracted, err
		}
		if err := os.Chtimes(target, header.ModTime, header.ModTime); err != nil {
			return extracted, err
		}
		extracted = append(extracted, target)
	}

	return extracted, nil
}
