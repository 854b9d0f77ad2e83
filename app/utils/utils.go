package utils

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

var (
	DebugLogger = log.New(io.Discard, "[ DEBUG ] ", log.Ldate|log.Ltime)
	InfoLogger  = log.New(os.Stdout, "[ INFO ] ", log.Ldate|log.Ltime)
	WarnLogger  = log.New(os.Stdout, "[ WARN ] ", log.Ldate|log.Ltime)
	ErrorLogger = log.New(os.Stderr, "[ ERROR ] ", log.Ldate|log.Ltime)
)

const (
	CombinedLogName = "RLMigrator-combined.log"
	ErrorLogName    = "RLMigrator-error.log"
)

func CheckError(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func CreateFolder(folderPath string) error {
	if _, err := os.Stat(folderPath); errors.Is(err, os.ErrNotExist) {
		err := os.MkdirAll(folderPath, os.ModePerm)
		if err != nil {
			return err
		}
	}
	return nil
}

func CheckFileExists(filepath string) bool {
	_, err := os.Stat(filepath)
	return !os.IsNotExist(err)
}

func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SetupLoggers points the package loggers at the combined and error log files
// inside logDir. With console unset only errors reach the terminal; debug
// output only reaches the terminal when verbose is also set.
func SetupLoggers(logDir string, verbose bool, console bool) (io.Closer, error) {
	if err := CreateFolder(logDir); err != nil {
		return nil, err
	}

	logFile := filepath.Join(logDir, CombinedLogName)
	errorlogFile := filepath.Join(logDir, ErrorLogName)

	f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	errorf, err := os.OpenFile(errorlogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	var wrt io.Writer = f
	if console {
		wrt = io.MultiWriter(os.Stdout, f)
	}
	errorwrt := io.MultiWriter(os.Stderr, f, errorf)

	var debugwrt io.Writer = f
	if verbose {
		debugwrt = wrt
	}

	log.SetOutput(wrt)

	DebugLogger = log.New(debugwrt, "[ DEBUG ] ", log.Ldate|log.Ltime)
	InfoLogger = log.New(wrt, "[ INFO ] ", log.Ldate|log.Ltime)
	WarnLogger = log.New(wrt, "[ WARN ] ", log.Ldate|log.Ltime)
	ErrorLogger = log.New(errorwrt, "[ ERROR ] ", log.Ldate|log.Ltime)

	DebugLogger.Printf("Log File Location: %s", logFile)

	return multiCloser{f, errorf}, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CopyFile copies src to dst, carries the source modification time over and
// verifies the written bytes against the source digest.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := CreateFolder(filepath.Dir(dst)); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	srcHash := xxh3.New()
	if _, err := io.Copy(io.MultiWriter(out, srcHash), in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	dstSum, err := HashFile(dst)
	if err != nil {
		return err
	}
	if dstSum != srcHash.Sum64() {
		return fmt.Errorf("copy of %s to %s failed verification", src, dst)
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// HashFile returns the xxh3 digest of the file contents.
func HashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// SameDay reports whether a and b fall on the same local calendar date.
func SameDay(a, b time.Time) bool {
	a = a.Local()
	b = b.Local()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func SamePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		absA, absB = filepath.Clean(a), filepath.Clean(b)
	}
	if runtime.GOOS == "windows" {
		return strings.EqualFold(absA, absB)
	}
	return absA == absB
}
