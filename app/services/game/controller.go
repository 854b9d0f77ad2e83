package game

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Maizu/RLAccountMigrator/app/services/savemanager"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
	"github.com/fsnotify/fsnotify"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultWaitTimeout  = 60 * time.Second
	DefaultGracePeriod  = 10 * time.Second

	exitPollInterval = 100 * time.Millisecond
)

type WaitKind int

const (
	// None means the save directory held no generation at all.
	None WaitKind = iota
	// Fresh is a generation that did not exist at launch and was written today.
	Fresh
	// StaleFallback is the newest generation on disk, returned only after the
	// wait window ran out without a fresh one.
	StaleFallback
)

func (k WaitKind) String() string {
	switch k {
	case Fresh:
		return "fresh"
	case StaleFallback:
		return "stale"
	}
	return "none"
}

type WaitResult struct {
	Kind       WaitKind
	Generation *savemanager.Generation
}

// Controller launches the game, watches its save directory and shuts it down
// again.
type Controller struct {
	launcher     Launcher
	finder       ProcessFinder
	processName  string
	pollInterval time.Duration
}

func NewController(launcher Launcher, finder ProcessFinder, processName string, pollInterval time.Duration) *Controller {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Controller{
		launcher:     launcher,
		finder:       finder,
		processName:  processName,
		pollInterval: pollInterval,
	}
}

func (c *Controller) Launch(path string) (*Handle, error) {
	if path == "" {
		return nil, &types.NotFoundError{What: "game executable"}
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, &types.NotFoundError{What: "game executable", Path: path}
	}

	utils.InfoLogger.Printf("Launching %s\r\n", path)

	handle, err := c.launcher.Launch(path)
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", path, err)
	}

	utils.InfoLogger.Printf("Started process with pid: %d\r\n", handle.Pid)
	return handle, nil
}

// WaitForNewGeneration polls saveDir until a generation shows up whose base id
// is not in previous and whose newest member was written on today's date.
// Once timeout has fully elapsed it falls back to whatever generation is newest
// on disk. Filesystem events only trigger an earlier scan.
func (c *Controller) WaitForNewGeneration(ctx context.Context, saveDir string, previous map[string]struct{}, timeout time.Duration, today time.Time) (WaitResult, error) {
	utils.InfoLogger.Printf("Waiting up to %s for a new save in %s\r\n", timeout, saveDir)

	var events <-chan fsnotify.Event
	var watchErrors <-chan error

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		utils.DebugLogger.Printf("Couldn't create save directory watcher: %s\r\n", err.Error())
	} else {
		defer watcher.Close()
		if err := watcher.Add(saveDir); err != nil {
			utils.DebugLogger.Printf("Couldn't watch %s, polling only: %s\r\n", saveDir, err.Error())
		} else {
			events = watcher.Events
			watchErrors = watcher.Errors
		}
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if gen := findFresh(saveDir, previous, today); gen != nil {
			utils.InfoLogger.Printf("Found new save generation %s\r\n", gen.BaseID)
			return WaitResult{Kind: Fresh, Generation: gen}, nil
		}

		select {
		case <-ctx.Done():
			return WaitResult{Kind: None}, ctx.Err()
		case <-deadline.C:
			return fallback(saveDir)
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			utils.DebugLogger.Printf("Save directory event: %s\r\n", ev.String())
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			utils.DebugLogger.Printf("Save directory watcher error: %s\r\n", err.Error())
		}
	}
}

func findFresh(saveDir string, previous map[string]struct{}, today time.Time) *savemanager.Generation {
	gens, err := savemanager.ListGenerations(saveDir)
	if err != nil {
		var notFound *types.NotFoundError
		if !errors.As(err, &notFound) {
			utils.WarnLogger.Printf("Couldn't scan %s: %s\r\n", saveDir, err.Error())
		}
		return nil
	}

	// newest first, so the first match is the newest fresh generation
	for i := range gens {
		if _, seen := previous[gens[i].BaseID]; seen {
			continue
		}
		if !utils.SameDay(gens[i].ModTime, today) {
			continue
		}
		return &gens[i]
	}
	return nil
}

func fallback(saveDir string) (WaitResult, error) {
	gen, err := savemanager.LatestGeneration(saveDir, nil)
	if err != nil {
		return WaitResult{Kind: None}, err
	}
	if gen == nil {
		utils.WarnLogger.Printf("No save generation found in %s\r\n", saveDir)
		return WaitResult{Kind: None}, nil
	}

	utils.WarnLogger.Printf("Timed out waiting for a new save, newest on disk is %s\r\n", gen.BaseID)
	return WaitResult{Kind: StaleFallback, Generation: gen}, nil
}

// Terminate asks every process matching the game's process name to exit,
// waits up to grace and kills whatever is still running after that. A
// process that refuses the terminate request is killed straight away.
func (c *Controller) Terminate(handle *Handle, grace time.Duration) error {
	if handle != nil {
		utils.InfoLogger.Printf("Shutting down game process (launched pid %d)\r\n", handle.Pid)
	} else {
		utils.InfoLogger.Println("Shutting down game process")
	}

	procs, err := c.finder.Find(c.processName)
	if err != nil {
		return fmt.Errorf("find %s processes: %w", c.processName, err)
	}

	if len(procs) == 0 {
		utils.InfoLogger.Println("Shutdown skipped - game not running")
		return nil
	}

	var errs []error

	for _, p := range procs {
		utils.InfoLogger.Printf("Terminating pid %d\r\n", p.Pid())
		if err := p.Terminate(); err != nil {
			utils.WarnLogger.Printf("Terminate of pid %d failed, killing: %s\r\n", p.Pid(), err.Error())
			if err := p.Kill(); err != nil {
				errs = append(errs, fmt.Errorf("kill pid %d: %w", p.Pid(), err))
			}
		}
	}

	deadline := time.Now().Add(grace)
	remaining := running(procs)
	for len(remaining) > 0 && time.Now().Before(deadline) {
		time.Sleep(exitPollInterval)
		remaining = running(remaining)
	}

	for _, p := range remaining {
		utils.WarnLogger.Printf("Pid %d still running after %s, killing\r\n", p.Pid(), grace)
		if err := p.Kill(); err != nil {
			errs = append(errs, fmt.Errorf("kill pid %d: %w", p.Pid(), err))
		}
	}

	if len(errs) == 0 {
		utils.InfoLogger.Println("Game is now shutdown")
	}
	return errors.Join(errs...)
}

// Running reports whether any process matching the game's process name is
// alive.
func (c *Controller) Running() (bool, error) {
	procs, err := c.finder.Find(c.processName)
	if err != nil {
		return false, err
	}
	return len(running(procs)) > 0, nil
}

func running(procs []Proc) []Proc {
	alive := make([]Proc, 0, len(procs))
	for _, p := range procs {
		ok, err := p.IsRunning()
		if err != nil || !ok {
			continue
		}
		alive = append(alive, p)
	}
	return alive
}
