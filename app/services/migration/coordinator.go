package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Maizu/RLAccountMigrator/app/services/backup"
	"github.com/Maizu/RLAccountMigrator/app/services/game"
	"github.com/Maizu/RLAccountMigrator/app/services/history"
	"github.com/Maizu/RLAccountMigrator/app/services/savemanager"
	"github.com/Maizu/RLAccountMigrator/app/services/state"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
)

type Mode string

const (
	// CaptureBackup launches the game for a fresh generation and makes it the
	// new backup.
	CaptureBackup Mode = "capture_backup"
	// ReplaceExisting launches the game for a fresh generation and writes the
	// backup over it.
	ReplaceExisting Mode = "replace_existing"
	// PlainMigrate copies the backup over the newest existing generation
	// without launching anything.
	PlainMigrate Mode = "plain_migrate"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case CaptureBackup, ReplaceExisting, PlainMigrate:
		return Mode(s), nil
	}
	return "", &types.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown operation %q", s)}
}

type Request struct {
	Mode      Mode
	Account   types.Account
	Paths     types.AccountPaths
	BackupDir string
}

// Outcome is the result of one operation. Status is always one of the
// terminal states. Err carries the typed cause of a Failed or TimedOut
// outcome.
type Outcome struct {
	Mode    Mode          `json:"mode" yaml:"mode"`
	Account types.Account `json:"account" yaml:"account"`
	Status  state.State   `json:"status" yaml:"status"`
	Files   []string      `json:"files" yaml:"files"`
	Reason  string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	BaseID  string        `json:"baseId,omitempty" yaml:"baseId,omitempty"`
	Stale   bool          `json:"stale" yaml:"stale"`
	RunID   string        `json:"runId,omitempty" yaml:"runId,omitempty"`
	Err     error         `json:"-" yaml:"-"`
}

func (o Outcome) Succeeded() bool {
	return o.Status == state.Succeeded
}

// ProcessController is the part of game.Controller the coordinator drives.
type ProcessController interface {
	Launch(path string) (*game.Handle, error)
	WaitForNewGeneration(ctx context.Context, saveDir string, previous map[string]struct{}, timeout time.Duration, today time.Time) (game.WaitResult, error)
	Terminate(handle *game.Handle, grace time.Duration) error
}

type Recorder interface {
	Record(run *history.Run) error
}

type Options struct {
	WaitTimeout time.Duration
	GracePeriod time.Duration
	// AcceptStale lets an operation continue with the newest generation on
	// disk when the game never wrote a fresh one.
	AcceptStale bool
}

// Coordinator runs one migration operation at a time against the shared
// backup slot and the single game process.
type Coordinator struct {
	store    *backup.Store
	process  ProcessController
	recorder Recorder
	opts     Options
	machine  *state.Machine
	busy     sync.Mutex
	now      func() time.Time
}

func NewCoordinator(store *backup.Store, process ProcessController, opts Options) *Coordinator {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = game.DefaultWaitTimeout
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = game.DefaultGracePeriod
	}
	return &Coordinator{
		store:   store,
		process: process,
		opts:    opts,
		machine: state.NewMachine(),
		now:     time.Now,
	}
}

// SetRecorder makes the coordinator store every finished operation.
func (c *Coordinator) SetRecorder(r Recorder) {
	c.recorder = r
}

func (c *Coordinator) Observe(fn state.Observer) {
	c.machine.Observe(fn)
}

func (c *Coordinator) State() state.State {
	return c.machine.Current()
}

// Start runs req on its own goroutine and delivers the outcome on the
// returned channel.
func (c *Coordinator) Start(ctx context.Context, req Request) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		outcome, _ := c.Run(ctx, req)
		out <- outcome
	}()
	return out
}

func (c *Coordinator) CaptureBackup(ctx context.Context, account types.Account, paths types.AccountPaths, backupDir string) (Outcome, error) {
	return c.Run(ctx, Request{Mode: CaptureBackup, Account: account, Paths: paths, BackupDir: backupDir})
}

func (c *Coordinator) ReplaceExisting(ctx context.Context, account types.Account, paths types.AccountPaths, backupDir string) (Outcome, error) {
	return c.Run(ctx, Request{Mode: ReplaceExisting, Account: account, Paths: paths, BackupDir: backupDir})
}

func (c *Coordinator) PlainMigrate(ctx context.Context, account types.Account, paths types.AccountPaths, backupDir string) (Outcome, error) {
	return c.Run(ctx, Request{Mode: PlainMigrate, Account: account, Paths: paths, BackupDir: backupDir})
}

// Run executes req synchronously. Expected failures come back as a Failed or
// TimedOut outcome with a nil error. The error is only set for an
// UnexpectedError, which is also stored on the outcome.
func (c *Coordinator) Run(ctx context.Context, req Request) (Outcome, error) {
	if !c.busy.TryLock() {
		err := &types.ConflictError{Slot: req.BackupDir, Reason: "another migration is already running"}
		utils.WarnLogger.Printf("Rejected %s for %s: %s\r\n", req.Mode, req.Account, err.Error())
		return Outcome{Mode: req.Mode, Account: req.Account, Status: state.Failed, Reason: err.Error(), Err: err}, nil
	}
	defer c.busy.Unlock()

	if err := c.machine.Reset(); err != nil {
		return Outcome{}, &types.UnexpectedError{Op: string(req.Mode), Err: err}
	}

	started := c.now()
	utils.InfoLogger.Printf("Starting %s for %s account\r\n", req.Mode, req.Account.Title())

	var outcome Outcome
	switch req.Mode {
	case CaptureBackup:
		outcome = c.launchAndCopy(ctx, req, func(baseID string) ([]string, error) {
			return c.store.CaptureAndReplaceSlot(req.BackupDir, req.Paths.SaveDir, baseID)
		})
	case ReplaceExisting:
		outcome = c.launchAndCopy(ctx, req, func(baseID string) ([]string, error) {
			return c.store.ReplaceAndCapture(req.BackupDir, req.Paths.SaveDir, baseID)
		})
	case PlainMigrate:
		outcome = c.plainMigrate(req)
	default:
		outcome = c.fail(&types.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown operation %q", req.Mode)})
	}

	outcome.Mode = req.Mode
	outcome.Account = req.Account
	c.record(&outcome, started)

	if outcome.Succeeded() {
		utils.InfoLogger.Printf("%s for %s account succeeded (%d files)\r\n", req.Mode, req.Account.Title(), len(outcome.Files))
	} else {
		utils.ErrorLogger.Printf("%s for %s account %s: %s\r\n", req.Mode, req.Account.Title(), outcome.Status, outcome.Reason)
	}

	var unexpected *types.UnexpectedError
	if errors.As(outcome.Err, &unexpected) {
		return outcome, unexpected
	}
	return outcome, nil
}

// guard checks everything that can be known before a process is launched.
func (c *Coordinator) guard(req Request) error {
	title := req.Account.Title()

	if req.Paths.SaveDir == "" {
		return &types.ConfigurationError{Field: string(req.Account) + ".save_path", Reason: title + " save folder is not set"}
	}
	if req.BackupDir == "" {
		return &types.ConfigurationError{Field: "backup_path", Reason: "backup folder is not set"}
	}
	if utils.SamePath(req.Paths.SaveDir, req.BackupDir) {
		return &types.ConfigurationError{Field: "backup_path", Reason: "save folder and backup folder can't be the same folder"}
	}
	if !utils.IsDir(req.Paths.SaveDir) {
		return &types.NotFoundError{What: title + " save folder", Path: req.Paths.SaveDir}
	}

	if req.Mode != PlainMigrate {
		if req.Paths.ExecutablePath == "" {
			return &types.NotFoundError{What: title + " Rocket League executable"}
		}
		if !utils.CheckFileExists(req.Paths.ExecutablePath) || utils.IsDir(req.Paths.ExecutablePath) {
			return &types.NotFoundError{What: title + " Rocket League executable", Path: req.Paths.ExecutablePath}
		}
	}

	empty, err := c.store.IsEmpty(req.BackupDir)
	if err != nil {
		return &types.UnexpectedError{Op: "read backup folder", Err: err}
	}

	switch req.Mode {
	case CaptureBackup:
		if !empty {
			return &types.ConflictError{Slot: req.BackupDir, Reason: "backup folder is not empty, clear the backup first"}
		}
	case ReplaceExisting, PlainMigrate:
		if empty {
			return &types.ConflictError{Slot: req.BackupDir, Reason: "backup folder is empty, nothing to migrate"}
		}
	}
	return nil
}

func (c *Coordinator) launchAndCopy(ctx context.Context, req Request, copyFn func(baseID string) ([]string, error)) Outcome {
	if err := c.guard(req); err != nil {
		return c.fail(err)
	}

	previous, err := savemanager.BaseIDs(req.Paths.SaveDir)
	if err != nil {
		return c.fail(&types.UnexpectedError{Op: "scan save folder", Err: err})
	}
	today := c.now()

	c.transition(state.Launching)
	handle, err := c.process.Launch(req.Paths.ExecutablePath)
	if err != nil {
		var notFound *types.NotFoundError
		if !errors.As(err, &notFound) {
			err = &types.UnexpectedError{Op: "launch game", Err: err}
		}
		return c.fail(err)
	}

	// the game must be shut down exactly once whatever happens below
	terminated := false
	terminate := func() {
		if terminated {
			return
		}
		terminated = true
		if err := c.process.Terminate(handle, c.opts.GracePeriod); err != nil {
			utils.ErrorLogger.Printf("Error shutting down game: %s\r\n", err.Error())
		}
	}
	defer terminate()

	c.transition(state.WaitingForSave)
	result, waitErr := c.process.WaitForNewGeneration(ctx, req.Paths.SaveDir, previous, c.opts.WaitTimeout, today)

	c.transition(state.Terminating)
	terminate()

	if waitErr != nil {
		if errors.Is(waitErr, context.Canceled) || errors.Is(waitErr, context.DeadlineExceeded) {
			return c.finish(Outcome{Status: state.Failed, Reason: "operation cancelled", Err: waitErr})
		}
		return c.finish(Outcome{Status: state.Failed, Reason: waitErr.Error(), Err: &types.UnexpectedError{Op: "wait for save", Err: waitErr}})
	}

	timeoutErr := &types.ProcessTimeoutError{SaveDir: req.Paths.SaveDir, Timeout: c.opts.WaitTimeout}

	switch result.Kind {
	case game.None:
		return c.finish(Outcome{Status: state.Failed, Reason: "no save files were created in " + req.Paths.SaveDir, Err: timeoutErr})
	case game.StaleFallback:
		if !c.opts.AcceptStale {
			return c.finish(Outcome{
				Status: state.TimedOut,
				Reason: timeoutErr.Error(),
				BaseID: result.Generation.BaseID,
				Stale:  true,
				Err:    timeoutErr,
			})
		}
		utils.WarnLogger.Printf("Continuing with existing save %s\r\n", result.Generation.BaseID)
	}

	baseID := result.Generation.BaseID
	files, err := copyFn(baseID)
	if err != nil {
		var (
			conflict *types.ConflictError
			notFound *types.NotFoundError
			cfg      *types.ConfigurationError
		)
		if !errors.As(err, &conflict) && !errors.As(err, &notFound) && !errors.As(err, &cfg) {
			err = &types.UnexpectedError{Op: "copy save files", Err: err}
		}
		return c.finish(Outcome{Status: state.Failed, Reason: err.Error(), BaseID: baseID, Files: files, Err: err})
	}

	return c.finish(Outcome{
		Status: state.Succeeded,
		Files:  files,
		BaseID: baseID,
		Stale:  result.Kind == game.StaleFallback,
	})
}

func (c *Coordinator) plainMigrate(req Request) Outcome {
	if err := c.guard(req); err != nil {
		return c.fail(err)
	}

	gen, err := savemanager.LatestGeneration(req.Paths.SaveDir, nil)
	if err != nil {
		return c.fail(&types.UnexpectedError{Op: "scan save folder", Err: err})
	}
	if gen == nil {
		return c.fail(&types.NotFoundError{What: "save generation", Path: req.Paths.SaveDir})
	}

	files, err := c.store.RestoreInto(req.BackupDir, req.Paths.SaveDir, gen.BaseID)
	if err != nil {
		var (
			conflict *types.ConflictError
			notFound *types.NotFoundError
		)
		if !errors.As(err, &conflict) && !errors.As(err, &notFound) {
			err = &types.UnexpectedError{Op: "copy save files", Err: err}
		}
		return c.fail(err)
	}

	c.transition(state.Succeeded)
	return Outcome{Status: state.Succeeded, Files: files, BaseID: gen.BaseID}
}

// fail ends an operation that never got past Idle or Launching.
func (c *Coordinator) fail(err error) Outcome {
	c.transition(state.Failed)
	return Outcome{Status: state.Failed, Reason: err.Error(), Err: err}
}

// finish moves the machine out of Terminating into the outcome's state.
func (c *Coordinator) finish(o Outcome) Outcome {
	c.transition(o.Status)
	return o
}

func (c *Coordinator) transition(to state.State) {
	if err := c.machine.Transition(to); err != nil {
		utils.ErrorLogger.Println(err.Error())
	}
}

func (c *Coordinator) record(o *Outcome, started time.Time) {
	if c.recorder == nil {
		return
	}

	run := &history.Run{
		Operation:  string(o.Mode),
		Account:    string(o.Account),
		Status:     string(o.Status),
		Reason:     o.Reason,
		BaseID:     o.BaseID,
		Stale:      o.Stale,
		Files:      o.Files,
		StartedAt:  started,
		FinishedAt: c.now(),
	}

	if err := c.recorder.Record(run); err != nil {
		utils.WarnLogger.Printf("Couldn't record run history: %s\r\n", err.Error())
		return
	}
	o.RunID = run.ID.Hex()
}
