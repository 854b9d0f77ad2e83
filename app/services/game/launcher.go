package game

import (
	"os/exec"
	"path/filepath"
	"time"

	"github.com/Maizu/RLAccountMigrator/app/utils"
)

// Handle identifies a launched game process.
type Handle struct {
	Pid     int
	Path    string
	Started time.Time

	done chan struct{}
}

func NewHandle(pid int, path string) *Handle {
	return &Handle{
		Pid:     pid,
		Path:    path,
		Started: time.Now(),
		done:    make(chan struct{}),
	}
}

// Done is closed once the launched process has exited. Handles that were not
// created through an ExecLauncher never close it.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Launcher spawns the game executable without waiting for it to exit.
type Launcher interface {
	Launch(path string) (*Handle, error)
}

type ExecLauncher struct{}

func (ExecLauncher) Launch(path string) (*Handle, error) {
	cmd := exec.Command(path)
	cmd.Dir = filepath.Dir(path)
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	handle := NewHandle(cmd.Process.Pid, path)

	// reap the child so it never lingers as a zombie
	go func() {
		if err := cmd.Wait(); err != nil {
			utils.DebugLogger.Printf("Game process %d exited: %s\r\n", handle.Pid, err.Error())
		}
		close(handle.done)
	}()

	return handle, nil
}
