package game

import (
	"strings"

	"github.com/Maizu/RLAccountMigrator/app/utils"
	"github.com/shirou/gopsutil/process"
)

// Proc is a running OS process the controller can stop.
type Proc interface {
	Pid() int32
	Name() (string, error)
	Terminate() error
	Kill() error
	IsRunning() (bool, error)
}

// ProcessFinder enumerates running processes whose name contains a
// substring.
type ProcessFinder interface {
	Find(name string) ([]Proc, error)
}

type GopsutilFinder struct{}

func (GopsutilFinder) Find(name string) ([]Proc, error) {
	processes, err := process.Processes()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(name)
	found := make([]Proc, 0)

	for _, p := range processes {
		pname, err := p.Name()
		if err != nil {
			continue
		}

		if !strings.Contains(strings.ToLower(pname), needle) {
			continue
		}

		utils.DebugLogger.Printf("Found %s process with pid: %d\r\n", pname, p.Pid)
		found = append(found, &gopsutilProc{p: p})
	}

	return found, nil
}

type gopsutilProc struct {
	p *process.Process
}

func (g *gopsutilProc) Pid() int32 {
	return g.p.Pid
}

func (g *gopsutilProc) Name() (string, error) {
	return g.p.Name()
}

func (g *gopsutilProc) Terminate() error {
	return g.p.Terminate()
}

func (g *gopsutilProc) Kill() error {
	return g.p.Kill()
}

func (g *gopsutilProc) IsRunning() (bool, error) {
	return g.p.IsRunning()
}
