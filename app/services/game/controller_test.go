package game

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLauncher struct {
	mu       sync.Mutex
	launched []string
	err      error
}

func (f *fakeLauncher) Launch(path string) (*Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.launched = append(f.launched, path)
	return NewHandle(4242, path), nil
}

type fakeProc struct {
	mu           sync.Mutex
	pid          int32
	running      bool
	stubborn     bool
	terminateErr error
	terminated   int
	killed       int
}

func (p *fakeProc) Pid() int32 { return p.pid }

func (p *fakeProc) Name() (string, error) { return "RocketLeague.exe", nil }

func (p *fakeProc) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated++
	if p.terminateErr != nil {
		return p.terminateErr
	}
	if !p.stubborn {
		p.running = false
	}
	return nil
}

func (p *fakeProc) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed++
	p.running = false
	return nil
}

func (p *fakeProc) IsRunning() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running, nil
}

type fakeFinder struct {
	mu    sync.Mutex
	procs []Proc
	calls int
}

func (f *fakeFinder) Find(name string) ([]Proc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.procs, nil
}

func touch(t *testing.T, dir, name string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestLaunch_MissingExecutable(t *testing.T) {
	launcher := &fakeLauncher{}
	c := NewController(launcher, &fakeFinder{}, "RocketLeague", 10*time.Millisecond)

	var notFound *types.NotFoundError

	_, err := c.Launch("")
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "game executable not set", err.Error())

	_, err = c.Launch(filepath.Join(t.TempDir(), "RocketLeague.exe"))
	require.ErrorAs(t, err, &notFound)

	_, err = c.Launch(t.TempDir())
	require.ErrorAs(t, err, &notFound)

	assert.Empty(t, launcher.launched)
}

func TestLaunch_Starts(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "RocketLeague.exe")
	require.NoError(t, os.WriteFile(exe, []byte("bin"), 0755))

	launcher := &fakeLauncher{}
	c := NewController(launcher, &fakeFinder{}, "RocketLeague", 10*time.Millisecond)

	handle, err := c.Launch(exe)
	require.NoError(t, err)
	assert.Equal(t, exe, handle.Path)
	assert.Equal(t, []string{exe}, launcher.launched)
	assert.False(t, handle.Exited())
}

func TestLaunch_LauncherError(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "RocketLeague.exe")
	require.NoError(t, os.WriteFile(exe, []byte("bin"), 0755))

	boom := errors.New("exec format error")
	c := NewController(&fakeLauncher{err: boom}, &fakeFinder{}, "RocketLeague", 10*time.Millisecond)

	_, err := c.Launch(exe)
	assert.ErrorIs(t, err, boom)
}

func TestWaitForNewGeneration_Fresh(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, dir, "a1b2.save", now)

	go func() {
		time.Sleep(60 * time.Millisecond)
		touch(t, dir, "c3d4.save", time.Now())
		touch(t, dir, "c3d4_1.save", time.Now())
	}()

	c := NewController(&fakeLauncher{}, &fakeFinder{}, "RocketLeague", 20*time.Millisecond)
	previous := map[string]struct{}{"a1b2": {}}

	start := time.Now()
	res, err := c.WaitForNewGeneration(context.Background(), dir, previous, 5*time.Second, now)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, Fresh, res.Kind)
	require.NotNil(t, res.Generation)
	assert.Equal(t, "c3d4", res.Generation.BaseID)
}

func TestWaitForNewGeneration_FallbackOnlyAfterTimeout(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, dir, "a1b2.save", now)
	touch(t, dir, "e5f6.save", now.Add(-time.Minute))

	c := NewController(&fakeLauncher{}, &fakeFinder{}, "RocketLeague", 20*time.Millisecond)
	previous := map[string]struct{}{"a1b2": {}, "e5f6": {}}
	timeout := 200 * time.Millisecond

	start := time.Now()
	res, err := c.WaitForNewGeneration(context.Background(), dir, previous, timeout, now)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), timeout)
	assert.Equal(t, StaleFallback, res.Kind)
	require.NotNil(t, res.Generation)
	assert.Equal(t, "a1b2", res.Generation.BaseID)
}

func TestWaitForNewGeneration_IgnoresOtherDays(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, dir, "a1b2.save", now)

	go func() {
		time.Sleep(30 * time.Millisecond)
		touch(t, dir, "0ddba11.save", now.Add(-72*time.Hour))
	}()

	c := NewController(&fakeLauncher{}, &fakeFinder{}, "RocketLeague", 20*time.Millisecond)
	res, err := c.WaitForNewGeneration(context.Background(), dir, map[string]struct{}{"a1b2": {}}, 150*time.Millisecond, now)
	require.NoError(t, err)

	assert.Equal(t, StaleFallback, res.Kind)
	assert.Equal(t, "a1b2", res.Generation.BaseID)
}

func TestWaitForNewGeneration_NoneWhenDirectoryMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	c := NewController(&fakeLauncher{}, &fakeFinder{}, "RocketLeague", 20*time.Millisecond)
	res, err := c.WaitForNewGeneration(context.Background(), dir, nil, 80*time.Millisecond, time.Now())
	require.NoError(t, err)

	assert.Equal(t, None, res.Kind)
	assert.Nil(t, res.Generation)
}

func TestWaitForNewGeneration_Cancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	c := NewController(&fakeLauncher{}, &fakeFinder{}, "RocketLeague", 20*time.Millisecond)
	res, err := c.WaitForNewGeneration(ctx, dir, nil, 5*time.Second, time.Now())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, None, res.Kind)
}

func TestTerminate(t *testing.T) {
	graceful := &fakeProc{pid: 1, running: true}
	stubborn := &fakeProc{pid: 2, running: true, stubborn: true}
	refusing := &fakeProc{pid: 3, running: true, terminateErr: errors.New("access denied")}
	finder := &fakeFinder{procs: []Proc{graceful, stubborn, refusing}}

	c := NewController(&fakeLauncher{}, finder, "RocketLeague", 20*time.Millisecond)

	start := time.Now()
	require.NoError(t, c.Terminate(NewHandle(1, "RocketLeague.exe"), 150*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

	assert.Equal(t, 1, graceful.terminated)
	assert.Equal(t, 0, graceful.killed)

	assert.Equal(t, 1, stubborn.terminated)
	assert.Equal(t, 1, stubborn.killed)

	assert.Equal(t, 1, refusing.killed)

	running, err := c.Running()
	require.NoError(t, err)
	assert.False(t, running)
}

func TestTerminate_ReturnsEarlyWhenAllExit(t *testing.T) {
	proc := &fakeProc{pid: 1, running: true}
	c := NewController(&fakeLauncher{}, &fakeFinder{procs: []Proc{proc}}, "RocketLeague", 20*time.Millisecond)

	start := time.Now()
	require.NoError(t, c.Terminate(nil, 5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, proc.killed)
}

func TestTerminate_NothingRunning(t *testing.T) {
	finder := &fakeFinder{}
	c := NewController(&fakeLauncher{}, finder, "RocketLeague", 20*time.Millisecond)

	assert.NoError(t, c.Terminate(nil, time.Second))
	assert.Equal(t, 1, finder.calls)
}

func TestWaitKindString(t *testing.T) {
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "stale", StaleFallback.String())
	assert.Equal(t, "none", None.String())
}
