// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// FakeRecorder runs a long-lived process under a recorder-like name so the
// process observer can find it in the real process table.
type FakeRecorder struct {
	Name string
	dir  string
	cmd  *exec.Cmd
}

// NewFakeRecorder prepares a recorder named name inside dir.
// Names are kept under 15 characters: Linux truncates comm beyond that.
func NewFakeRecorder(dir, name string) *FakeRecorder {
	return &FakeRecorder{Name: name, dir: dir}
}

// Start copies the sleep binary under the recorder name and runs it.
func (f *FakeRecorder) Start() error {
	if f.cmd != nil {
		return fmt.Errorf("fake recorder %s already running", f.Name)
	}

	sleepPath, err := exec.LookPath("sleep")
	if err != nil {
		return fmt.Errorf("sleep binary not found: %w", err)
	}

	binPath := filepath.Join(f.dir, f.Name)
	if err := copyExecutable(sleepPath, binPath); err != nil {
		return err
	}

	// argv[0] stays "sleep" so multi-call binaries still dispatch; the
	// process name comes from the executable path.
	cmd := exec.Command(binPath, "300")
	cmd.Args = []string{"sleep", "300"}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start fake recorder: %w", err)
	}
	f.cmd = cmd
	return nil
}

// Stop kills the recorder and waits for it to exit.
func (f *FakeRecorder) Stop() error {
	if f.cmd == nil {
		return nil
	}
	_ = f.cmd.Process.Kill()
	_ = f.cmd.Wait()
	f.cmd = nil
	return nil
}

// PID returns the running recorder's PID, or 0.
func (f *FakeRecorder) PID() int {
	if f.cmd == nil || f.cmd.Process == nil {
		return 0
	}
	return f.cmd.Process.Pid
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
