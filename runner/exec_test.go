package runner_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/taskq/runner"
)

// TestHelperProcess is not a real test. It is the worker body the launcher
// tests re-exec.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("TASKQ_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}

	switch args[1] {
	case "ok":
		fmt.Print("hello")
		os.Exit(0)
	case "fail":
		fmt.Fprint(os.Stderr, "bad")
		os.Exit(3)
	case "env":
		fmt.Print(os.Getenv("TASKQ_TEST_VALUE"))
		os.Exit(0)
	case "pwd":
		wd, _ := os.Getwd()
		fmt.Print(wd)
		os.Exit(0)
	case "sleep":
		time.Sleep(time.Minute)
		os.Exit(0)
	case "chatty":
		for i := 0; i < 20; i++ {
			fmt.Println("tick")
			time.Sleep(10 * time.Millisecond)
		}
		os.Exit(0)
	default:
		os.Exit(2)
	}
}

func helperLauncher(mode string) *runner.ExecLauncher {
	return &runner.ExecLauncher{
		Path: os.Args[0],
		Args: []string{"-test.run=^TestHelperProcess$", "--", mode},
		Env:  []string{"TASKQ_WANT_HELPER_PROCESS=1"},
	}
}

func launchAndWait(t *testing.T, l *runner.ExecLauncher) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	p, launchErr := l.Launch(context.Background(), &out, &errOut)
	if launchErr != nil {
		t.Fatalf("launch: %v", launchErr)
	}
	if p.PID() <= 0 {
		t.Errorf("PID() = %d, want > 0", p.PID())
	}
	select {
	case <-p.Done():
	case <-time.After(30 * time.Second):
		t.Fatal("process did not exit")
	}
	return out.String(), errOut.String(), p.Err()
}

func TestExecLauncher_CleanExit(t *testing.T) {
	out, _, err := launchAndWait(t, helperLauncher("ok"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "hello") {
		t.Errorf("stdout = %q, want hello", out)
	}
}

func TestExecLauncher_NonZeroExit(t *testing.T) {
	_, errOut, err := launchAndWait(t, helperLauncher("fail"))
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("got %v, want *exec.ExitError", err)
	}
	if exitErr.ExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.ExitCode())
	}
	if errOut != "bad" {
		t.Errorf("stderr = %q, want %q", errOut, "bad")
	}
}

func TestExecLauncher_Env(t *testing.T) {
	l := helperLauncher("env")
	l.Env = append(l.Env, "TASKQ_TEST_VALUE=forty-two")

	out, _, err := launchAndWait(t, l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "forty-two") {
		t.Errorf("stdout = %q, want forty-two", out)
	}
}

func TestExecLauncher_Dir(t *testing.T) {
	dir := t.TempDir()
	l := helperLauncher("pwd")
	l.Dir = dir

	out, _, err := launchAndWait(t, l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(strings.SplitN(out, "\n", 2)[0]))
	if got != want {
		t.Errorf("working dir = %q, want %q", got, want)
	}
}

func TestExecLauncher_Timeout(t *testing.T) {
	l := helperLauncher("sleep")
	l.Timeout = 200 * time.Millisecond

	start := time.Now()
	_, _, err := launchAndWait(t, l)
	if !errors.Is(err, runner.ErrProcessTimeout) {
		t.Fatalf("got %v, want ErrProcessTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestExecLauncher_IdleTimeout(t *testing.T) {
	l := helperLauncher("sleep")
	l.IdleTimeout = 200 * time.Millisecond

	_, _, err := launchAndWait(t, l)
	if !errors.Is(err, runner.ErrProcessIdle) {
		t.Fatalf("got %v, want ErrProcessIdle", err)
	}
}

func TestExecLauncher_OutputResetsIdle(t *testing.T) {
	l := helperLauncher("chatty")
	l.IdleTimeout = 2 * time.Second

	out, _, err := launchAndWait(t, l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Count(out, "tick"); got != 20 {
		t.Errorf("ticks = %d, want 20", got)
	}
}

func TestExecLauncher_MissingBinary(t *testing.T) {
	l := &runner.ExecLauncher{Path: filepath.Join(t.TempDir(), "no-such-binary")}
	if _, err := l.Launch(context.Background(), nil, nil); err == nil {
		t.Fatal("expected launch error")
	}
}
