package kmod

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is what a module tool reported. A non-zero ExitCode is a failed action.
type Result struct {
	ExitCode int
	Stderr   []byte
}

// Runner executes the module tools. The error is reserved for tools that could not be started.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs modprobe and rmmod as child processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode(), Stderr: stderr.Bytes()}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Stderr: stderr.Bytes()}, nil
}
