// Package main provides the formtrack CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// userError marks a failure caused by the caller's input rather than the
// environment.
type userError struct {
	err error
}

func (e *userError) Error() string { return e.err.Error() }
func (e *userError) Unwrap() error { return e.err }

func userErrorf(format string, args ...any) error {
	return &userError{err: fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "formtrack:", err)
	return a.exitCode(err)
}

// exitCode classifies err. Anything cobra rejects before a command starts
// running is a usage error.
func (a *app) exitCode(err error) int {
	var ue *userError
	switch {
	case !a.started:
		return exitUserError
	case errors.As(err, &ue),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrPersonNotFound):
		return exitUserError
	default:
		return exitSysError
	}
}
