package cmd

import "fmt"

// exitCodeError carries the process exit code for a failed command.
type exitCodeError struct {
	code    int
	message string
	err     error
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &exitCodeError{code: code, message: message, err: err}
}
