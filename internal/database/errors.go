package database

import "fmt"

// StoreWriteError reports a failed create, merge or delete against the
// remote store: transport failures, rejected permissions and invalid paths.
type StoreWriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

func writeError(op, path string, err error) error {
	return &StoreWriteError{Op: op, Path: path, Err: err}
}
