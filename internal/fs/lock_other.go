//go:build !unix

package fs

import (
	"errors"
	"io"
	"os"
)

// On platforms without flock the lock is the existence of the file itself.
// A crashed holder leaves a stale lock behind that must be removed by hand.
type fileLock struct {
	name string
	f    *os.File
}

func tryLock(name string) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, err
	}
	return &fileLock{name: name, f: f}, nil
}

func (l *fileLock) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	if rerr := os.Remove(l.name); err == nil {
		err = rerr
	}
	l.f = nil
	return err
}
