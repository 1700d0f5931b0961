// +build !linux

package socket

import (
	"io"

	"github.com/pkg/errors"
)

// NewSocket is a dummy function for non-Linux platform.
func NewSocket(id int) (io.ReadWriteCloser, error) {
	return nil, errors.New("only available on linux")
}
