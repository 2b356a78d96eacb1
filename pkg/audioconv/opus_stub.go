//go:build !opus

package audioconv

import (
	"errors"
	"io"
)

var errNoOpus = errors.New("opus support not compiled in (build with -tags opus)")

func decodeOggOpus(io.ReadSeeker) ([]float32, error) {
	return nil, errNoOpus
}
