package buffer

import (
	"errors"

	"github.com/mmc28a/vixl/translate"
)

var f = translate.From

var (
	ErrRewindRange = errors.New(f("rewind offset out of range"))
)
