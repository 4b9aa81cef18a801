package fetch

import (
	"fmt"

	"github.com/nao1215/imgshare/internal/model"
)

var (
	// ErrUnexpectedStatus is returned when the origin answers with a status
	// outside 2xx.
	ErrUnexpectedStatus = fmt.Errorf("%w: unexpected HTTP status", model.ErrNetwork)

	// ErrInvalidRange is returned for a byte range with end before start.
	ErrInvalidRange = fmt.Errorf("%w: invalid byte range", model.ErrNetwork)
)
