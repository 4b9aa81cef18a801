package store

import (
	"fmt"

	"github.com/nao1215/imgshare/internal/model"
)

var (
	// ErrCorruptRecord is returned when a record file is not a JSON object or
	// array of objects.
	ErrCorruptRecord = fmt.Errorf("%w: corrupt record file", model.ErrPersistence)

	// ErrEmptyKey is returned when an entry without a key is inserted.
	ErrEmptyKey = fmt.Errorf("%w: record key is empty", model.ErrPersistence)
)
