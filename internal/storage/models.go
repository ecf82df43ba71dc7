package storage

import "errors"

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// SourceField is the payload field mirrored into the indexed chunks.source column.
const SourceField = "source"
