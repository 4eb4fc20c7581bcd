package storage

import "errors"

// Command errors. The text is sent to clients verbatim after "ERR ".
var (
	ErrUnsupportedCommand = errors.New("Unsupported command")
	ErrWrongFormat        = errors.New("Wrong format")
	ErrTableNotFound      = errors.New("Table doesn't exists")
	ErrDuplicateKey       = errors.New("duplicate")
)
