package protocol

import (
	"io"

	"pairdb/internal/types"
)

const (
	// Greeting is sent whenever the server is ready for a new batch of input.
	Greeting = "> "

	responsePrefix = "< "
	statusOK       = "OK"
	statusErr      = "ERR "
)

// FormatRow renders a result row as a response line. Non-final rows carry
// their payload; final rows become the OK / ERR status line.
func FormatRow(row types.Row) string {
	if !row.Final {
		return responsePrefix + row.Payload + "\n"
	}
	if row.OK {
		return responsePrefix + statusOK + "\n"
	}
	return responsePrefix + statusErr + row.Payload + "\n"
}

// ErrorRow builds the final row reporting err to the client.
func ErrorRow(err error) types.Row {
	return types.Row{Payload: err.Error(), OK: false, Final: true}
}

// WriteGreeting writes the prompt.
func WriteGreeting(w io.Writer) error {
	_, err := io.WriteString(w, Greeting)
	return err
}

// WriteRow writes one formatted row.
func WriteRow(w io.Writer, row types.Row) error {
	_, err := io.WriteString(w, FormatRow(row))
	return err
}
