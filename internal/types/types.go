package types

// CommandKind identifies a protocol command.
type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdInsert
	CmdTruncate
	CmdIntersection
	CmdSymmetricDifference
)

// String returns the protocol keyword for the command kind.
func (k CommandKind) String() string {
	switch k {
	case CmdInsert:
		return "INSERT"
	case CmdTruncate:
		return "TRUNCATE"
	case CmdIntersection:
		return "INTERSECTION"
	case CmdSymmetricDifference:
		return "SYMMETRIC_DIFFERENCE"
	default:
		return "UNKNOWN"
	}
}

// Arity returns the exact token count a command line must have,
// keyword included. Unknown commands return 0.
func (k CommandKind) Arity() int {
	switch k {
	case CmdInsert:
		return 4
	case CmdTruncate:
		return 2
	case CmdIntersection, CmdSymmetricDifference:
		return 1
	default:
		return 0
	}
}

// Row is one streamed unit of a command response.
type Row struct {
	Payload string
	OK      bool
	Final   bool // Last row of a command; carries its status
}

// ProtocolMethod defines the reactor operation type.
type ProtocolMethod int

const (
	OpEvaluate ProtocolMethod = iota
	OpStats
	OpExport
)

func (m ProtocolMethod) String() string {
	switch m {
	case OpEvaluate:
		return "evaluate"
	case OpStats:
		return "stats"
	case OpExport:
		return "export"
	default:
		return "unknown"
	}
}

// TableStats is a point-in-time summary of one table.
type TableStats struct {
	Name   string `json:"name"`
	Rows   int    `json:"rows"`
	MinKey *int   `json:"min_key,omitempty"`
	MaxKey *int   `json:"max_key,omitempty"`
	Digest string `json:"digest"`
}

// RequestContext carries request data through the reactor.
type RequestContext struct {
	ReqID     string
	Operation ProtocolMethod
	Lines     []string             // Framed command lines for OpEvaluate
	Table     string               // Table name for OpExport
	RespChan  chan ResponseContext // Channel to send response back
}

// ResponseContext carries the result.
type ResponseContext struct {
	ReqID string
	Rows  []Row        // OpEvaluate output, in emission order
	Stats []TableStats // OpStats output
	Dump  []byte       // OpExport output
	Error error
}
