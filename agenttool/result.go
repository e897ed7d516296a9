package agenttool

// ErrorKind classifies a failed invocation.
type ErrorKind int

const (
	// KindInput is a missing or invalid parameter, caught before any side effect.
	KindInput ErrorKind = iota + 1
	// KindCollaborator is a failure reported by git, a subprocess or the file system.
	KindCollaborator
	// KindUnknownTool is a call naming no registered tool.
	KindUnknownTool
	// KindInternal is a recovered panic.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindCollaborator:
		return "collaborator"
	case KindUnknownTool:
		return "unknown_tool"
	case KindInternal:
		return "internal"
	}
	return "ok"
}

// Result is the outcome of one invocation: a status or an error.
// Conditions the model can act on, such as an existing branch, are statuses.
type Result struct {
	Status  string
	Kind    ErrorKind // zero for success
	Message string
}

func Ok(status string) Result {
	return Result{Status: status}
}

func Err(kind ErrorKind, message string) Result {
	return Result{Kind: kind, Message: message}
}

func (r Result) IsErr() bool { return r.Kind != 0 }

// String renders r for display. Errors are prefixed with "Error: ".
func (r Result) String() string {
	if r.IsErr() {
		return "Error: " + r.Message
	}
	return r.Status
}
