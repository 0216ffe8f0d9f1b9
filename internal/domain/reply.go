package domain

import "strings"

// Reply is what goes back to the conversant: nothing, a single message, or an
// ordered list of messages.
type Reply struct {
	Messages []string
}

// Text builds a single-message reply. Blank text yields an empty reply.
func Text(s string) Reply {
	if strings.TrimSpace(s) == "" {
		return Reply{}
	}
	return Reply{Messages: []string{s}}
}

// Empty reports whether there is nothing to send.
func (r Reply) Empty() bool {
	return len(r.Messages) == 0
}

// Join returns all messages separated by a blank line.
func (r Reply) Join() string {
	return strings.Join(r.Messages, "\n\n")
}

// Append returns r followed by the messages of other.
func (r Reply) Append(other Reply) Reply {
	out := make([]string, 0, len(r.Messages)+len(other.Messages))
	out = append(out, r.Messages...)
	out = append(out, other.Messages...)
	return Reply{Messages: out}
}

// ExecutionResult is what running an intent (or a flow step) produced.
type ExecutionResult struct {
	Reply   Reply
	Success bool
	// Reason is set when Success is false.
	Reason string
	// TransactionID is the readable id of a transaction created by the run.
	TransactionID string
}

// Succeeded builds a successful result.
func Succeeded(reply Reply) ExecutionResult {
	return ExecutionResult{Reply: reply, Success: true}
}

// Failed builds a failed result with a metric reason.
func Failed(reply Reply, reason string) ExecutionResult {
	return ExecutionResult{Reply: reply, Reason: reason}
}
