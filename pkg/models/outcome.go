package models

// Outcome is the explicit result of one node execution. Suspension is a
// deliberate yield of control, not an error, so it travels as a value
// rather than a panic or a sentinel error.
type Outcome interface {
	outcome()
}

// Continue advances traversal. Branch selects the outgoing edge by
// sourceHandle on multi-output nodes; empty means the single linear edge.
type Continue struct {
	Output any
	Branch string
}

// Suspend yields the run pending further user input. Message is returned to
// the end user as this turn's reply.
type Suspend struct {
	Reason  string
	Message string
}

// Complete ends the run with the final reply.
type Complete struct {
	FinalReply    string
	HumanTransfer bool
	Reason        string
}

// Fail marks the node execution as failed. The driver records it on the
// node's detail and aborts the run unless the node type has a fallback
// branch policy.
type Fail struct {
	Err error
}

func (Continue) outcome() {}
func (Suspend) outcome()  {}
func (Complete) outcome() {}
func (Fail) outcome()     {}
