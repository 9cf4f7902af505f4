package reply

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convflow/convflow/pkg/models"
)

func TestReplyNode_RendersTemplate(t *testing.T) {
	node, err := NewReplyNode("reply-1", json.RawMessage(`{"text":"You asked: {{sys.query}}"}`))
	require.NoError(t, err)

	ec := models.NewExecutionContext("wf-1", "session-1", "where is my order?")

	outcome, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	cont, ok := outcome.(models.Continue)
	require.True(t, ok)
	assert.Equal(t, "You asked: where is my order?", cont.Output)
	assert.Equal(t, "You asked: where is my order?", ec.FinalReply)
	assert.Equal(t, cont.Output, ec.Output("reply-1"))
}

func TestReplyNode_TerminalCompletesRun(t *testing.T) {
	node, err := NewReplyNode("reply-1", json.RawMessage(`{"text":"Goodbye","terminal":true}`))
	require.NoError(t, err)

	ec := models.NewExecutionContext("wf-1", "session-1", "bye")

	outcome, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	complete, ok := outcome.(models.Complete)
	require.True(t, ok)
	assert.Equal(t, "Goodbye", complete.FinalReply)
	assert.False(t, complete.HumanTransfer)
}

func TestReplyNode_CarriesTransferFlags(t *testing.T) {
	node, err := NewReplyNode("reply-1", json.RawMessage(`{"text":"An agent will join shortly.","terminal":true}`))
	require.NoError(t, err)

	ec := models.NewExecutionContext("wf-1", "session-1", "I need a human")
	ec.NeedHumanTransfer = true
	ec.HumanTransferReason = "user request"

	outcome, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	complete := outcome.(models.Complete)
	assert.True(t, complete.HumanTransfer)
	assert.Equal(t, "user request", complete.Reason)
}
