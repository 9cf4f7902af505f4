package end

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convflow/convflow/pkg/models"
)

func TestEndNode_ConfiguredReplyWins(t *testing.T) {
	node, err := NewEndNode("end-1", json.RawMessage(`{"reply":"Thanks, {{customer.name}}!"}`))
	require.NoError(t, err)

	ec := models.NewExecutionContext("wf-1", "session-1", "bye")
	ec.CustomerInfo["name"] = "Dana"
	ec.FinalReply = "accumulated reply"

	outcome, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	complete := outcome.(models.Complete)
	assert.Equal(t, "Thanks, Dana!", complete.FinalReply)
	assert.Equal(t, "Thanks, Dana!", ec.FinalReply)
}

func TestEndNode_FallsBackToAccumulatedReply(t *testing.T) {
	node, err := NewEndNode("end-1", nil)
	require.NoError(t, err)

	ec := models.NewExecutionContext("wf-1", "session-1", "bye")
	ec.FinalReply = "accumulated reply"

	outcome, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	assert.Equal(t, "accumulated reply", outcome.(models.Complete).FinalReply)
}

func TestEndNode_FallsBackToLastOutput(t *testing.T) {
	node, err := NewEndNode("end-1", nil)
	require.NoError(t, err)

	ec := models.NewExecutionContext("wf-1", "session-1", "bye")
	ec.SetOutput("llm-1", "generated answer")
	ec.AddExecutionDetail(models.NodeExecutionDetail{NodeID: "llm-1", Output: "generated answer"})

	outcome, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	assert.Equal(t, "generated answer", outcome.(models.Complete).FinalReply)
}

func TestEndNode_CarriesTransferFlags(t *testing.T) {
	node, err := NewEndNode("end-1", nil)
	require.NoError(t, err)

	ec := models.NewExecutionContext("wf-1", "session-1", "bye")
	ec.FinalReply = "transferring"
	ec.NeedHumanTransfer = true
	ec.HumanTransferReason = "escalation"

	outcome, err := node.Execute(context.Background(), ec)
	require.NoError(t, err)

	complete := outcome.(models.Complete)
	assert.True(t, complete.HumanTransfer)
	assert.Equal(t, "escalation", complete.Reason)
}
