package registry

import (
	"github.com/convflow/convflow/pkg/llm"
	"github.com/convflow/convflow/pkg/nodes/api"
	"github.com/convflow/convflow/pkg/nodes/condition"
	"github.com/convflow/convflow/pkg/nodes/delay"
	"github.com/convflow/convflow/pkg/nodes/end"
	"github.com/convflow/convflow/pkg/nodes/humantransfer"
	"github.com/convflow/convflow/pkg/nodes/intent"
	"github.com/convflow/convflow/pkg/nodes/knowledge"
	"github.com/convflow/convflow/pkg/nodes/llmnode"
	"github.com/convflow/convflow/pkg/nodes/reply"
	"github.com/convflow/convflow/pkg/nodes/start"
	"github.com/convflow/convflow/pkg/toolcall"
)

// RegisterDefaultNodes wires every built-in node type into the registry,
// binding the shared collaborators the model-backed nodes need.
func RegisterDefaultNodes(r *Registry, client llm.ChatClient, retriever llm.Retriever, invoker toolcall.Invoker) {
	r.RegisterNode(start.NewFactory())
	r.RegisterNode(end.NewFactory())
	r.RegisterNode(reply.NewFactory())
	r.RegisterNode(humantransfer.NewFactory())
	r.RegisterNode(delay.NewFactory())
	r.RegisterNode(condition.NewFactory())
	r.RegisterNode(api.NewFactory())
	r.RegisterNode(intent.NewFactory(client))
	r.RegisterNode(knowledge.NewFactory(retriever))
	r.RegisterNode(llmnode.NewFactory(client, invoker))
}
