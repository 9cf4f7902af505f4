package cmd

import (
	"log/slog"

	"github.com/convflow/convflow/pkg/llm"
	"github.com/convflow/convflow/pkg/registry"
	"github.com/convflow/convflow/pkg/toolcall"
)

// NewRegistry builds a registry with every built-in node type registered.
func NewRegistry(logger *slog.Logger, client llm.ChatClient, retriever llm.Retriever) *registry.Registry {
	reg := registry.NewRegistry(logger)
	registry.RegisterDefaultNodes(reg, client, retriever, toolcall.NewHTTPInvoker())

	return reg
}
