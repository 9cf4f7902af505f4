// Package knowledge provides the retrieval node backed by a vector search.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/convflow/convflow/pkg/llm"
	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
	"github.com/convflow/convflow/pkg/template"
)

const defaultTopK = 3

// Config holds the knowledge node options.
type Config struct {
	// KnowledgeBaseID selects the corpus to search.
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	// Query is the search template. Defaults to the inbound user query.
	Query string `json:"query,omitempty"`
	// TopK limits the number of returned documents.
	TopK int `json:"topK,omitempty"`
	// ScoreThreshold drops documents scoring below it.
	ScoreThreshold float64 `json:"scoreThreshold,omitempty"`
}

// KnowledgeNode retrieves documents and exposes them as the node output.
type KnowledgeNode struct {
	id        string
	config    Config
	retriever llm.Retriever
}

func NewKnowledgeNode(id string, raw json.RawMessage, retriever llm.Retriever) (*KnowledgeNode, error) {
	var config Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to parse knowledge node config: %w", err)
		}
	}
	if config.TopK <= 0 {
		config.TopK = defaultTopK
	}

	return &KnowledgeNode{id: id, config: config, retriever: retriever}, nil
}

func (n *KnowledgeNode) ID() string {
	return n.id
}

func (n *KnowledgeNode) Type() string {
	return string(models.NodeTypeKnowledge)
}

func (n *KnowledgeNode) Execute(ctx context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	query := ec.Query
	if n.config.Query != "" {
		query = template.Render(n.config.Query, ec)
	}

	docs, err := n.retriever.Search(ctx, llm.SearchRequest{
		KnowledgeBaseID: n.config.KnowledgeBaseID,
		Query:           query,
		TopK:            n.config.TopK,
		ScoreThreshold:  n.config.ScoreThreshold,
	})
	if err != nil {
		return models.Fail{Err: err}, fmt.Errorf("failed to search knowledge base %s: %w", n.config.KnowledgeBaseID, err)
	}

	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(doc.Content)
	}

	output := sb.String()
	ec.SetOutput(n.id, output)
	ec.SetVariable("_retrievedDocs_"+n.id, docs)

	return models.Continue{Output: output}, nil
}

// Factory creates KnowledgeNode instances bound to a shared retriever.
type Factory struct {
	retriever llm.Retriever
}

func NewFactory(retriever llm.Retriever) protocol.NodeFactory {
	return &Factory{retriever: retriever}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewKnowledgeNode(id, config, f.retriever)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeKnowledge)
}

func (f *Factory) Name() string {
	return "Knowledge"
}

func (f *Factory) Description() string {
	return "Retrieves documents from a knowledge base for downstream prompting."
}
