package domain

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Operation names a capability-interface operation. Every tool maps to exactly one.
type Operation string

const (
	OpSearch          Operation = "Search"
	OpGetDocument     Operation = "GetDocument"
	OpIndexDocument   Operation = "IndexDocument"
	OpDeleteDocument  Operation = "DeleteDocument"
	OpBulkWrite       Operation = "BulkWrite"
	OpClusterHealth   Operation = "ClusterHealth"
	OpListIndices     Operation = "ListIndices"
	OpListAliases     Operation = "ListAliases"
	OpGetMappings     Operation = "GetMappings"
	OpClusterStats    Operation = "ClusterStats"
	OpShardAllocation Operation = "ShardAllocation"
)

// IsWrite reports whether the operation mutates engine state.
func (o Operation) IsWrite() bool {
	switch o {
	case OpIndexDocument, OpDeleteDocument, OpBulkWrite:
		return true
	}
	return false
}

// ToolDescriptor describes a tool exposed over MCP.
// Descriptors are immutable after registration and the set is fixed process-wide.
type ToolDescriptor struct {
	// Name must be unique within the server, e.g. "search".
	Name string `json:"name"`

	// Description tells the agent when to use the tool.
	Description string `json:"description"`

	// InputSchema declares required/optional fields, their types and permitted ranges.
	InputSchema *openapi3.Schema `json:"inputSchema"`

	// OutputSchema describes the response envelope, with the success payload under "result".
	OutputSchema *openapi3.Schema `json:"outputSchema"`

	// Operation is the capability operation backing this tool.
	Operation Operation `json:"operation"`

	// ReadOnly marks tools that never mutate engine state.
	ReadOnly bool `json:"readOnly"`
}

// OperationRequest is one tool invocation, owned by the dispatcher for its lifetime.
type OperationRequest struct {
	CorrelationID string
	Tool          string
	Arguments     map[string]any
}

// OperationResult is a successful outcome ready to be serialized into a response envelope.
type OperationResult struct {
	CorrelationID string
	Tool          string
	Payload       any
}
