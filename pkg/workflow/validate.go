package workflow

import (
	"fmt"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/registry"
)

// ValidateGraph checks a workflow's structural invariants and each
// node's configuration schema, returning every problem found rather
// than stopping at the first.
func ValidateGraph(workflow *models.Workflow, reg *registry.Registry) []string {
	var problems []string

	triggers := 0

	nodeIDs := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if nodeIDs[node.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))
		}

		nodeIDs[node.ID] = true

		if node.IsTrigger() {
			triggers++
		}

		if reg != nil {
			if err := reg.ValidateConfig(node); err != nil {
				problems = append(problems, err.Error())
			}
		}
	}

	switch triggers {
	case 0:
		problems = append(problems, "workflow has no trigger node")
	case 1:
	default:
		problems = append(problems, fmt.Sprintf("workflow has %d trigger nodes, expected exactly one", triggers))
	}

	for _, edge := range workflow.Edges {
		if !nodeIDs[edge.Source] {
			problems = append(problems, fmt.Sprintf("edge %q references unknown source node %q", edge.ID, edge.Source))
		}

		if !nodeIDs[edge.Target] {
			problems = append(problems, fmt.Sprintf("edge %q references unknown target node %q", edge.ID, edge.Target))
		}
	}

	return problems
}
