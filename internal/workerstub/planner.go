package workerstub

import (
	"context"

	"github.com/nexusfab/fabric/internal/util"
)

// NewPlanner stubs the planner service: given a task description, it
// returns a trivial ordered plan.
func NewPlanner() *Stub {
	s := NewStub("planner")
	s.RegisterHandler("CreatePlan", handleCreatePlan)
	s.RegisterHandler("Plan", handleCreatePlan)
	return s
}

func handleCreatePlan(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	task := util.GetString(params, "task_description")
	if task == "" {
		task = "unspecified"
	}

	result := map[string]interface{}{
		"task": task,
		"steps": []map[string]interface{}{
			{"order": 1, "phase": "Analyse", "action": "Gather requirements"},
			{"order": 2, "phase": "Implement", "action": "Carry out " + task},
		},
		"total_steps": 2,
	}

	if deadline := util.ParseTime(params, "deadline"); deadline != nil {
		result["deadline"] = deadline.Format("2006-01-02T15:04:05Z07:00")
	}

	return result, nil
}
