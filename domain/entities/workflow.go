package entities

// Workflow is a named, ordered list of actions run against one session
type Workflow struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Environment string   `json:"environment,omitempty" yaml:"environment,omitempty"`
	Actions     []Action `json:"actions" yaml:"actions"`
}

// WorkflowStatus represents the status of a workflow run
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
)

// WorkflowResult summarises a workflow run
type WorkflowResult struct {
	Name     string         `json:"name"`
	Status   WorkflowStatus `json:"status"`
	Outcomes []Outcome      `json:"outcomes"`
	Skipped  int            `json:"skipped"`
	Error    string         `json:"error,omitempty"`
}
