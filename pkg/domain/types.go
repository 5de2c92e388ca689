package domain

// Role identifies one of the four pipeline roles.
type Role string

const (
	RolePlanner   Role = "planner"
	RoleExecutor  Role = "executor"
	RoleAuditor   Role = "auditor"
	RoleCommitter Role = "committer"
)

// Goal is a high-level intent for one conversational thread, optionally
// pre-decomposed by an external planner into a task graph.
type Goal struct {
	ThreadID string     `json:"thread_id"`
	Graph    *TaskGraph `json:"dag,omitempty"`
}

// TaskGraph is a set of task specs with optional dependencies between them.
type TaskGraph struct {
	Tasks []TaskSpec `json:"tasks"`
}

// TaskSpec describes one proposed unit of work inside a goal's task graph.
type TaskSpec struct {
	ID        string         `json:"id,omitempty"`
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
	DependsOn []string       `json:"depends_on,omitempty"`
}

// Task is one unit of proposed work. Immutable once enqueued.
type Task struct {
	ID           string         `json:"id"`
	ToolName     string         `json:"tool_name"`
	Args         map[string]any `json:"args"`
	ThreadID     string         `json:"thread_id"`
	PartitionKey string         `json:"partition_key"`
	DependsOn    []string       `json:"depends_on,omitempty"`
}

// Patch is an identified, idempotent set of mutation ops proposed against
// one graph. A nil BaseHash means "apply without a precondition".
type Patch struct {
	PatchID  string  `json:"patch_id"`
	ThreadID string  `json:"thread_id"`
	GraphID  string  `json:"graph_id"`
	BaseHash *string `json:"base_hash,omitempty"`
	Ops      []Op    `json:"ops"`
}

// ReviewStatus is the auditor's verdict on a patch.
type ReviewStatus string

const (
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Review carries the audited patch by value together with the verdict.
type Review struct {
	Status  ReviewStatus `json:"status"`
	GraphID string       `json:"graph_id"`
	Patch   Patch        `json:"patch"`
	Reason  string       `json:"reason,omitempty"`
}

// CommitEvent is published on the event bus after a successful merge.
type CommitEvent struct {
	GraphID  string `json:"graph_id"`
	PatchID  string `json:"patch_id"`
	ThreadID string `json:"thread_id"`
	Ops      []Op   `json:"ops"`
	Version  string `json:"version"`
}

// Rejection is the terminal record of an audit rejection, kept so rejected
// patches surface to a human instead of being retried.
type Rejection struct {
	PatchID  string `json:"patch_id"`
	GraphID  string `json:"graph_id"`
	ThreadID string `json:"thread_id"`
	Reason   string `json:"reason"`
}
