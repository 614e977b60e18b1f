package domain

// Wire shapes of the remote scanning backend.

type ScanStatus struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Target   string `json:"target"`
	Error    string `json:"error,omitempty"`

	PortsFound    int `json:"ports_found,omitempty"`
	ServicesFound int `json:"services_found,omitempty"`
	HostsFound    int `json:"hosts_found,omitempty"`
	FindingsFound int `json:"findings_found,omitempty"`
}

type RunningScan struct {
	ID          string `json:"id"`
	ScanType    string `json:"scan_type"`
	Target      string `json:"target"`
	Progress    int    `json:"progress"`
	WorkspaceID string `json:"workspace_id"`
	Command     string `json:"command,omitempty"`
}

type RunningScans struct {
	Scans []RunningScan `json:"scans"`
	Total int           `json:"total"`
}

type CancelResult struct {
	Message           string `json:"message"`
	ScanID            string `json:"scan_id"`
	ProcessTerminated bool   `json:"process_terminated"`
}

type CancelAllResult struct {
	Cancelled    int      `json:"cancelled"`
	Failed       int      `json:"failed"`
	Total        int      `json:"total"`
	CancelledIDs []string `json:"cancelled_ids"`
	FailedIDs    []string `json:"failed_ids"`
}

type HistoricalLog struct {
	ID          interface{} `json:"id"`
	Source      string      `json:"source"`
	Level       string      `json:"level"`
	Message     string      `json:"message"`
	Timestamp   interface{} `json:"timestamp"`
	TaskID      string      `json:"task_id,omitempty"`
	WorkspaceID string      `json:"workspace_id"`
	Metadata    JSONB       `json:"metadata,omitempty"`
}

type LogPage struct {
	Logs  []HistoricalLog `json:"logs"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

type ExecuteResponse struct {
	ScanID  string `json:"scan_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PushEvent is the payload carried by backend_log, worker_log and tool_log events.
type PushEvent struct {
	Source      string      `json:"source"`
	Level       string      `json:"level"`
	Message     string      `json:"message"`
	Timestamp   interface{} `json:"timestamp"`
	Command     string      `json:"command,omitempty"`
	TaskID      string      `json:"taskId,omitempty"`
	WorkspaceID string      `json:"workspaceId,omitempty"`
}

// Backend scan statuses.
const (
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"
	ScanStatusCancelled = "cancelled"
)
