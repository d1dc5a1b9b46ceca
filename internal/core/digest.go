package core

// WeeklyDigest is the structured summary produced once per repository
// per orchestration run and reused for every client send in that run.
type WeeklyDigest struct {
	Summary          string   `json:"summary"`
	SecurityScore    int      `json:"securityScore"`
	CodeQualityScore int      `json:"codeQualityScore"`
	Improvements     []string `json:"improvements"`
}

// DigestResult is the aggregated outcome of one weekly summary run,
// surfaced in the invocation's result payload rather than thrown. A
// non-empty Reason means the whole run was skipped before any send.
type DigestResult struct {
	Reason         string        `json:"reason,omitempty"`
	RepositoryID   string        `json:"repositoryId"`
	RepositoryName string        `json:"repositoryName,omitempty"`
	TriggeredBy    string        `json:"triggeredBy,omitempty"`
	TotalClients   int           `json:"totalClients"`
	SentTo         int           `json:"sentTo"`
	SkippedCount   int           `json:"skipped"`
	SkippedEmails  []string      `json:"skippedEmails,omitempty"`
	Errors         []DigestError `json:"errorDetails,omitempty"`
	ManagerCC      string        `json:"managerCc,omitempty"`
}

// Skipped reports whether the run ended as a benign whole-run skip.
func (r *DigestResult) Skipped() bool { return r.Reason != "" }

// DigestError records one failed client send within a run.
type DigestError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// Skip reasons reported by the weekly orchestrator.
const (
	SkipReasonRepositoryNotFound = "repository_not_found"
	SkipReasonNoClients          = "no_clients"
	SkipReasonSummaryFailed      = "summary_generation_failed"
)
