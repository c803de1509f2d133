package protocol

import (
	"encoding/json"

	"github.com/cgast/questcheck/pkg/attempt"
	"github.com/cgast/questcheck/pkg/audit"
	"github.com/cgast/questcheck/pkg/mission"
)

// JSON-RPC 2.0 message types for the stdio grading interface.

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"` // string or int; nil for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application-specific error codes.
const (
	CodeMissionNotFound   = -32000
	CodeInvalidContent    = -32001
	CodeInvalidSubmission = -32002
	CodeStoreDisabled     = -32003
)

// Method names.
const (
	MethodCatalogInfo     = "catalog.info"
	MethodMissionsList    = "missions.list"
	MethodMissionsGet     = "missions.get"
	MethodMissionValidate = "mission.validate"
	MethodAttemptsList    = "attempts.list"
	MethodPathNext        = "path.next"
)

// NewResponse creates a successful response.
func NewResponse(id any, result any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id any, code int, message string, data any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// CatalogInfo is the result of "catalog.info".
type CatalogInfo struct {
	Version  string `json:"version"`
	Source   string `json:"source"`
	Missions int    `json:"missions"`
}

// MissionsListParams holds parameters for "missions.list".
type MissionsListParams struct {
	Difficulty string `json:"difficulty,omitempty"`
}

// MissionSummary describes a mission in list responses.
type MissionSummary struct {
	ID               string             `json:"id"`
	Order            int                `json:"order"`
	Title            string             `json:"title"`
	Difficulty       mission.Difficulty `json:"difficulty"`
	EstimatedMinutes int                `json:"estimated_minutes"`
	Prerequisites    []string           `json:"prerequisites"`
	Checkpoints      int                `json:"checkpoints"`
	XP               int                `json:"xp"`
}

// Summarize builds the list entry for a mission.
func Summarize(m mission.Mission) MissionSummary {
	prereqs := m.Prerequisites
	if prereqs == nil {
		prereqs = []string{}
	}
	return MissionSummary{
		ID:               m.ID,
		Order:            m.Order,
		Title:            m.Title,
		Difficulty:       m.Difficulty,
		EstimatedMinutes: m.EstimatedMinutes,
		Prerequisites:    prereqs,
		Checkpoints:      len(m.Checkpoints),
		XP:               m.Reward.XP,
	}
}

// MissionParams holds parameters for "missions.get".
type MissionParams struct {
	ID string `json:"id"`
}

// ValidateParams holds parameters for "mission.validate".
type ValidateParams struct {
	MissionID string `json:"mission_id"`
	Learner   string `json:"learner,omitempty"`
	Source    string `json:"source"`
}

// ValidateResult is the result of "mission.validate".
type ValidateResult struct {
	AttemptID string                 `json:"attempt_id,omitempty"`
	Cached    bool                   `json:"cached"`
	Result    audit.ValidationResult `json:"result"`
	Unlocked  []string               `json:"unlocked,omitempty"`
}

// AttemptsListParams holds parameters for "attempts.list".
type AttemptsListParams struct {
	Learner    string `json:"learner,omitempty"`
	MissionID  string `json:"mission_id,omitempty"`
	PassedOnly bool   `json:"passed_only,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Filter converts the params into a store filter.
func (p AttemptsListParams) Filter() attempt.Filter {
	return attempt.Filter{
		Learner:    p.Learner,
		MissionID:  p.MissionID,
		PassedOnly: p.PassedOnly,
		Limit:      p.Limit,
	}
}

// PathParams holds parameters for "path.next".
type PathParams struct {
	Learner string `json:"learner"`
}

// PathResult describes a learner's position in the mission path.
type PathResult struct {
	Completed []string        `json:"completed"`
	Unlocked  []string        `json:"unlocked"`
	Next      *MissionSummary `json:"next,omitempty"`
}
