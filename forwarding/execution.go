package forwarding

import (
	"encoding/json"
	"time"
)

/* Execution is the audit record of one rule attempted for one event
 * Written once and never updated
 */
type Execution struct {
	ID                  string               `json:"id"`
	RuleID              string               `json:"ruleId"`
	EventID             string               `json:"eventId"`
	DestinationID       string               `json:"destinationId"`
	OriginalPayload     json.RawMessage      `json:"originalPayload"`
	TransformedPayload  json.RawMessage      `json:"transformedPayload,omitempty"`
	DestinationResponse *DestinationResponse `json:"destinationResponse,omitempty"`
	Success             bool                 `json:"success"`
	Error               string               `json:"error,omitempty"`
	ExecutionTimeMs     int64                `json:"executionTimeMs"`
	CreatedAt           time.Time            `json:"createdAt"`
}

// Result is what one orchestration run returns
type Result struct {
	Success    bool        `json:"success"`
	Executions []Execution `json:"executions"`
}
