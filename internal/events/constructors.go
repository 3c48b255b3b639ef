package events

import (
	"time"

	"github.com/google/uuid"
)

// Agent names used on events
const (
	AgentOrchestrator = "Orchestrator"
	AgentAuditor      = "Auditor_Agent"
	AgentFixer        = "Fixer_Agent"
	AgentJudge        = "Judge_Agent"
	AgentSystem       = "System"
)

// ModelNone is recorded when no model produced the event
const ModelNone = "N/A"

// NewSimpleEvent creates a new Event with no structured data.
func NewSimpleEvent(eventType EventType, runID, file, agent string, severity EventSeverity, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		RunID:     runID,
		Type:      eventType,
		Timestamp: time.Now(),
		File:      file,
		Agent:     agent,
		Model:     ModelNone,
		Severity:  severity,
		Status:    statusFor(severity),
		Message:   message,
		Data:      make(map[string]interface{}),
	}
}

// NewDataEvent creates a new Event carrying type-safe structured data.
func NewDataEvent(eventType EventType, runID, file, agent string, severity EventSeverity, message string, data interface{}) (*Event, error) {
	event := NewSimpleEvent(eventType, runID, file, agent, severity, message)
	if err := event.SetData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewPassStartedEvent creates a pass_started event.
func NewPassStartedEvent(runID, file string, data PassData) (*Event, error) {
	return NewDataEvent(EventTypePassStarted, runID, file, AgentOrchestrator, SeverityInfo,
		"pass started", data)
}

// NewDiagnosisEvent creates a diagnosis_completed event.
func NewDiagnosisEvent(runID, file, message string, data DiagnosisData) (*Event, error) {
	event, err := NewDataEvent(EventTypeDiagnosisCompleted, runID, file, AgentAuditor, SeverityInfo, message, data)
	if err != nil {
		return nil, err
	}
	event.Action = ActionAnalysis
	return event, nil
}

// NewRemediationEvent creates a remediation_completed event.
func NewRemediationEvent(runID, file, message string, data RemediationData) (*Event, error) {
	event, err := NewDataEvent(EventTypeRemediationCompleted, runID, file, AgentFixer, SeverityInfo, message, data)
	if err != nil {
		return nil, err
	}
	event.Action = ActionFix
	return event, nil
}

// NewVerificationEvent creates a verification_completed event.
func NewVerificationEvent(runID, file, message string, data VerificationData) (*Event, error) {
	severity := SeverityInfo
	if data.Decision != "ACCEPT" {
		severity = SeverityWarning
	}
	event, err := NewDataEvent(EventTypeVerificationCompleted, runID, file, AgentJudge, severity, message, data)
	if err != nil {
		return nil, err
	}
	event.Action = ActionDebug
	if severity == SeverityWarning {
		event.Status = StatusPartialSuccess
	}
	return event, nil
}

// NewFileCompletedEvent creates a file_completed event.
func NewFileCompletedEvent(runID, file, message string, data FileCompletedData) (*Event, error) {
	severity := SeverityInfo
	status := StatusSuccess
	if data.Status != "VALIDATED" {
		severity = SeverityWarning
		status = StatusPartialSuccess
	}
	event, err := NewDataEvent(EventTypeFileCompleted, runID, file, AgentOrchestrator, severity, message, data)
	if err != nil {
		return nil, err
	}
	event.Action = ActionAnalysis
	event.Status = status
	return event, nil
}

// NewAICallEvent creates an ai_call event.
func NewAICallEvent(runID, file, agent, model string, data AICallData) (*Event, error) {
	severity := SeverityInfo
	message := data.Operation + " call completed"
	if data.Error != "" {
		severity = SeverityError
		message = data.Operation + " call failed"
	}
	event, err := NewDataEvent(EventTypeAICall, runID, file, agent, severity, message, data)
	if err != nil {
		return nil, err
	}
	event.Model = model
	return event, nil
}

// NewRunEvent creates a batch-level event.
func NewRunEvent(eventType EventType, runID, message string, data RunData) (*Event, error) {
	severity := SeverityInfo
	if eventType == EventTypeRunInterrupted {
		severity = SeverityWarning
	}
	event, err := NewDataEvent(eventType, runID, "", AgentSystem, severity, message, data)
	if err != nil {
		return nil, err
	}
	if eventType == EventTypeRunInterrupted {
		event.Status = StatusFailure
	} else if data.Total > 0 && data.Validated < data.Total {
		event.Status = StatusPartialSuccess
	}
	return event, nil
}

func statusFor(severity EventSeverity) Status {
	switch severity {
	case SeverityError:
		return StatusFailure
	case SeverityWarning:
		return StatusPartialSuccess
	default:
		return StatusSuccess
	}
}
