package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SearchStartedData contains data for SearchStarted events
type SearchStartedData struct {
	RunID           string `json:"run_id"`
	TargetVertices  int    `json:"target_vertices"`
	PatternVertices int    `json:"pattern_vertices"`
	RegisterWidth   int    `json:"register_width"`
	Backend         string `json:"backend"`
}

// EventType returns the event type for SearchStartedData
func (d *SearchStartedData) EventType() EventType {
	return SearchStarted
}

// SearchProgressData contains data for SearchProgress events
type SearchProgressData struct {
	RunID      string  `json:"run_id"`
	Round      int     `json:"round"`
	Iterations int     `json:"iterations"`
	Shots      int     `json:"shots"`
	TotalShots int     `json:"total_shots"`
	Confidence float64 `json:"confidence"`
	State      string  `json:"state"`
}

// EventType returns the event type for SearchProgressData
func (d *SearchProgressData) EventType() EventType {
	return SearchProgress
}

// SearchCompletedData contains data for SearchCompleted events
type SearchCompletedData struct {
	RunID      string  `json:"run_id"`
	Status     string  `json:"status"` // "found" or "not_found"
	Mapping    []int   `json:"mapping,omitempty"`
	Confidence float64 `json:"confidence"`
	Rounds     int     `json:"rounds"`
	Shots      int     `json:"shots"`
	DurationMS float64 `json:"duration_ms"`
}

// EventType returns the event type for SearchCompletedData
func (d *SearchCompletedData) EventType() EventType {
	return SearchCompleted
}

// SearchFailedData contains data for SearchFailed events
type SearchFailedData struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

// EventType returns the event type for SearchFailedData
func (d *SearchFailedData) EventType() EventType {
	return SearchFailed
}

// CacheMaintenanceData contains data for CacheMaintenance events
type CacheMaintenanceData struct {
	Pruned  int64 `json:"pruned"`
	Entries int64 `json:"entries"`
}

// EventType returns the event type for CacheMaintenanceData
func (d *CacheMaintenanceData) EventType() EventType {
	return CacheMaintenance
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	// Marshal the data separately
	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Unmarshal data based on event type
	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case SearchStarted:
			eventData = &SearchStartedData{}
		case SearchProgress:
			eventData = &SearchProgressData{}
		case SearchCompleted:
			eventData = &SearchCompletedData{}
		case SearchFailed:
			eventData = &SearchFailedData{}
		case CacheMaintenance:
			eventData = &CacheMaintenanceData{}
		case BackupCompleted:
			eventData = &BackupCompletedData{}
		case SystemStatusChanged:
			eventData = &SystemStatusChangedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		default:
			// For unknown types, use raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			eventData = &GenericEventData{Type: aux.Type, Data: rawData}
		}

		if err := json.Unmarshal(aux.Data, eventData); err != nil {
			return err
		}
		e.Data = eventData
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
