package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTitleID is the standardized structured logging key for tracked title identifiers.
	FieldTitleID = "title_id"
	// FieldSourceID is the standardized structured logging key for source-site identifiers.
	FieldSourceID = "source_id"
	// FieldRunID is the standardized structured logging key for scrape cycle run identifiers.
	FieldRunID = "run_id"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint gives operators a remediation hint next to an error.
	FieldErrorHint = "error_hint"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)
