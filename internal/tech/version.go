package tech

// Version constants for the library schema and engine.
const (
	// SchemaVersion is the technology-library document schema version.
	SchemaVersion = "1"

	// EngineVersion is the sanigraph engine version.
	EngineVersion = "0.1.0"
)
