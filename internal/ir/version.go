package ir

// Version constants for the graph schema and engine.
const (
	// GraphVersion is the graph declaration schema version.
	GraphVersion = "1"

	// EngineVersion is the REWIND engine version.
	EngineVersion = "0.1.0"
)
