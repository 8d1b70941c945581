package ir

// Version constants for the definition format and the engine.
const (
	// DefinitionVersion is the site definition schema version.
	DefinitionVersion = "1"

	// EngineVersion is the kiln engine version.
	EngineVersion = "0.1.0"
)
