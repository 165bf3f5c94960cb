// Package services holds the shared error taxonomy for external
// collaborators (TTS engine, AI providers, audio tools). Stage bridges wrap
// failures with a sentinel marker so the orchestration layer can classify
// them without knowing tool specifics.
package services
