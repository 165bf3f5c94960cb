// Package tts drives the external speech synthesis helper as a subprocess.
// The helper emits JSON lines on stdout (one event per line) which are
// decoded into progress envelopes and checkpoint updates; synthesized chunk
// files land in the session directory until assembly picks them up.
package tts
