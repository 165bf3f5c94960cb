// Package textai talks to an OpenAI-compatible chat completion endpoint and
// provides the cleanup and translation stage executors built on it. Text is
// processed chunk by chunk so that progress is reportable and a mid-run
// failure loses at most one chunk.
package textai
