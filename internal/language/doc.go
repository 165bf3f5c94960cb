// Package language normalizes user-supplied language codes for translation
// and synthesis jobs and renders human-readable names for job titles.
package language
