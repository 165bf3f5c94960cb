// Package video renders an audiobook into a video file by pairing the audio
// track with a static cover image, for platforms that only accept video
// uploads.
package video
