// Package audio assembles synthesized chunk files into the final audiobook
// with ffmpeg: duration probing, chapter metadata, concat muxing, optional
// denoising, and bilingual interleave ordering.
package audio
