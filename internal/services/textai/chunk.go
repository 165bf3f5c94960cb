package textai

import "strings"

// defaultChunkSize keeps each request well inside typical model context
// windows while leaving room for the reply.
const defaultChunkSize = 6000

// splitChunks divides text into chunks of at most size bytes, breaking on
// paragraph boundaries where possible. Paragraphs longer than size are split
// mid-paragraph rather than dropped.
func splitChunks(text string, size int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	paragraphs := strings.Split(trimmed, "\n\n")
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		for len(paragraph) > size {
			flush()
			cut := strings.LastIndexByte(paragraph[:size], ' ')
			if cut <= 0 {
				cut = size
			}
			chunks = append(chunks, strings.TrimSpace(paragraph[:cut]))
			paragraph = strings.TrimSpace(paragraph[cut:])
		}
		if current.Len() > 0 && current.Len()+len(paragraph)+2 > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush()
	return chunks
}
