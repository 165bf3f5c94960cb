package textai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitChunksKeepsParagraphsTogether(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	chunks := splitChunks(text, 200)
	require.Equal(t, []string{text}, chunks)
}

func TestSplitChunksBreaksOnParagraphBoundaries(t *testing.T) {
	a := strings.Repeat("alpha ", 20)
	b := strings.Repeat("beta ", 20)
	chunks := splitChunks(strings.TrimSpace(a)+"\n\n"+strings.TrimSpace(b), 130)

	require.Len(t, chunks, 2)
	require.True(t, strings.HasPrefix(chunks[0], "alpha"))
	require.True(t, strings.HasPrefix(chunks[1], "beta"))
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 130)
	}
}

func TestSplitChunksSplitsOversizedParagraphOnWords(t *testing.T) {
	paragraph := strings.TrimSpace(strings.Repeat("word ", 100))
	chunks := splitChunks(paragraph, 120)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 120)
		require.False(t, strings.HasPrefix(chunk, " "))
		require.False(t, strings.HasSuffix(chunk, " "))
	}
	require.Equal(t, paragraph, strings.Join(chunks, " "))
}

func TestSplitChunksEmptyInput(t *testing.T) {
	require.Nil(t, splitChunks("", 100))
	require.Nil(t, splitChunks("  \n\n  ", 100))
}
