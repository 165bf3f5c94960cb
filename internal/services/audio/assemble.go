package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// writeConcatList writes the ffmpeg concat demuxer input file listing every
// chunk in playback order.
func writeConcatList(path string, chunks []ChunkInfo) error {
	var builder strings.Builder
	for _, chunk := range chunks {
		builder.WriteString("file '")
		builder.WriteString(strings.ReplaceAll(chunk.Path, "'", `'\''`))
		builder.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(builder.String()), 0o644)
}

// Chapter is one chapter marker in the assembled audiobook.
type Chapter struct {
	Title string
	Start time.Duration
	End   time.Duration
}

// BuildChapters derives chapter markers from chunk durations, one chapter per
// chunk. Titles fall back to "Chapter N" when none are supplied.
func BuildChapters(chunks []ChunkInfo, titles []string) []Chapter {
	chapters := make([]Chapter, 0, len(chunks))
	var offset time.Duration
	for i, chunk := range chunks {
		title := fmt.Sprintf("Chapter %d", i+1)
		if i < len(titles) && strings.TrimSpace(titles[i]) != "" {
			title = titles[i]
		}
		chapters = append(chapters, Chapter{
			Title: title,
			Start: offset,
			End:   offset + chunk.Duration,
		})
		offset += chunk.Duration
	}
	return chapters
}

// writeChapterMetadata writes an FFMETADATA1 file with chapter markers for
// the m4b container.
func writeChapterMetadata(path, bookTitle string, chapters []Chapter) error {
	var builder strings.Builder
	builder.WriteString(";FFMETADATA1\n")
	if bookTitle != "" {
		builder.WriteString("title=" + escapeMetadata(bookTitle) + "\n")
	}
	for _, chapter := range chapters {
		builder.WriteString("\n[CHAPTER]\nTIMEBASE=1/1000\n")
		fmt.Fprintf(&builder, "START=%d\n", chapter.Start.Milliseconds())
		fmt.Fprintf(&builder, "END=%d\n", chapter.End.Milliseconds())
		builder.WriteString("title=" + escapeMetadata(chapter.Title) + "\n")
	}
	return os.WriteFile(path, []byte(builder.String()), 0o644)
}

func escapeMetadata(value string) string {
	replacer := strings.NewReplacer(
		"=", `\=`,
		";", `\;`,
		"#", `\#`,
		"\\", `\\`,
		"\n", `\`+"\n",
	)
	return replacer.Replace(value)
}

// concatArgs builds the ffmpeg invocation for joining chunks into the output
// container. Lossy formats re-encode; wav copies samples.
func concatArgs(listPath, metadataPath, outputPath, format string, denoise bool) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
	}
	if metadataPath != "" {
		args = append(args, "-i", metadataPath, "-map_metadata", "1", "-map_chapters", "1")
	}
	if denoise {
		args = append(args, "-af", "afftdn=nf=-25")
	}
	switch format {
	case "m4b":
		args = append(args, "-c:a", "aac", "-b:a", "128k", "-movflags", "+faststart", "-f", "mp4")
	case "mp3":
		args = append(args, "-c:a", "libmp3lame", "-q:a", "2")
	case "flac":
		args = append(args, "-c:a", "flac")
	default:
		args = append(args, "-c:a", "pcm_s16le")
	}
	args = append(args, "-progress", "pipe:1", outputPath)
	return args
}

// listChunkFiles returns the sorted audio chunk files inside a session
// directory.
func listChunkFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".wav", ".flac", ".mp3", ".m4a", ".ogg":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}
