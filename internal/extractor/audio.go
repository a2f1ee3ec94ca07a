package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// durationRe matches the Duration line ffmpeg prints while decoding.
var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2})\.(\d{2})`)

// languageRe matches whisper's auto-detected language report on stderr.
var languageRe = regexp.MustCompile(`auto-detected language:\s*(\w+)`)

// Audio transcribes speech. Non-PCM input is first transcoded to 16 kHz
// mono WAV with ffmpeg, then run through the whisper CLI.
type Audio struct {
	ffmpegPath  string
	whisperPath string
	modelPath   string
	runner      commandRunner
}

// NewAudio builds the audio extractor. modelPath selects the whisper model
// file (the model-size selector from configuration).
func NewAudio(ffmpegPath, whisperPath, modelPath string) *Audio {
	return &Audio{
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		modelPath:   modelPath,
		runner:      execRunner{},
	}
}

// Extract decodes the audio file at ref and returns the transcript with
// duration and detected-language metadata.
func (a *Audio) Extract(ctx context.Context, ref string) (*Result, error) {
	if _, err := os.Stat(ref); err != nil {
		return nil, extractionErr("audio", fmt.Sprintf("cannot read %s", ref), err)
	}

	tempDir, err := os.MkdirTemp("", "paranote-audio-*")
	if err != nil {
		return nil, extractionErr("audio", "create temp dir", err)
	}
	defer os.RemoveAll(tempDir)

	wavPath := filepath.Join(tempDir, "input.wav")
	transcode, err := a.runner.Run(ctx, a.ffmpegPath,
		"-y", "-i", ref,
		"-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le",
		wavPath,
	)
	if err != nil {
		return nil, extractionErr("audio", "ffmpeg transcode failed", err)
	}

	outPrefix := filepath.Join(tempDir, "transcript")
	transcribe, err := a.runner.Run(ctx, a.whisperPath,
		"-m", a.modelPath,
		"-f", wavPath,
		"-l", "auto",
		"-otxt", "-of", outPrefix,
	)
	if err != nil {
		return nil, extractionErr("audio", "whisper transcription failed", err)
	}

	raw, err := os.ReadFile(outPrefix + ".txt")
	if err != nil {
		return nil, extractionErr("audio", "read transcript output", err)
	}
	transcript := strings.TrimSpace(string(raw))
	if transcript == "" {
		return nil, extractionErr("audio", "empty transcript", nil)
	}

	metadata := map[string]any{
		"model":      filepath.Base(a.modelPath),
		"word_count": len(strings.Fields(transcript)),
	}
	if seconds, ok := parseFFmpegDuration(transcode.Stderr); ok {
		metadata["duration_seconds"] = seconds
	}
	if m := languageRe.FindStringSubmatch(transcribe.Stderr); m != nil {
		metadata["detected_language"] = m[1]
	}

	return &Result{Text: transcript, Metadata: metadata}, nil
}

func parseFFmpegDuration(stderr string) (float64, bool) {
	m := durationRe.FindStringSubmatch(stderr)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	centis, _ := strconv.Atoi(m[4])
	return float64(hours*3600+minutes*60+seconds) + float64(centis)/100, true
}
