// Package whisper provides server-side clip transcription backed by the
// whisper.cpp CGO bindings. It backs the manual-capture fallback path: when
// a browser has no SpeechRecognition support it records the trainee's
// response as a PCM clip and uploads it, and the server transcribes it here
// before grading.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	defaultLanguage = "en"
)

// Option is a functional option for configuring a [Transcriber].
type Option func(*Transcriber)

// WithLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithChannels sets the channel count of submitted PCM clips. Defaults to 1.
func WithChannels(channels int) Option {
	return func(t *Transcriber) { t.channels = channels }
}

// Transcriber runs one-shot whisper.cpp inference over complete audio clips.
// The model is loaded once at construction and shared across calls; each
// Transcribe call creates its own whisper context, so concurrent calls are
// safe.
type Transcriber struct {
	model    whisperlib.Model
	language string
	channels int
}

// New creates a Transcriber that loads the whisper.cpp model from the given
// file path. The caller must call Close when the transcriber is no longer
// needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{
		model:    model,
		language: defaultLanguage,
		channels: 1,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the whisper model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Transcribe runs inference over a complete clip of 16-bit little-endian
// signed PCM at 16 kHz and returns the recognized text. An empty clip
// returns an empty string without invoking the model.
func (t *Transcriber) Transcribe(pcm []byte) (string, error) {
	samples := pcmToFloat32Mono(pcm, t.channels)
	if len(samples) == 0 {
		return "", nil
	}

	// Each whisper context is single-use; the model itself is shareable.
	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("whisper: set language %q: %w", t.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// pcmToFloat32Mono down-mixes multi-channel 16-bit signed little-endian PCM
// to mono float32 samples normalised to [-1.0, 1.0]. Any trailing partial
// frame is silently ignored.
func pcmToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
