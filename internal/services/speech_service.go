package services

import (
	"context"
	"strings"

	"arc-backend/internal/logger"
	"arc-backend/internal/tts"

	"github.com/rs/zerolog"
)

// VoiceOfflineCaption replaces audio whenever synthesis fails.
const VoiceOfflineCaption = "Voice core offline"

// SpeechResult carries either audio or a caption, never both.
type SpeechResult struct {
	Audio   *tts.Audio
	Caption string
}

// SpeechService wraps a Synthesizer so failures degrade to a caption.
type SpeechService struct {
	synth tts.Synthesizer
	rec   Recorder
	log   zerolog.Logger
}

// NewSpeechService creates a SpeechService. synth may be nil, in which case every
// request gets the offline caption.
func NewSpeechService(synth tts.Synthesizer, rec Recorder) *SpeechService {
	return &SpeechService{synth: synth, rec: recorderOrNop(rec), log: logger.Component("SpeechService")}
}

// Speak returns ErrEmptyMessage for blank text. Synthesis failures are not errors.
func (s *SpeechService) Speak(ctx context.Context, text string) (*SpeechResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if s.synth == nil {
		s.rec.IncSpeech("offline")
		return &SpeechResult{Caption: VoiceOfflineCaption}, nil
	}

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.rec.IncSpeech("offline")
		s.log.Warn().Err(err).Msg("speech synthesis failed")
		return &SpeechResult{Caption: VoiceOfflineCaption}, nil
	}
	s.rec.IncSpeech("ok")
	return &SpeechResult{Audio: audio}, nil
}
