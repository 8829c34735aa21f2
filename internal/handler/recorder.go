package handler

import (
	"context"
	"sync"

	"mockmate/internal/apperr"
)

// browserRecorder bridges speech capture that actually happens in the
// browser into the answer session's Recorder. The client posts either a
// capability failure before start or the final transcript on stop; this
// type just buffers them.
type browserRecorder struct {
	mu         sync.Mutex
	transcript string
	failure    string
}

// SetFailure records the client-reported capture failure, such as a
// denied microphone permission. An empty message clears it.
func (b *browserRecorder) SetFailure(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failure = msg
}

// SetTranscript stores the client-captured transcript.
func (b *browserRecorder) SetTranscript(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transcript = text
}

func (b *browserRecorder) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failure != "" {
		return apperr.Capability("%s", b.failure)
	}
	b.transcript = ""
	return nil
}

func (b *browserRecorder) Stop(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transcript, nil
}
