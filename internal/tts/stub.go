package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	stubSampleRate  = 16000
	stubMsPerRune   = 60
	stubMinDuration = 200
	stubMaxDuration = 10000
)

// StubClient simulates the synthesis service for dry runs. Every request
// is answered asynchronously with silent audio whose length follows the
// text length.
type StubClient struct {
	handler EventHandler

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// NewStubClient constructs StubClient delivering results to handler.
func NewStubClient(handler EventHandler) *StubClient {
	return &StubClient{
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Emit answers text_transmit requests with a silent WAV.
func (s *StubClient) Emit(ctx context.Context, event string, payload any) error {
	if event != EventTextTransmit {
		return nil
	}
	select {
	case <-s.done:
		return fmt.Errorf("emit %s: stub closed", event)
	default:
	}

	req, ok := payload.(Request)
	if !ok {
		return fmt.Errorf("stub: unexpected payload %T", payload)
	}

	ms := utf8.RuneCountInString(req.Text) * stubMsPerRune
	ms = max(stubMinDuration, min(ms, stubMaxDuration))
	clip, err := SilentWAV(stubSampleRate, ms)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(clip)
	index := req.Index
	data, err := json.Marshal(Result{Audio: &encoded, Index: &index})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.handler(EventResult, data)
	}()
	return nil
}

// Done is closed by Close.
func (s *StubClient) Done() <-chan struct{} {
	return s.done
}

// Err always reports nil; the stub cannot fail.
func (s *StubClient) Err() error {
	return nil
}

// Close waits for in-flight results to be delivered.
func (s *StubClient) Close() error {
	s.wg.Wait()
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// SilentWAV encodes durationMs of 16-bit mono silence.
func SilentWAV(sampleRate, durationMs int) ([]byte, error) {
	out := &writeSeeker{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, sampleRate*durationMs/1000),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finish wav: %w", err)
	}
	return out.Bytes(), nil
}
