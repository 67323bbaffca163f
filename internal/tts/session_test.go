package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type memSink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string][]byte)}
}

func (m *memSink) WriteAudio(sheet, itemID string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sheet + "/" + itemID + ".wav"
	m.files[key] = data
	return key, nil
}

func (m *memSink) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	return data, ok
}

// replayTransport collects requests and, once want of them arrived,
// answers them from a separate goroutine using reply.
type replayTransport struct {
	want    int
	reply   func(reqs []Request) []Result
	deliver func(Result)
	emitErr error

	mu   sync.Mutex
	reqs []Request
	wg   sync.WaitGroup
	done chan struct{}
	err  error
}

func newReplayTransport(want int, reply func([]Request) []Result) *replayTransport {
	return &replayTransport{want: want, reply: reply, done: make(chan struct{})}
}

func (r *replayTransport) Emit(ctx context.Context, event string, payload any) error {
	if r.emitErr != nil {
		return r.emitErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, payload.(Request))
	if len(r.reqs) == r.want {
		reqs := append([]Request(nil), r.reqs...)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for _, res := range r.reply(reqs) {
				r.deliver(res)
			}
		}()
	}
	return nil
}

func (r *replayTransport) Done() <-chan struct{} { return r.done }

func (r *replayTransport) Err() error { return r.err }

func fastOptions() Options {
	return Options{
		Interval:     time.Millisecond,
		Timeout:      2 * time.Second,
		PollInterval: 5 * time.Millisecond,
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func audioFor(i int) []byte { return []byte(fmt.Sprintf("RIFF-audio-%d", i)) }

func encodedFor(i int) *string {
	return strPtr(base64.StdEncoding.EncodeToString(audioFor(i)))
}

func testJobs() []Job {
	return []Job{
		{Sheet: "Atika - Male", ItemID: "T-0001", Text: "এক"},
		{Sheet: "Atika - Male", ItemID: "T-0002", Text: "দুই"},
		{Sheet: "Atika - Female", ItemID: "T-0001", Text: "এক"},
	}
}

func TestSessionCorrelatesOutOfOrderResults(t *testing.T) {
	sink := newMemSink()
	session := NewSession(discard, sink, testJobs(), fastOptions())

	transport := newReplayTransport(3, func(reqs []Request) []Result {
		out := []Result{{Audio: encodedFor(99), Index: intPtr(99)}}
		for i := len(reqs) - 1; i >= 0; i-- {
			out = append(out, Result{Audio: encodedFor(reqs[i].Index), Index: intPtr(reqs[i].Index)})
		}
		return out
	})
	transport.deliver = session.HandleResult

	summary, err := session.Run(context.Background(), transport)
	transport.wg.Wait()
	require.NoError(t, err)
	require.False(t, summary.TimedOut)
	require.Equal(t, 3, summary.Submitted)
	require.Equal(t, 3, summary.Completed)
	require.Equal(t, 1, summary.Unknown)
	require.NotEmpty(t, summary.RunID)

	for i, key := range []string{"Atika - Male/T-0001.wav", "Atika - Male/T-0002.wav", "Atika - Female/T-0001.wav"} {
		data, ok := sink.get(key)
		require.True(t, ok, key)
		require.Equal(t, audioFor(i), data)
	}
	_, ok := sink.get("99")
	require.False(t, ok)
}

func TestSessionRequestPayloads(t *testing.T) {
	session := NewSession(discard, newMemSink(), testJobs(), Options{Speaker: 0})

	for i := range testJobs() {
		req := session.Request(i)
		require.Equal(t, i, req.Index)
		require.Equal(t, "vits", req.Model)
		require.Equal(t, 0, req.Speaker)
	}
	require.Equal(t, "male", session.Request(0).Gender)
	require.Equal(t, "female", session.Request(2).Gender)

	raw, err := json.Marshal(session.Request(1))
	require.NoError(t, err)
	require.JSONEq(t, `{"text":"দুই","model":"vits","gender":"male","index":1,"speaker":0}`, string(raw))
}

func TestSessionMissingAudioTimesOut(t *testing.T) {
	sink := newMemSink()
	opts := fastOptions()
	opts.Timeout = 100 * time.Millisecond
	session := NewSession(discard, sink, testJobs(), opts)

	transport := newReplayTransport(3, func(reqs []Request) []Result {
		return []Result{
			{Audio: encodedFor(0), Index: intPtr(0)},
			{Audio: nil, Index: intPtr(1)},
			{Audio: strPtr("%%% not base64"), Index: intPtr(2)},
		}
	})
	transport.deliver = session.HandleResult

	summary, err := session.Run(context.Background(), transport)
	transport.wg.Wait()
	require.NoError(t, err)
	require.True(t, summary.TimedOut)
	require.Equal(t, 3, summary.Submitted)
	require.Equal(t, 1, summary.Completed)
	require.Equal(t, 2, session.Summary().Failed)
}

func TestSessionHandleEventIgnoresOtherEvents(t *testing.T) {
	sink := newMemSink()
	session := NewSession(discard, sink, testJobs(), fastOptions())

	session.HandleEvent("progress", json.RawMessage(`{"index":0}`))
	session.HandleEvent(EventResult, json.RawMessage(`not json`))
	session.HandleEvent(EventResult, json.RawMessage(`{"index":0,"audio":"`+*encodedFor(0)+`"}`))

	summary := session.Summary()
	require.Equal(t, 1, summary.Completed)
	require.Equal(t, 0, summary.Unknown)
}

func TestSessionAbortsOnEmitFailure(t *testing.T) {
	session := NewSession(discard, newMemSink(), testJobs(), fastOptions())
	transport := newReplayTransport(3, nil)
	transport.emitErr = errors.New("broken pipe")

	summary, err := session.Run(context.Background(), transport)
	require.Error(t, err)
	require.Equal(t, 0, summary.Submitted)
}

func TestSessionAbortsWhenConnectionDrops(t *testing.T) {
	session := NewSession(discard, newMemSink(), testJobs(), fastOptions())
	transport := newReplayTransport(3, func([]Request) []Result { return nil })
	transport.deliver = session.HandleResult
	transport.err = errors.New("eof")
	close(transport.done)

	_, err := session.Run(context.Background(), transport)
	transport.wg.Wait()
	require.ErrorContains(t, err, "connection lost")
}

func TestStubClientRoundTrip(t *testing.T) {
	sink := newMemSink()
	session := NewSession(discard, sink, testJobs(), fastOptions())
	stub := NewStubClient(session.HandleEvent)

	summary, err := session.Run(context.Background(), stub)
	require.NoError(t, stub.Close())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Completed)

	data, ok := sink.get("Atika - Female/T-0001.wav")
	require.True(t, ok)
	require.Equal(t, "RIFF", string(data[:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
}
