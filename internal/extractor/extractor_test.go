package extractor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"actionfigure/internal/domain"
	"actionfigure/internal/providers/vision"
)

// chanStream replays fragments sent on ch until it is closed or ctx ends.
type chanStream struct {
	ctx        context.Context
	ch         chan string
	current    string
	err        error
	closed     atomic.Bool
	inNext     atomic.Bool
	overlapped atomic.Bool
}

func (s *chanStream) Next() bool {
	s.inNext.Store(true)
	defer s.inNext.Store(false)
	select {
	case frag, ok := <-s.ch:
		if !ok {
			return false
		}
		s.current = frag
		return true
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		return false
	}
}

func (s *chanStream) Fragment() string { return s.current }
func (s *chanStream) Err() error       { return s.err }
func (s *chanStream) Close() error {
	if s.inNext.Load() {
		s.overlapped.Store(true)
	}
	s.closed.Store(true)
	return nil
}

type stubSource struct {
	fragments []string
	hold      bool
	err       error
	streamErr error
	calls     int
	lastReq   vision.Request
	stream    *chanStream
}

func (s *stubSource) Stream(ctx context.Context, req vision.Request) (vision.FragmentStream, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan string, len(s.fragments))
	for _, f := range s.fragments {
		ch <- f
	}
	if !s.hold {
		close(ch)
	}
	s.stream = &chanStream{ctx: ctx, ch: ch}
	if s.streamErr != nil {
		s.stream.err = s.streamErr
	}
	return s.stream, nil
}

func validAttachment() domain.Attachment {
	return domain.NewAttachment("me.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff})
}

func newExtractor(t *testing.T, src Source, silence time.Duration) *Extractor {
	t.Helper()
	ext, err := New(Options{Source: src, Timeout: time.Second, Silence: silence})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return ext
}

func TestExtractConcatenatesFragments(t *testing.T) {
	src := &stubSource{fragments: []string{"- Gender: Ma", "le\n", "- Has Glasses: Yes\n", "- Unknown: x\n"}}
	ext := newExtractor(t, src, 500*time.Millisecond)

	var seen []string
	res, err := ext.Extract(context.Background(), validAttachment(), "", func(f string) { seen = append(seen, f) })
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if res.Text != "- Gender: Male\n- Has Glasses: Yes\n- Unknown: x\n" {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if len(seen) != 4 || seen[0] != "- Gender: Ma" {
		t.Fatalf("fragments not delivered in order: %q", seen)
	}
	if res.Traits.Get("Gender") != "Male" || res.Traits.Get("Has Glasses") != "Yes" {
		t.Fatalf("unexpected traits %v", res.Traits.Map())
	}
	if _, ok := res.Traits.Map()["Unknown"]; ok {
		t.Fatal("unknown trait should be dropped")
	}
	if !src.stream.closed.Load() {
		t.Fatal("stream not closed")
	}
	if !strings.Contains(src.lastReq.Instruction, "Has Freckles") {
		t.Fatalf("default instruction should list the vocabulary, got %q", src.lastReq.Instruction)
	}
}

func TestExtractCustomInstruction(t *testing.T) {
	src := &stubSource{fragments: []string{"ok"}}
	ext := newExtractor(t, src, 500*time.Millisecond)
	if _, err := ext.Extract(context.Background(), validAttachment(), "  make it heroic ", nil); err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if src.lastReq.Instruction != "make it heroic" {
		t.Fatalf("instruction = %q", src.lastReq.Instruction)
	}
}

func TestExtractEmptyResponse(t *testing.T) {
	ext := newExtractor(t, &stubSource{}, 500*time.Millisecond)
	_, err := ext.Extract(context.Background(), validAttachment(), "", nil)
	if !errors.Is(err, domain.ErrEmptyResponse) {
		t.Fatalf("expected empty response, got %v", err)
	}
}

func TestExtractInvalidAttachmentSkipsProvider(t *testing.T) {
	src := &stubSource{fragments: []string{"x"}}
	ext := newExtractor(t, src, 500*time.Millisecond)
	big := domain.NewAttachment("big.png", "image/png", make([]byte, domain.MaxAttachmentBytes+1))
	_, err := ext.Extract(context.Background(), big, "", nil)
	if !errors.Is(err, domain.ErrInvalidAttachment) {
		t.Fatalf("expected invalid attachment, got %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("provider should not be called, got %d calls", src.calls)
	}
}

func TestExtractSilenceWindow(t *testing.T) {
	src := &stubSource{fragments: []string{"- Gender: "}, hold: true}
	ext := newExtractor(t, src, 30*time.Millisecond)
	start := time.Now()
	_, err := ext.Extract(context.Background(), validAttachment(), "", nil)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Fatal("silence window did not fire before the ceiling")
	}
	if !src.stream.closed.Load() {
		t.Fatal("stream not closed")
	}
	if src.stream.overlapped.Load() {
		t.Fatal("stream closed while Next was still running")
	}
}

// tickingSource emits a fragment every interval until ctx ends.
type tickingSource struct {
	interval time.Duration
}

func (s *tickingSource) Stream(ctx context.Context, req vision.Request) (vision.FragmentStream, error) {
	ch := make(chan string)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case ch <- "x":
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return &chanStream{ctx: ctx, ch: ch}, nil
}

func TestExtractCeiling(t *testing.T) {
	ext, err := New(Options{Source: &tickingSource{interval: 10 * time.Millisecond}, Timeout: 150 * time.Millisecond, Silence: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	var fragments atomic.Int32
	start := time.Now()
	_, err = ext.Extract(context.Background(), validAttachment(), "", func(string) { fragments.Add(1) })
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "analysis exceeded") {
		t.Fatalf("expected the ceiling to fire, got %q", err.Error())
	}
	if elapsed < 150*time.Millisecond || elapsed > time.Second {
		t.Fatalf("elapsed = %s", elapsed)
	}
	if fragments.Load() < 2 {
		t.Fatalf("stream should keep delivering until the ceiling, got %d fragments", fragments.Load())
	}
}

func TestExtractCancelled(t *testing.T) {
	src := &stubSource{hold: true}
	ext := newExtractor(t, src, 500*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := ext.Extract(ctx, validAttachment(), "", nil)
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestExtractProviderFailure(t *testing.T) {
	rejected := domain.Errorf(domain.KindProviderRejected, "vision: quota exceeded")
	ext := newExtractor(t, &stubSource{streamErr: rejected}, 500*time.Millisecond)
	_, err := ext.Extract(context.Background(), validAttachment(), "", nil)
	if domain.KindOf(err) != domain.KindProviderRejected {
		t.Fatalf("expected provider rejected, got %v", err)
	}

	missing := domain.Errorf(domain.KindMissingCredentials, "vision: api key is required")
	ext = newExtractor(t, &stubSource{err: missing}, 500*time.Millisecond)
	_, err = ext.Extract(context.Background(), validAttachment(), "", nil)
	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}

func TestNewRequiresSource(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without source")
	}
}
