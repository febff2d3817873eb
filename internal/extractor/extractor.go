// Package extractor turns a photo into a trait description by streaming a
// vision-model analysis.
package extractor

import (
	"context"
	"errors"
	"strings"
	"time"

	"actionfigure/internal/domain"
	"actionfigure/internal/infra"
	"actionfigure/internal/providers/vision"
	"actionfigure/internal/traits"
)

const (
	DefaultTimeout = 60 * time.Second
	DefaultSilence = 20 * time.Second
)

// Source opens a vision fragment stream.
type Source interface {
	Stream(ctx context.Context, req vision.Request) (vision.FragmentStream, error)
}

type Options struct {
	Source      Source
	Vocabulary  *traits.Vocabulary
	Instruction string
	Timeout     time.Duration
	Silence     time.Duration
	Logger      *infra.Logger
}

// Extractor is the TraitExtractor stage.
type Extractor struct {
	source      Source
	vocab       *traits.Vocabulary
	instruction string
	timeout     time.Duration
	silence     time.Duration
	logger      *infra.Logger
}

// Result is a finished analysis.
type Result struct {
	Text   string
	Traits traits.Set
}

func New(opts Options) (*Extractor, error) {
	if opts.Source == nil {
		return nil, errors.New("extractor: source is required")
	}
	vocab := opts.Vocabulary
	if vocab == nil {
		vocab = traits.DefaultVocabulary()
	}
	instruction := strings.TrimSpace(opts.Instruction)
	if instruction == "" {
		instruction = vocab.Instruction()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	silence := opts.Silence
	if silence <= 0 || silence > timeout {
		silence = min(DefaultSilence, timeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Extractor{
		source:      opts.Source,
		vocab:       vocab,
		instruction: instruction,
		timeout:     timeout,
		silence:     silence,
		logger:      logger,
	}, nil
}

// Vocabulary returns the vocabulary used to parse results.
func (e *Extractor) Vocabulary() *traits.Vocabulary {
	return e.vocab
}

// DefaultInstruction returns the instruction used when a call does not supply one.
func (e *Extractor) DefaultInstruction() string {
	return e.instruction
}

// Extract streams the analysis of att. Each fragment is passed to onFragment
// (which may be nil) in arrival order before Extract returns. An empty
// instruction selects the default.
//
// Cancelling ctx yields a KindCancelled error. The call fails with KindTimeout
// when no fragment arrives within the silence window or the whole analysis
// exceeds the ceiling.
func (e *Extractor) Extract(ctx context.Context, att domain.Attachment, instruction string, onFragment func(string)) (Result, error) {
	if err := att.Validate(); err != nil {
		return Result{}, err
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = e.instruction
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stream, err := e.source.Stream(runCtx, vision.Request{Instruction: instruction, Attachment: att})
	if err != nil {
		return Result{}, e.classify(ctx, runCtx, err)
	}
	defer stream.Close()

	fragments := make(chan string)
	done := make(chan error, 1)
	go func() {
		defer close(fragments)
		for stream.Next() {
			select {
			case fragments <- stream.Fragment():
			case <-runCtx.Done():
				done <- runCtx.Err()
				return
			}
		}
		done <- stream.Err()
	}()

	// stop ends the pump and waits for it so Close never overlaps Next.
	stop := func() {
		cancel()
		for range fragments {
		}
		<-done
	}

	silence := time.NewTimer(e.silence)
	defer silence.Stop()

	var sb strings.Builder
	count := 0
	for {
		select {
		case frag, ok := <-fragments:
			if !ok {
				if err := <-done; err != nil {
					return Result{}, e.classify(ctx, runCtx, err)
				}
				if count == 0 || strings.TrimSpace(sb.String()) == "" {
					return Result{}, domain.Errorf(domain.KindEmptyResponse, "analysis returned no content")
				}
				text := sb.String()
				e.logger.Debug().Int("fragments", count).Int("chars", len(text)).Msg("extractor: analysis complete")
				return Result{Text: text, Traits: traits.Parse(text, e.vocab)}, nil
			}
			count++
			sb.WriteString(frag)
			if onFragment != nil {
				onFragment(frag)
			}
			if !silence.Stop() {
				select {
				case <-silence.C:
				default:
				}
			}
			silence.Reset(e.silence)
		case <-silence.C:
			stop()
			return Result{}, domain.Errorf(domain.KindTimeout, "analysis stalled: no data for %s", e.silence)
		case <-runCtx.Done():
			err := e.classify(ctx, runCtx, runCtx.Err())
			stop()
			return Result{}, err
		}
	}
}

func (e *Extractor) classify(parent, runCtx context.Context, err error) error {
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return domain.Wrap(domain.KindCancelled, "analysis cancelled", err)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return domain.Wrap(domain.KindTimeout, "analysis exceeded "+e.timeout.String(), err)
	}
	return domain.Classify(parent, err, "analysis failed")
}
