// Package pipeline turns one inbound photo into a sequence of chat messages:
// describe the image, classify the transcript, then branch on the category.
//
// Every stage feeds the next, so calls for one event are strictly sequential.
// The first failing stage aborts the run and the chat receives a failure notice;
// messages already sent stay sent.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ll-buddy/api/internal/logger"
	"ll-buddy/api/internal/metrics"
	"ll-buddy/api/internal/prompts"
)

// Mode: способ отображения исходящего сообщения.
type Mode string

const (
	ModePlain Mode = ""
	ModeHTML  Mode = "HTML"
)

// ErrEmptyTranscript: describe вернул пустой текст, это считается провалом шага.
var ErrEmptyTranscript = errors.New("pipeline: empty transcript")

// Messenger: то, что пайплайну нужно от чат-транспорта.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, mode Mode) error
	FileURL(ctx context.Context, fileID string) (string, error)
}

// Completer: один вызов модели.
type Completer interface {
	Complete(ctx context.Context, kind prompts.Kind, input, imageURL string) (string, error)
}

const (
	describeQuery = "О чем текст на изображении"

	FailureText = "❌ Произошла ошибка при обработке фото."
)

// StepError сообщает, на каком шаге оборвался прогон.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

type Pipeline struct {
	ai      Completer
	chat    Messenger
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(ai Completer, chat Messenger, log *logger.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{ai: ai, chat: chat, log: log.With("component", "pipeline"), metrics: m}
}

// run: состояние одного прогона; шаги читают и дописывают его по очереди.
type run struct {
	id         string
	ev         PhotoEvent
	log        *logger.Logger
	imageURL   string
	transcript string
	outcome    Outcome
	exercise   string
}

type step struct {
	name string
	fn   func(ctx context.Context, r *run) error
}

// Process прогоняет одно событие. Возвращает ошибку прерванного шага (уже
// доложенную в чат) или nil. Пустой список вариантов молча игнорируется.
func (p *Pipeline) Process(ctx context.Context, ev PhotoEvent) error {
	if len(ev.Variants) == 0 {
		return nil
	}
	r := &run{id: uuid.NewString(), ev: ev, outcome: OutcomeUnrecognized}
	r.log = p.log.With("run_id", r.id, "chat_id", ev.ChatID)

	err := p.execute(ctx, r, []step{
		{"resolve_image", p.resolveImage},
		{"describe", p.describe},
		{"classify", p.classify},
		{"announce", p.announce},
		{"branch", p.branch},
	})

	switch {
	case err == nil:
		r.log.Info("photo processed", "outcome", r.outcome)
		p.metrics.PipelineRun(string(r.outcome), "ok")
	case ctx.Err() != nil:
		// прогон отменён вместе с воркером, в чат больше ничего не пишем
		r.log.Info("photo processing cancelled", "error", err)
		p.metrics.PipelineRun(string(r.outcome), "cancelled")
	default:
		r.log.Error("photo processing failed", "outcome", r.outcome, "error", err)
		p.metrics.PipelineRun(string(r.outcome), "failed")
		if sendErr := p.send(ctx, r, FailureText, ModePlain); sendErr != nil {
			r.log.Warn("failure notice not delivered", "error", sendErr)
		}
	}
	return err
}

func (p *Pipeline) execute(ctx context.Context, r *run, steps []step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: s.name, Err: err}
		}
		if err := s.fn(ctx, r); err != nil {
			var se *StepError
			if errors.As(err, &se) {
				return err
			}
			return &StepError{Step: s.name, Err: err}
		}
	}
	return nil
}

func (p *Pipeline) send(ctx context.Context, r *run, text string, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.chat.Send(ctx, r.ev.ChatID, text, mode)
}

func (p *Pipeline) resolveImage(ctx context.Context, r *run) error {
	v, _ := Largest(r.ev.Variants)
	r.log.Info("photo received", "width", v.Width, "height", v.Height, "size", v.FileSize)
	url, err := p.chat.FileURL(ctx, v.FileID)
	if err != nil {
		return err
	}
	r.imageURL = url
	return nil
}

func (p *Pipeline) describe(ctx context.Context, r *run) error {
	text, err := p.ai.Complete(ctx, prompts.Describe, describeQuery, r.imageURL)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyTranscript
	}
	r.transcript = text
	return nil
}

func (p *Pipeline) classify(ctx context.Context, r *run) error {
	answer, err := p.ai.Complete(ctx, prompts.Classify, r.transcript, "")
	if err != nil {
		return err
	}
	r.outcome = ParseOutcome(answer)
	return nil
}

// announce показывает категорию до ветвления, чтобы ошибки классификации были видны в чате.
func (p *Pipeline) announce(ctx context.Context, r *run) error {
	return p.send(ctx, r, "Категория: "+string(r.outcome), ModePlain)
}

func (p *Pipeline) branch(ctx context.Context, r *run) error {
	if r.outcome == OutcomeExercise {
		return p.execute(ctx, r, []step{
			{"what_to_do", p.whatToDo},
			{"generate_exercise", p.generateExercise},
			{"adapt", p.adaptExercise},
		})
	}
	return p.execute(ctx, r, []step{
		{"transcript", p.sendTranscript},
		{"adapt", p.adaptTranscript},
	})
}

func (p *Pipeline) whatToDo(ctx context.Context, r *run) error {
	out, err := p.ai.Complete(ctx, prompts.WhatToDo, r.transcript, "")
	if err != nil {
		return err
	}
	return p.send(ctx, r, "Задание: "+out, ModeHTML)
}

func (p *Pipeline) generateExercise(ctx context.Context, r *run) error {
	out, err := p.ai.Complete(ctx, prompts.GenerateExercise, r.transcript, "")
	if err != nil {
		return err
	}
	r.exercise = out
	return p.send(ctx, r, "Упражнение: "+out, ModeHTML)
}

func (p *Pipeline) adaptExercise(ctx context.Context, r *run) error {
	return p.adapt(ctx, r, r.exercise)
}

func (p *Pipeline) sendTranscript(ctx context.Context, r *run) error {
	mode := ModePlain
	if r.outcome == OutcomeReading {
		mode = ModeHTML
	}
	return p.send(ctx, r, "📸 Анализ фото: "+r.transcript, mode)
}

func (p *Pipeline) adaptTranscript(ctx context.Context, r *run) error {
	return p.adapt(ctx, r, r.transcript)
}

func (p *Pipeline) adapt(ctx context.Context, r *run, text string) error {
	out, err := p.ai.Complete(ctx, prompts.Adapt, text, "")
	if err != nil {
		return err
	}
	return p.send(ctx, r, "📸 Адаптированный текст: "+out, ModeHTML)
}
