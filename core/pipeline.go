package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/santiagomed/codewizard/errs"
	"github.com/santiagomed/codewizard/fs"
	"github.com/santiagomed/codewizard/llm"
	"github.com/santiagomed/codewizard/logger"
)

type StepType int

const (
	Idle StepType = iota
	Loading
	Prompting
	Generating
	Extracting
	Writing
	Done
	Failed
)

func (s StepType) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Prompting:
		return "prompting"
	case Generating:
		return "generating"
	case Extracting:
		return "extracting"
	case Writing:
		return "writing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// StepPublisher is told about every completed step and about the step a run failed in.
type StepPublisher interface {
	PublishStep(step StepType)
	Error(step StepType, err error)
}

type DefaultStepPublisher struct{}

func (p *DefaultStepPublisher) PublishStep(step StepType) {}

func (p *DefaultStepPublisher) Error(step StepType, err error) {}

// ProgressReporter receives start, tick and stop notifications while a
// backend call is in flight. Update may be called from another goroutine.
type ProgressReporter interface {
	Start(label string)
	Update()
	Stop()
}

type NopReporter struct{}

func (NopReporter) Start(label string) {}
func (NopReporter) Update()            {}
func (NopReporter) Stop()              {}

// Job describes one invocation.
type Job struct {
	InputPath   string // empty means generate from scratch
	OutputPath  string
	Instruction string // empty means use the default instruction
}

// Result is what a run produced. On an output write failure it still
// carries the generated code so the caller can show it.
type Result struct {
	Request    llm.Request
	Response   llm.Response
	OutputPath string
}

// Options tune a Pipeline. Zero values fall back to no-op collaborators.
type Options struct {
	Builder   *PromptBuilder
	Publisher StepPublisher
	Progress  ProgressReporter
	Logger    logger.Logger
	// Timeout bounds the backend call. Zero means no deadline beyond the caller's.
	Timeout time.Duration
}

// Pipeline runs load, prompt, generate, extract and write exactly once.
type Pipeline struct {
	backend   llm.Backend
	fs        *fs.FileSystem
	builder   *PromptBuilder
	publisher StepPublisher
	progress  ProgressReporter
	logger    logger.Logger
	timeout   time.Duration
	state     StepType
}

type runState struct {
	job      Job
	source   string
	language string
	result   *Result
}

func NewPipeline(backend llm.Backend, fsys *fs.FileSystem, opts Options) (*Pipeline, error) {
	if backend == nil {
		return nil, errors.New("pipeline requires a backend")
	}
	if fsys == nil {
		return nil, errors.New("pipeline requires a file system")
	}
	p := &Pipeline{
		backend:   backend,
		fs:        fsys,
		builder:   opts.Builder,
		publisher: opts.Publisher,
		progress:  opts.Progress,
		logger:    opts.Logger,
		timeout:   opts.Timeout,
		state:     Idle,
	}
	if p.builder == nil {
		p.builder = NewPromptBuilder()
	}
	if p.publisher == nil {
		p.publisher = &DefaultStepPublisher{}
	}
	if p.progress == nil {
		p.progress = NopReporter{}
	}
	if p.logger == nil {
		p.logger = logger.NewNullLogger()
	}
	return p, nil
}

// State returns the step the pipeline is in, or Done/Failed after a run.
func (p *Pipeline) State() StepType {
	return p.state
}

// Run executes the job. The returned Result is never nil; on failure it
// holds whatever was produced before the failing step.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Result, error) {
	st := &runState{job: job, result: &Result{OutputPath: job.OutputPath}}
	p.state = Idle

	if job.OutputPath == "" {
		return st.result, p.fail(Idle, errs.Errorf(errs.Configuration, "run", "output path is required"))
	}

	steps := []struct {
		step StepType
		run  func(context.Context, *runState) error
	}{
		{Loading, p.load},
		{Prompting, p.prompt},
		{Generating, p.generate},
		{Extracting, p.extract},
		{Writing, p.write},
	}

	p.logger.Info("Starting pipeline execution")
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			p.logger.Info("Pipeline execution cancelled")
			return st.result, p.fail(s.step, contextError("run", err))
		}

		p.state = s.step
		p.logger.Info(fmt.Sprintf("Attempting to execute step %d: %v", i, s.step))
		startTime := time.Now()
		if err := s.run(ctx, st); err != nil {
			return st.result, p.fail(s.step, err)
		}
		p.logger.Info(fmt.Sprintf("Step %v completed in %v", s.step, time.Since(startTime)))
		p.publisher.PublishStep(s.step)
	}

	p.state = Done
	p.publisher.PublishStep(Done)
	p.logger.Info("Pipeline execution completed")
	return st.result, nil
}

func (p *Pipeline) fail(step StepType, err error) error {
	p.state = Failed
	p.logger.WithField("kind", errs.KindOf(err).String()).Error(fmt.Sprintf("Error executing step %v: %v", step, err))
	p.publisher.Error(step, err)
	return err
}

func (p *Pipeline) load(_ context.Context, st *runState) error {
	st.language = LanguageFromPath(st.job.OutputPath)
	if st.job.InputPath == "" {
		p.logger.Debug("No input file, generating from scratch")
		return nil
	}

	source, err := p.fs.ReadText(st.job.InputPath)
	if err != nil {
		return errs.E(errs.InputRead, "read input", err)
	}
	st.source = source
	if lang := LanguageFromPath(st.job.InputPath); lang != "" {
		st.language = lang
	}
	p.logger.WithField("bytes", len(source)).Debug(fmt.Sprintf("Read input file %s", st.job.InputPath))
	return nil
}

func (p *Pipeline) prompt(_ context.Context, st *runState) error {
	req, err := p.builder.Build(st.source, st.job.Instruction, st.language)
	if err != nil {
		return err
	}
	st.result.Request = req
	return nil
}

type generation struct {
	resp *llm.Response
	err  error
}

func (p *Pipeline) generate(ctx context.Context, st *runState) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	name := p.backend.Name()
	p.progress.Start(fmt.Sprintf("Generating code with %s", name))
	defer p.progress.Stop()

	// The backend runs on its own goroutine so a deadline aborts the step
	// even if the backend does not honour ctx.
	done := make(chan generation, 1)
	go func() {
		resp, err := p.backend.Generate(ctx, st.result.Request, p.progress.Update)
		done <- generation{resp: resp, err: err}
	}()

	select {
	case g := <-done:
		if g.err != nil {
			return backendError(ctx, name, g.err)
		}
		if g.resp == nil {
			return errs.Errorf(errs.MalformedResponse, "generate", "no response").WithBackend(name)
		}
		st.result.Response = llm.Response{RawText: g.resp.RawText}
		p.logger.WithField("bytes", len(g.resp.RawText)).Debug("Received backend response")
		return nil
	case <-ctx.Done():
		return contextError("generate", ctx.Err()).WithBackend(name)
	}
}

func (p *Pipeline) extract(_ context.Context, st *runState) error {
	code := ExtractCode(st.result.Response.RawText)
	if code == "" {
		p.logger.Warn("Backend reply contained no code, writing an empty file")
	}
	st.result.Response.ExtractedCode = code
	return nil
}

func (p *Pipeline) write(_ context.Context, st *runState) error {
	if err := p.fs.WriteFileAtomic(st.job.OutputPath, st.result.Response.ExtractedCode); err != nil {
		return errs.E(errs.OutputWrite, "write output", err)
	}
	return nil
}

func backendError(ctx context.Context, name string, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		if e.Backend == "" {
			return e.WithBackend(name)
		}
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError("generate", ctxErr).WithBackend(name)
	}
	return errs.E(errs.Provider, "generate", err).WithBackend(name)
}

func contextError(op string, err error) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.E(errs.Timeout, op, err)
	}
	return errs.E(errs.Cancelled, op, err)
}
