package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"

	"github.com/santiagomed/codewizard/core"
	"github.com/santiagomed/codewizard/logger"
)

type progressStartMsg string

type progressTickMsg struct{}

type progressStopMsg struct{}

type stepErrorMsg struct {
	step core.StepType
	err  error
}

// CliStepPublisher drives the terminal progress view. It is both the
// pipeline's StepPublisher and its ProgressReporter.
type CliStepPublisher struct {
	stepChan     chan core.StepType
	errorChan    chan stepErrorMsg
	progressChan chan tea.Msg
	logger       logger.Logger
	out          io.Writer
	program      *tea.Program
	done         chan struct{}
}

func NewCliStepPublisher(out io.Writer, logger logger.Logger) *CliStepPublisher {
	return &CliStepPublisher{
		stepChan:     make(chan core.StepType, 16),
		errorChan:    make(chan stepErrorMsg, 1),
		progressChan: make(chan tea.Msg, 256),
		logger:       logger,
		out:          out,
		done:         make(chan struct{}),
	}
}

// Start renders the progress view on its own goroutine until the pipeline
// reports Done or an error.
func (p *CliStepPublisher) Start() {
	p.program = tea.NewProgram(
		newProgressModel(p),
		tea.WithOutput(p.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	go func() {
		defer close(p.done)
		if _, err := p.program.Run(); err != nil {
			p.logger.Error(fmt.Sprintf("Error running progress view: %v", err))
		}
	}()
}

// Shutdown waits for the view to finish drawing, forcing it to quit after timeout.
func (p *CliStepPublisher) Shutdown(timeout time.Duration) {
	if p.program == nil {
		return
	}
	select {
	case <-p.done:
		return
	case <-time.After(timeout):
		p.logger.Warn("Progress view did not finish in time, quitting it")
	}
	p.program.Quit()
	<-p.done
}

func (p *CliStepPublisher) PublishStep(step core.StepType) {
	select {
	case p.stepChan <- step:
		p.logger.Debug(fmt.Sprintf("Successfully published step: %v", step))
	default:
		p.logger.Warn(fmt.Sprintf("Failed to publish step: %v. Channel full.", step))
	}
}

func (p *CliStepPublisher) Error(step core.StepType, err error) {
	select {
	case p.errorChan <- stepErrorMsg{step: step, err: err}:
		p.logger.Debug(fmt.Sprintf("Successfully published error for step: %v", step))
	default:
		p.logger.Warn(fmt.Sprintf("Failed to publish error for step: %v. Channel full.", step))
	}
}

func (p *CliStepPublisher) Begin(label string) { p.send(progressStartMsg(label)) }

// Update is called once per streamed chunk. Ticks are dropped when the view falls behind.
func (p *CliStepPublisher) Update() { p.send(progressTickMsg{}) }

func (p *CliStepPublisher) End() { p.send(progressStopMsg{}) }

func (p *CliStepPublisher) send(msg tea.Msg) {
	select {
	case p.progressChan <- msg:
	default:
	}
}

// reporter adapts the publisher to core.ProgressReporter.
type reporter struct{ p *CliStepPublisher }

func (r reporter) Start(label string) { r.p.Begin(label) }
func (r reporter) Update()            { r.p.Update() }
func (r reporter) Stop()              { r.p.End() }

func (p *CliStepPublisher) Reporter() core.ProgressReporter {
	return reporter{p: p}
}

var stepLabels = []struct {
	step    core.StepType
	present string
	past    string
}{
	{core.Loading, "Reading input.", "Read input."},
	{core.Prompting, "Building prompt.", "Built prompt."},
	{core.Generating, "Generating code.", "Generated code."},
	{core.Extracting, "Extracting code.", "Extracted code."},
	{core.Writing, "Writing output.", "Wrote output."},
}

type progressModel struct {
	spinner        spinner.Model
	publisher      *CliStepPublisher
	completedSteps []core.StepType
	label          string
	chunks         int
	err            error
	finished       bool
}

func newProgressModel(p *CliStepPublisher) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("202"))
	return progressModel{spinner: s, publisher: p}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForNextStep)
}

func (m progressModel) listenForNextStep() tea.Msg {
	// Steps are published before the error that ends a run, so drain them first.
	select {
	case step := <-m.publisher.stepChan:
		return step
	default:
	}
	select {
	case step := <-m.publisher.stepChan:
		return step
	case e := <-m.publisher.errorChan:
		return e
	case msg := <-m.publisher.progressChan:
		return msg
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case core.StepType:
		if msg == core.Done {
			m.finished = true
			return m, tea.Quit
		}
		m.completedSteps = append(m.completedSteps, msg)
		return m, m.listenForNextStep
	case stepErrorMsg:
		m.err = msg.err
		m.finished = true
		return m, tea.Quit
	case progressStartMsg:
		m.label = string(msg)
		return m, m.listenForNextStep
	case progressTickMsg:
		m.chunks++
		return m, m.listenForNextStep
	case progressStopMsg:
		return m, m.listenForNextStep
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	current := len(m.completedSteps)
	enumerator := func(l list.Items, i int) string {
		switch {
		case i < current:
			return lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓")
		case m.err != nil:
			return lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("✗")
		case m.finished:
			return ""
		default:
			return m.spinner.View()
		}
	}

	l := list.New().Enumerator(enumerator)
	for i, s := range stepLabels {
		switch {
		case i < current:
			l.Item(m.pastLabel(s.step, s.past))
		case i == current && (!m.finished || m.err != nil):
			l.Item(m.presentLabel(s.step, s.present))
		}
	}
	return fmt.Sprint(l) + "\n"
}

func (m progressModel) presentLabel(step core.StepType, label string) string {
	if step != core.Generating || m.label == "" {
		return label
	}
	if m.chunks == 0 {
		return m.label
	}
	return fmt.Sprintf("%s (%d chunks)", m.label, m.chunks)
}

func (m progressModel) pastLabel(step core.StepType, label string) string {
	if step == core.Generating && m.chunks > 0 {
		return fmt.Sprintf("Generated code (%d chunks).", m.chunks)
	}
	return label
}
