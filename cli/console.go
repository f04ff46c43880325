package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/santiagomed/codewizard/errs"
)

// Console prints the final outcome of a run. Results go to out, failures to errOut.
type Console struct {
	out    io.Writer
	errOut io.Writer

	successStyle lipgloss.Style
	pathStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	titleStyle   lipgloss.Style
	panelStyle   lipgloss.Style
}

func NewConsole(out, errOut io.Writer) *Console {
	outR := lipgloss.NewRenderer(out)
	errR := lipgloss.NewRenderer(errOut)
	return &Console{
		out:          out,
		errOut:       errOut,
		successStyle: outR.NewStyle().Foreground(lipgloss.Color("10")),
		pathStyle:    outR.NewStyle().Foreground(lipgloss.Color("212")),
		errorStyle:   errR.NewStyle().Foreground(lipgloss.Color("#FFBA08")),
		titleStyle:   outR.NewStyle().Bold(true),
		panelStyle: outR.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
	}
}

func (c *Console) Success(path string) {
	fmt.Fprintf(c.out, "%s Code written to %s\n", c.successStyle.Render("✓"), c.pathStyle.Render(path))
}

func (c *Console) Failure(err error) {
	msg := fmt.Sprintf("Error: %v", err)
	if errs.Is(err, errs.Configuration) {
		msg += "\nRun 'codewizard --help' for usage."
	}
	fmt.Fprintln(c.errOut, c.errorStyle.Render(msg))
}

// Panel prints code inside a bordered box under a title.
func (c *Console) Panel(title, code string) {
	body := strings.TrimRight(code, "\n")
	if body == "" {
		body = "(empty)"
	}
	fmt.Fprintln(c.out, c.titleStyle.Render(title))
	fmt.Fprintln(c.out, c.panelStyle.Render(body))
}
