package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/santiagomed/codewizard/config"
	"github.com/santiagomed/codewizard/core"
	"github.com/santiagomed/codewizard/errs"
	"github.com/santiagomed/codewizard/fs"
	"github.com/santiagomed/codewizard/llm"
	"github.com/santiagomed/codewizard/logger"
)

const Version = "1.0.0"

type runFlags struct {
	input   string
	output  string
	prompt  string
	config  string
	quiet   bool
	echo    bool
	verbose bool
}

// App holds the collaborators of one invocation. Tests replace them.
type App struct {
	FS         *fs.FileSystem
	Stdout     io.Writer
	Stderr     io.Writer
	NewBackend func(cfg llm.Config, l logger.Logger) (llm.Backend, error)
	NewLogger  func(verbose bool) (logger.Logger, io.Closer, error)
}

func NewApp() *App {
	return &App{
		FS:         fs.NewOsFileSystem(),
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		NewBackend: llm.New,
		NewLogger:  logger.InitLogger,
	}
}

func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codewizard -o OUTPUT [-i INPUT] [-p PROMPT]",
		Short: "Codewizard rewrites or writes code with a language model",
		Long: `Codewizard sends a source file and an instruction to a local or cloud language model
and writes the code it returns to the output file. Without an input file it generates
code from scratch.`,
		Example: `  codewizard -i app.py -o app_v2.py
  codewizard -i app.py -o app_v2.py -p "add type hints"
  codewizard -o server.go -p "write an HTTP echo server" --backend local`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().NFlag() == 0 {
				return cmd.Help()
			}
			flags, err := parseFlags(cmd)
			if err != nil {
				return err
			}
			return app.run(cmd, flags)
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return errs.E(errs.Configuration, "parse flags", err)
	})

	cmd.Flags().StringP("input", "i", "", "Source file to transform. Omit to generate code from scratch")
	cmd.Flags().StringP("output", "o", "", "File to write the generated code to (required)")
	cmd.Flags().StringP("prompt", "p", "", "Instruction for the model, overriding the default")
	cmd.Flags().StringP("backend", "b", "", "Backend to use: local or cloud (default cloud)")
	cmd.Flags().StringP("model", "m", "", "Model name (default depends on the backend)")
	cmd.Flags().String("endpoint", "", "Backend base URL (default depends on the backend)")
	cmd.Flags().DurationP("timeout", "t", 0, "Deadline for the backend call (default 2m0s)")
	cmd.Flags().StringP("config", "c", "", "Path to a YAML configuration file")
	cmd.Flags().BoolP("quiet", "q", false, "Do not show the progress view")
	cmd.Flags().Bool("echo", false, "Print the input and generated code")
	cmd.Flags().Bool("verbose", false, "Write debug entries to the log file")
	cmd.SetVersionTemplate("codewizard version {{.Version}}\n")

	return cmd
}

func parseFlags(cmd *cobra.Command) (runFlags, error) {
	var f runFlags
	var err error
	get := func(name string, dst *string) {
		if err == nil {
			*dst, err = cmd.Flags().GetString(name)
		}
	}
	getBool := func(name string, dst *bool) {
		if err == nil {
			*dst, err = cmd.Flags().GetBool(name)
		}
	}
	get("input", &f.input)
	get("output", &f.output)
	get("prompt", &f.prompt)
	get("config", &f.config)
	getBool("quiet", &f.quiet)
	getBool("echo", &f.echo)
	getBool("verbose", &f.verbose)
	if err != nil {
		return runFlags{}, errs.E(errs.Configuration, "parse flags", err)
	}
	return f, nil
}

func (app *App) run(cmd *cobra.Command, f runFlags) error {
	if f.output == "" {
		return errs.Errorf(errs.Configuration, "parse flags", "required flag \"output\" not set")
	}

	cfg, err := config.LoadConfig(f.config, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, closer, err := app.NewLogger(f.verbose || cfg.Verbose)
	if err != nil {
		fmt.Fprintf(app.Stderr, "Warning: logging disabled: %v\n", err)
		l = logger.NewNullLogger()
	} else {
		defer closer.Close()
	}
	l = l.WithField("run_id", uuid.NewString())
	l.Debug("Initializing codewizard CLI")

	backendCfg := cfg.BackendConfig()
	backend, err := app.NewBackend(backendCfg, l)
	if err != nil {
		return err
	}
	l.WithField("model", backendCfg.Model).Info(fmt.Sprintf("Using backend %s", backend.Name()))

	opts := core.Options{Logger: l, Timeout: cfg.Timeout}
	var publisher *CliStepPublisher
	if !f.quiet {
		publisher = NewCliStepPublisher(app.Stderr, l)
		opts.Publisher = publisher
		opts.Progress = publisher.Reporter()
	}

	pipeline, err := core.NewPipeline(backend, app.FS, opts)
	if err != nil {
		return err
	}

	if publisher != nil {
		publisher.Start()
	}
	result, err := pipeline.Run(cmd.Context(), core.Job{
		InputPath:   f.input,
		OutputPath:  f.output,
		Instruction: f.prompt,
	})
	if publisher != nil {
		publisher.Shutdown(2 * time.Second)
	}

	console := NewConsole(app.Stdout, app.Stderr)
	if f.echo && result.Request.HasSource() {
		console.Panel("Input code", result.Request.SourceText)
	}
	if err != nil {
		if errs.Is(err, errs.OutputWrite) {
			console.Panel("Generated code", result.Response.ExtractedCode)
		}
		return err
	}
	if f.echo {
		console.Panel("Generated code", result.Response.ExtractedCode)
	}
	console.Success(result.OutputPath)
	return nil
}

// Run executes the command line args and returns the process exit code.
func (app *App) Run(ctx context.Context, args []string) int {
	cmd := NewRootCmd(app)
	cmd.SetArgs(args)
	cmd.SetOut(app.Stdout)
	cmd.SetErr(app.Stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		if errs.KindOf(err) == errs.Unknown {
			err = errs.E(errs.Configuration, "parse args", err)
		}
		NewConsole(app.Stdout, app.Stderr).Failure(err)
	}
	return errs.ExitCode(err)
}

func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewApp().Run(ctx, os.Args[1:])
}
