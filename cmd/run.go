package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagesense/api/schemas"
	"github.com/xkilldash9x/pagesense/internal/config"
	"github.com/xkilldash9x/pagesense/internal/engine"
	"github.com/xkilldash9x/pagesense/internal/observability"
	"github.com/xkilldash9x/pagesense/internal/page"
)

// newRunCmd creates the `run` command: load a document, start an engine, and
// serve request envelopes from stdin (or execute one request built from flags).
func newRunCmd() *cobra.Command {
	var (
		htmlPath string
		intent   string
		selector string
		verb     string
		text     string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the engine over an HTML document and answers requests",
		Long: `Loads an HTML document, indexes its interactive elements, and answers
engine requests. With --intent/--selector/--action a single request is built
from the flags; otherwise newline-delimited JSON request envelopes are read
from stdin and responses are written to stdout.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			doc, err := loadDocument(htmlPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng, err := engine.New(cfg, doc, logger)
			if err != nil {
				return fmt.Errorf("failed to create engine: %w", err)
			}
			eng.Init(ctx)
			defer eng.Close()

			if req, ok := requestFromFlags(intent, selector, verb, text); ok {
				raw, err := schemas.MarshalData(req)
				if err != nil {
					return fmt.Errorf("failed to build request: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(eng.Dispatch(ctx, raw)))
				return nil
			}

			logger.Info("Serving request envelopes from stdin", zap.String("engine_id", eng.ID()))
			return serve(ctx, eng, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	runCmd.Flags().StringVar(&htmlPath, "html", "-", "path to the HTML document ('-' for stdin)")
	runCmd.Flags().StringVar(&intent, "intent", "", "resolve a free-text intent and print matches")
	runCmd.Flags().StringVar(&selector, "selector", "", "resolve a CSS selector target")
	runCmd.Flags().StringVar(&verb, "action", "", "action verb to execute against the resolved target")
	runCmd.Flags().StringVar(&text, "text", "", "text payload for type/select actions")
	return runCmd
}

// loadDocument reads the HTML source from a file or stdin.
func loadDocument(path string) (*page.Document, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open document: %w", err)
		}
		defer f.Close()
		r = f
	}
	return page.Parse(r)
}

// requestFromFlags builds a single request envelope from convenience flags.
func requestFromFlags(intent, selector, verb, text string) (*schemas.Request, bool) {
	switch {
	case verb != "":
		var target *schemas.TargetSpec
		if selector != "" {
			target = &schemas.TargetSpec{Primary: schemas.Strategy{Kind: schemas.LocatorClass, Value: selector}}
		} else if intent != "" {
			target = &schemas.TargetSpec{Primary: schemas.Strategy{Kind: schemas.LocatorIntent, Value: intent}}
		} else {
			return nil, false
		}
		return &schemas.Request{
			Type: schemas.RequestExecuteAction,
			Action: &schemas.ExecuteActionPayload{
				Verb:    schemas.ActionVerb(verb),
				Target:  target,
				Options: schemas.ActionOptions{Text: text},
			},
		}, true
	case selector != "":
		return &schemas.Request{
			Type:   schemas.RequestResolveTarget,
			Target: &schemas.TargetSpec{Primary: schemas.Strategy{Kind: schemas.LocatorClass, Value: selector}},
		}, true
	case intent != "":
		return &schemas.Request{Type: schemas.RequestFindIntent, Intent: intent}, true
	}
	return nil, false
}

// serve pumps newline-delimited request envelopes through the engine until
// stdin closes or the context is cancelled.
func serve(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer) error {
	lines := make(chan []byte)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return scanner.Err()
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if _, err := fmt.Fprintln(out, string(eng.Dispatch(ctx, line))); err != nil {
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
