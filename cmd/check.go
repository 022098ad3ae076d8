package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/phux/apiunit/internal/logger"
	"github.com/phux/apiunit/smoke"
	"github.com/phux/apiunit/target"

	"github.com/spf13/cobra"
)

var ErrFindings = errors.New("findings")

type checkOptions struct {
	legacy     bool
	gets       []string
	auth       bool
	urlFile    string
	headerFile string
	rateLimit  float64
	outputFile string
	lookup     target.LookupFunc
}

func newCheckCmd() *cobra.Command {
	opts := checkOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "run ping, version and the given endpoints against the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.legacy, "legacy", false, "[optional] read KLUE_* instead of PYM_* environment variables")
	cmd.Flags().StringArrayVar(&opts.gets, "get", nil, "[optional] path expected to answer GET with 200 and JSON, e.g. /v1/items/{1-3}. Repeatable")
	cmd.Flags().BoolVar(&opts.auth, "auth", false, "[optional] also check secured/version with the target's token")
	cmd.Flags().StringVar(&opts.urlFile, "urlFile", "", "[optional] JSON or YAML file with endpoints: relative paths, HTTP method, expected status, ...")
	cmd.Flags().StringVar(&opts.headerFile, "headerFile", "", "[optional] headerFile: provide (additional) header key-value pairs via a JSON object (string: string). Applied to every request")
	cmd.Flags().Float64Var(&opts.rateLimit, "rateLimit", 1, "[optional] rate limit of requests / second, 0 for none")
	cmd.Flags().StringVar(&opts.outputFile, "outputFile", "", "[optional] outputFile: path to write the findings to if > 0 findings (default: \"\" -> writing to stdout)")

	return cmd
}

func runCheck(opts checkOptions, out io.Writer) error {
	src := target.EnvSource(target.CurrentNames, opts.lookup)
	if opts.legacy {
		src = target.EnvSource(target.LegacyNames, opts.lookup)
	}

	tgt, err := target.Resolve(src)
	if err != nil {
		return err
	}

	headers, err := smoke.LoadHeaders(opts.headerFile)
	if err != nil {
		return err
	}

	plan := smoke.Plan{}
	if opts.urlFile != "" {
		p, err := smoke.LoadPlan(opts.urlFile)
		if err != nil {
			return err
		}
		plan = *p
	}
	for _, path := range opts.gets {
		plan.Endpoints = append(plan.Endpoints, smoke.GetEndpoint(path))
	}

	logger.Logger().Infof("Starting against %s with rate limit: %f/second", tgt, opts.rateLimit)

	runner := smoke.NewRunner(tgt, opts.rateLimit, headers)
	checks := smoke.Checks{Ping: true, Version: true, AuthVersion: opts.auth}
	if err := runner.Run(checks, plan); err != nil {
		return err
	}

	return report(runner.Results, opts.outputFile, out)
}

func report(results *smoke.Results, outputFile string, out io.Writer) error {
	if len(results.Findings) == 0 {
		color.New(color.FgGreen).Fprintln(out, "All checks passed!")

		return nil
	}

	if outputFile != "" {
		findings, err := json.MarshalIndent(results.Findings, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outputFile, findings, 0o644); err != nil {
			return err
		}

		fmt.Fprintf(out, "Written findings to %s\n", outputFile)
	} else {
		red := color.New(color.FgRed, color.Bold)
		yellow := color.New(color.FgYellow)

		fmt.Fprintln(out, "Findings:")
		for _, finding := range results.Findings {
			red.Fprintln(out, finding.URL)
			fmt.Fprintf(out, "Error: %s\n", finding.Error)
			if finding.Diff != "" {
				yellow.Fprintf(out, "Diff:\n%s\n", finding.Diff)
			}
		}
	}

	color.New(color.FgRed).Fprintf(out, "Finished - %d findings\n", len(results.Findings))

	return fmt.Errorf("%w: %d", ErrFindings, len(results.Findings))
}
