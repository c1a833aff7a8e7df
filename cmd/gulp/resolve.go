package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ligustah/gulp/internal/config"
	"github.com/ligustah/gulp/internal/downloader"
	"github.com/ligustah/gulp/internal/targets"
)

// runResolve prints where each URL would be written. Redirects are not
// followed, so the path may differ from the one fetch ends up using.
func runResolve(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	output := fs.String("output", config.DefaultOutput, "Output directory")
	listFile := fs.String("list", "", "File with one URL per line (- for stdin)")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: gulp resolve [options] URL...

Print "<url>\t<destination>" for every URL without any network access.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	var urls []string
	if *listFile != "" {
		list, err := targets.ReadListFile(*listFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		urls = list
	}
	urls = append(urls, fs.Args()...)

	if len(urls) == 0 {
		fmt.Fprintln(stderr, "Error: no URLs given")
		fs.Usage()
		return ExitInvalidArgs
	}

	tgts, err := downloader.ParseTargets(urls)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	dir := config.Config{Output: *output}.OutputDir(cwd)

	for _, t := range tgts {
		fmt.Fprintf(stdout, "%s\t%s\n", t, downloader.Resolve(dir, t.URL()))
	}
	return ExitSuccess
}
