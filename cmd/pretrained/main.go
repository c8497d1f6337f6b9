// Package main provides the pretrained CLI for inspecting, slicing and
// applying checkpoints.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/born-ml/pretrained/internal/pretrained"
)

const version = "v0.1.0"

const usageText = `pretrained - load pretrained parameters into models

Usage:
  pretrained <command> [flags] [args]

Commands:
  inspect   List the tensors of a checkpoint
  extract   Write the tensors under a key prefix to a new checkpoint
  convert   Convert between .born and .safetensors ("-" reads .born from stdin)
  apply     Apply init params or a plan to a model and save it
  version   Show version

Environment:
  PRETRAINED_DEVICE          default device (cpu)
  PRETRAINED_IGNORE_MISSING  tolerate missing keys (true)
  PRETRAINED_SKIP_CHECKSUM   skip .born v2 checksum verification (false)
`

var errUsage = errors.New("invalid usage")

func main() {
	log.SetFlags(0)
	log.SetPrefix("[PRETRAINED] ")

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

// run dispatches a subcommand. Results go to stdout, usage to stderr.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return errUsage
	}

	cfg, err := pretrained.ConfigFromEnv()
	if err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "inspect":
		return runInspect(rest, cfg, stdout, stderr)
	case "extract":
		return runExtract(rest, cfg, stdout, stderr)
	case "convert":
		return runConvert(rest, cfg, stdin, stdout, stderr)
	case "apply":
		return runApply(rest, cfg, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "pretrained %s\n", version)
		return nil
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usageText)
		return nil
	default:
		fmt.Fprint(stderr, usageText)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// newFlagSet creates a subcommand flag set that reports errors instead of
// exiting.
func newFlagSet(name, args string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pretrained %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return fmt.Sprint(*s)
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
