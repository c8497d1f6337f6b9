package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/born-ml/pretrained/internal/loader"
	"github.com/born-ml/pretrained/internal/nn"
	"github.com/born-ml/pretrained/internal/pretrained"
	"github.com/born-ml/pretrained/internal/serialization"
	"github.com/born-ml/pretrained/internal/tensor"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

func readerOptions(cfg pretrained.Config) serialization.ReaderOptions {
	return serialization.ReaderOptions{SkipChecksumValidation: cfg.SkipChecksum}
}

func runInspect(args []string, cfg pretrained.Config, stdout, stderr io.Writer) error {
	fs := newFlagSet("inspect", "<checkpoint>", stderr)
	prefix := fs.String("prefix", "", "only list tensors under this key prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	path := fs.Arg(0)

	ckpt, err := loader.OpenCheckpoint(path, readerOptions(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = ckpt.Close() }()

	var (
		rows   [][]string
		bytes  int64
		params int64
	)
	for _, name := range ckpt.TensorNames() {
		if !strings.HasPrefix(name, *prefix) {
			continue
		}
		info, err := ckpt.TensorInfo(name)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			name,
			info.DType.String(),
			fmt.Sprint([]int(info.Shape)),
			humanize.Bytes(uint64(info.Size)), //nolint:gosec // G115: sizes are validated non-negative
		})
		bytes += info.Size
		params += int64(info.Shape.NumElements())
	}

	fmt.Fprintln(stdout, titleStyle.Render(fmt.Sprintf("%s (%s)", filepath.Base(path), ckpt.Format())))
	for _, k := range sortedKeys(ckpt.Metadata()) {
		fmt.Fprintf(stdout, "  %s: %s\n", k, ckpt.Metadata()[k])
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("NAME", "DTYPE", "SHAPE", "SIZE").
		Rows(rows...)
	fmt.Fprintln(stdout, t.String())
	fmt.Fprintf(stdout, "%d tensors, %s parameters, %s\n",
		len(rows), humanize.Comma(params), humanize.Bytes(uint64(bytes))) //nolint:gosec // G115: non-negative
	return nil
}

func runExtract(args []string, cfg pretrained.Config, stdout, stderr io.Writer) error {
	fs := newFlagSet("extract", "<in> <out>", stderr)
	key := fs.String("key", "", "dotted sub-module path to extract (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 || strings.TrimSpace(*key) == "" {
		fs.Usage()
		return errUsage
	}
	in, out := fs.Arg(0), fs.Arg(1)

	sd, err := loader.ReadCheckpoint(in, tensor.CPU, loader.ReadOptions{Born: readerOptions(cfg)})
	if err != nil {
		return err
	}

	prefix := strings.TrimSpace(*key) + "."
	sub := nn.StripPrefix(sd, prefix)
	if len(sub) == 0 {
		return fmt.Errorf("no tensors under %q in %s", prefix, in)
	}

	if err := writeCheckpoint(out, sub, map[string]string{"source": filepath.Base(in), "key": *key}); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "extracted %d tensors under %q to %s\n", len(sub), prefix, out)
	return nil
}

func runConvert(args []string, cfg pretrained.Config, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := newFlagSet("convert", "<in|-> <out>", stderr)
	maxData := fs.Int64("max-data", serialization.DefaultMaxStreamDataSize, "largest data section accepted from stdin, in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}
	in, out := fs.Arg(0), fs.Arg(1)

	var (
		sd       map[string]*tensor.RawTensor
		metadata map[string]string
		format   string
	)
	if in == "-" {
		opts := readerOptions(cfg)
		opts.MaxDataSize = *maxData
		stream, header, err := serialization.ReadFrom(stdin, tensor.CPU, opts)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sd, metadata, format = stream, header.Metadata, loader.FormatBorn.String()
		in = "stdin"
	} else {
		ckpt, err := loader.OpenCheckpoint(in, readerOptions(cfg))
		if err != nil {
			return err
		}
		defer func() { _ = ckpt.Close() }()

		sd = make(map[string]*tensor.RawTensor)
		for _, name := range ckpt.TensorNames() {
			raw, err := ckpt.LoadTensor(name, tensor.CPU)
			if err != nil {
				return err
			}
			sd[name] = raw
		}
		metadata, format = ckpt.Metadata(), ckpt.Format().String()
	}

	if err := writeCheckpoint(out, sd, metadata); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "converted %s (%s) to %s\n", in, format, out)
	return nil
}

func runApply(args []string, cfg pretrained.Config, stdout, stderr io.Writer) error {
	fs := newFlagSet("apply", "", stderr)
	base := fs.String("base", "", "checkpoint defining the model structure and initial values (required)")
	planPath := fs.String("plan", "", "YAML init plan")
	out := fs.String("out", "", "output checkpoint (required)")
	device := fs.String("device", cfg.Device, "device for loaded tensors")
	strict := fs.Bool("strict", !cfg.IgnoreMissing, "fail on keys missing from a checkpoint")
	var inits, renames stringList
	fs.Var(&inits, "init", "init param path:key (repeatable)")
	fs.Var(&renames, "rename", "from=to key prefix rule for -init checkpoints (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *base == "" || *out == "" || (*planPath == "" && len(inits) == 0) {
		fs.Usage()
		return errUsage
	}

	plan := &pretrained.Plan{}
	if *planPath != "" {
		p, err := pretrained.LoadPlan(*planPath)
		if err != nil {
			return err
		}
		plan = p
	}
	for _, s := range inits {
		entry, err := pretrained.ParseInitParam(s)
		if err != nil {
			return err
		}
		entry.Rename = renames
		plan.Entries = append(plan.Entries, entry)
	}

	baseSD, err := loader.ReadCheckpoint(*base, tensor.CPU, loader.ReadOptions{Born: readerOptions(cfg)})
	if err != nil {
		return fmt.Errorf("read base: %w", err)
	}
	model, err := nn.FromStateDict(baseSD)
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}

	reports, err := pretrained.ApplyPlan(model, plan,
		pretrained.WithLocation(*device),
		pretrained.WithIgnoreMissing(!*strict),
		pretrained.WithReaderOptions(readerOptions(cfg)),
	)
	for _, r := range reports {
		fmt.Fprintln(stdout, r)
	}
	if err != nil {
		return err
	}

	if err := writeCheckpoint(*out, model.StateDict(), nil); err != nil {
		return err
	}
	log.Printf("wrote %s", *out)
	return nil
}

// writeCheckpoint writes sd in the format implied by the extension of path.
func writeCheckpoint(path string, sd map[string]*tensor.RawTensor, metadata map[string]string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".safetensors":
		return serialization.WriteSafeTensors(path, sd, metadata)
	case ".born":
		return serialization.WriteFile(path, sd, serialization.WriteOptions{Metadata: metadata})
	default:
		return errors.New("output must end in .born or .safetensors")
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
