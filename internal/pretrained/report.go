package pretrained

import "fmt"

// Report describes the outcome of a load. Keys are relative to the target
// and sorted.
type Report struct {
	Path    string   // checkpoint path
	Prefix  string   // checkpoint key prefix of the target
	Loaded  []string // target keys overwritten from the checkpoint
	Missing []string // target keys absent from the checkpoint, left unchanged
	Unused  []string // checkpoint keys under Prefix that matched nothing
}

// String returns a one-line summary.
func (r *Report) String() string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "<model>"
	}
	return fmt.Sprintf("%s -> %s: %d loaded, %d missing, %d unused",
		r.Path, prefix, len(r.Loaded), len(r.Missing), len(r.Unused))
}
