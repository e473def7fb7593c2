// Package port defines the tagged input/output port reference used by the
// CEC engine and the string encoding used for storage and API payloads.
package port

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes matrix input ports from output ports.
type Kind string

const (
	KindInput  Kind = "input"
	KindOutput Kind = "output"
)

// Ref identifies a single physical port on the matrix.
type Ref struct {
	Kind   Kind `json:"kind"`
	Number int  `json:"number"`
}

// String returns the wire encoding, e.g. "input_3" or "output_5".
func (r Ref) String() string {
	return fmt.Sprintf("%s_%d", r.Kind, r.Number)
}

// InRange reports whether the port number fits the matrix dimensions.
func (r Ref) InRange(inputs, outputs int) bool {
	switch r.Kind {
	case KindInput:
		return r.Number >= 1 && r.Number <= inputs
	case KindOutput:
		return r.Number >= 1 && r.Number <= outputs
	}
	return false
}

// Parse decodes a "<input|output>_<n>" string into a Ref.
// The port number must be a positive integer; range checking against the
// matrix dimensions happens at resolution time, not here.
func Parse(s string) (Ref, error) {
	idx := strings.LastIndex(s, "_")
	if idx <= 0 || idx == len(s)-1 {
		return Ref{}, fmt.Errorf("port: malformed reference %q", s)
	}
	kind := Kind(s[:idx])
	if kind != KindInput && kind != KindOutput {
		return Ref{}, fmt.Errorf("port: unknown kind in %q", s)
	}
	n, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return Ref{}, fmt.Errorf("port: non-numeric port in %q", s)
	}
	if n < 1 {
		return Ref{}, fmt.Errorf("port: port number must be positive in %q", s)
	}
	return Ref{Kind: kind, Number: n}, nil
}

// ParseList decodes a list of encoded references, dropping malformed and
// out-of-range entries instead of failing the whole list.
func ParseList(raw []string, inputs, outputs int) []Ref {
	out := make([]Ref, 0, len(raw))
	for _, s := range raw {
		ref, err := Parse(s)
		if err != nil {
			continue
		}
		if !ref.InRange(inputs, outputs) {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// EncodeList is the inverse of ParseList for storage payloads.
func EncodeList(refs []Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
