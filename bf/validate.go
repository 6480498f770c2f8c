package bf

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	ErrUnmatchedLoopEnd  = errors.New("unmatched ']'")
	ErrUnclosedLoopStart = errors.New("unclosed '['")
)

// BracketError describes malformed loop structure. Index is the position in
// the command sequence: the offending ']' for ErrUnmatchedLoopEnd, or the
// outermost '[' left open for ErrUnclosedLoopStart. Depth is the number of
// loops still open at the end of the scan (zero for ErrUnmatchedLoopEnd).
type BracketError struct {
	Err   error
	Index int
	Depth int
}

func (e *BracketError) Error() string {
	if errors.Is(e.Err, ErrUnclosedLoopStart) {
		return fmt.Sprintf("malformed source: %v at command %d (%d loop(s) left open)", e.Err, e.Index, e.Depth)
	}
	return fmt.Sprintf("malformed source: %v at command %d", e.Err, e.Index)
}

func (e *BracketError) Unwrap() []error {
	return []error{e.Err, errdefs.ErrInvalidArgument}
}

// Validate checks that loop markers are balanced and properly nested. It
// stops at the first ']' that has no matching '['.
func Validate(commands []Command) error {
	depth := 0
	// index of the '[' that opened the outermost loop still open
	outermost := -1
	for i, c := range commands {
		switch c.Kind {
		case LoopStart:
			if depth == 0 {
				outermost = i
			}
			depth++
		case LoopEnd:
			depth--
			if depth < 0 {
				return &BracketError{Err: ErrUnmatchedLoopEnd, Index: i}
			}
		}
	}
	if depth != 0 {
		return &BracketError{Err: ErrUnclosedLoopStart, Index: outermost, Depth: depth}
	}
	return nil
}
