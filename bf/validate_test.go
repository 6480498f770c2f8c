package bf_test

import (
	"errors"
	"testing"

	"github.com/MarcinKonowalczyk/breakfast/bf"
	"github.com/MarcinKonowalczyk/breakfast/utils"
	"github.com/containerd/errdefs"
)

func TestValidate_Balanced(t *testing.T) {
	for _, input := range []string{"", "+-.", "[]", "[++[--]++]", "[[[]]][][[]]"} {
		utils.AssertNoError(t, bf.Validate(bf.Lex(input)))
	}
}

func TestValidate_Unclosed(t *testing.T) {
	err := bf.Validate(bf.Lex("[["))
	utils.AssertErrorIs(t, err, bf.ErrUnclosedLoopStart)

	var bracketErr *bf.BracketError
	utils.Assert(t, errors.As(err, &bracketErr), "expected a BracketError")
	utils.AssertEqual(t, bracketErr.Index, 0)
	utils.AssertEqual(t, bracketErr.Depth, 2)
}

func TestValidate_UnclosedReportsOutermostOpenLoop(t *testing.T) {
	// the first loop closes, the second one never does
	err := bf.Validate(bf.Lex("[-]+[[-]"))
	var bracketErr *bf.BracketError
	utils.Assert(t, errors.As(err, &bracketErr), "expected a BracketError")
	utils.AssertErrorIs(t, err, bf.ErrUnclosedLoopStart)
	utils.AssertEqual(t, bracketErr.Index, 4)
	utils.AssertEqual(t, bracketErr.Depth, 1)
}

func TestValidate_Unmatched(t *testing.T) {
	for _, input := range []string{"]", "][", "[]]", "+]["} {
		err := bf.Validate(bf.Lex(input))
		utils.AssertErrorIs(t, err, bf.ErrUnmatchedLoopEnd)
	}
}

func TestValidate_UnmatchedStopsEarly(t *testing.T) {
	// "][" would also be unclosed at the end, but the scan stops at the ']'
	err := bf.Validate(bf.Lex("+]["))
	var bracketErr *bf.BracketError
	utils.Assert(t, errors.As(err, &bracketErr), "expected a BracketError")
	utils.AssertEqual(t, bracketErr.Index, 1)
	utils.Assert(t, !errors.Is(err, bf.ErrUnclosedLoopStart), "unexpected unclosed error")
}

func TestValidate_InvalidArgument(t *testing.T) {
	utils.Assert(t, errdefs.IsInvalidArgument(bf.Validate(bf.Lex("]"))), "expected invalid argument")
	utils.Assert(t, errdefs.IsInvalidArgument(bf.Validate(bf.Lex("["))), "expected invalid argument")
}

func TestBracketError_Message(t *testing.T) {
	err := bf.Validate(bf.Lex("[[+]"))
	utils.AssertContains(t, err.Error(), "malformed source")
	utils.AssertContains(t, err.Error(), "unclosed '['")

	err = bf.Validate(bf.Lex("+]"))
	utils.AssertEqual(t, err.Error(), "malformed source: unmatched ']' at command 1")
}
