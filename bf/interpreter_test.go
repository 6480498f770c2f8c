package bf_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MarcinKonowalczyk/breakfast/bf"
	"github.com/MarcinKonowalczyk/breakfast/utils"
)

func newInterpreter(t *testing.T, source string, input string) (*bf.Interpreter, *bytes.Buffer) {
	t.Helper()
	var output bytes.Buffer
	interpreter, err := bf.NewInterpreter(bf.Lex(source), bf.DefaultConfig(), strings.NewReader(input), &output)
	utils.AssertNoError(t, err)
	return interpreter, &output
}

func TestInterpreter_OutputEmptyInterpreter(t *testing.T) {
	interpreter, err := bf.NewInterpreter(bf.Lex("."), bf.DefaultConfig(), nil, nil)
	utils.AssertNoError(t, err)
	utils.AssertNoError(t, interpreter.Run())
}

func TestInterpreter_InputEmptyInterpreter(t *testing.T) {
	interpreter, err := bf.NewInterpreter(bf.Lex("+,"), bf.DefaultConfig(), nil, nil)
	utils.AssertNoError(t, err)
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 1)
}

func TestInterpreter_Increment(t *testing.T) {
	interpreter, _ := newInterpreter(t, "+++", "")
	utils.AssertEqual(t, interpreter.At(0), 0)
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 3)
}

func TestInterpreter_Decrement(t *testing.T) {
	interpreter, _ := newInterpreter(t, "-", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 255)
}

func TestInterpreter_Wraparound(t *testing.T) {
	interpreter, _ := newInterpreter(t, strings.Repeat("+", 300), "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 44)
}

func TestInterpreter_MoveRight(t *testing.T) {
	interpreter, _ := newInterpreter(t, ">+", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 0)
	utils.AssertEqual(t, interpreter.At(1), 1)
	utils.AssertEqual(t, interpreter.Pointer(), 1)
}

func TestInterpreter_MoveLeftOutOfBounds(t *testing.T) {
	interpreter, _ := newInterpreter(t, "<+", "")
	err := interpreter.Run()
	utils.AssertErrorIs(t, err, bf.ErrPointerOutOfBounds)
	utils.AssertEqual(t, interpreter.At(0), 0)
}

func TestInterpreter_MoveRightOutOfBounds(t *testing.T) {
	last := bf.DefaultTapeSize - 1
	interpreter, _ := newInterpreter(t, strings.Repeat(">", last)+"+>", "")
	utils.AssertEqual(t, interpreter.MemoryLength(), bf.DefaultTapeSize)
	utils.AssertErrorIs(t, interpreter.Run(), bf.ErrPointerOutOfBounds)
	utils.AssertEqual(t, interpreter.At(last), 1)
	utils.AssertEqual(t, interpreter.Pointer(), last)
}

func TestInterpreter_MemoryLength(t *testing.T) {
	config := bf.DefaultConfig()
	config.TapeSize = 65536
	interpreter, err := bf.NewInterpreter(bf.Lex(""), config, nil, nil)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, interpreter.MemoryLength(), 65536)
}

func TestInterpreter_Loop(t *testing.T) {
	interpreter, _ := newInterpreter(t, "+++[->+<]", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, interpreter.At(0), 0)
	utils.AssertEqual(t, interpreter.At(1), 3)
}

func TestInterpreter_SkipLoop(t *testing.T) {
	interpreter, output := newInterpreter(t, "[.[.]]+.", "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, output.String(), "\x01")
}

func TestInterpreter_HelloWorld(t *testing.T) {
	source := "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."
	interpreter, output := newInterpreter(t, source, "")
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, output.String(), "Hello World!\n")
}

func TestInterpreter_Echo(t *testing.T) {
	// EOF must clear the cell or the loop never ends
	config := bf.DefaultConfig()
	config.EOF = bf.EOFZero
	var output bytes.Buffer
	interpreter, err := bf.NewInterpreter(bf.Lex(",[.,]"), config, strings.NewReader("breakfast"), &output)
	utils.AssertNoError(t, err)
	utils.AssertNoError(t, interpreter.Run())
	utils.AssertEqual(t, output.String(), "breakfast")
}

func TestInterpreter_EOFPolicy(t *testing.T) {
	for _, c := range []struct {
		policy   bf.EOFPolicy
		expected uint8
	}{
		{bf.EOFUnchanged, 7},
		{bf.EOFZero, 0},
		{bf.EOFMinusOne, 255},
	} {
		config := bf.DefaultConfig()
		config.EOF = c.policy
		interpreter, err := bf.NewInterpreter(bf.Lex("+++++++,"), config, strings.NewReader(""), nil)
		utils.AssertNoError(t, err)
		utils.AssertNoError(t, interpreter.Run())
		utils.AssertEqual(t, interpreter.At(0), c.expected)
	}
}

func TestInterpreter_Reset(t *testing.T) {
	interpreter, _ := newInterpreter(t, "+>+", "")
	utils.AssertNoError(t, interpreter.Run())
	interpreter.Reset()
	utils.AssertEqual(t, interpreter.At(0), 0)
	utils.AssertEqual(t, interpreter.At(1), 0)
	utils.AssertEqual(t, interpreter.Pointer(), 0)
}

func TestInterpreter_Malformed(t *testing.T) {
	_, err := bf.NewInterpreter(bf.Lex("[["), bf.DefaultConfig(), nil, nil)
	utils.AssertErrorIs(t, err, bf.ErrUnclosedLoopStart)
}

func TestInterpreter_Cancel(t *testing.T) {
	interpreter, _ := newInterpreter(t, "+[]", "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	utils.AssertErrorIs(t, interpreter.RunContext(ctx), context.DeadlineExceeded)
}
