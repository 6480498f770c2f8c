package bf

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/containerd/log"
)

var ErrPointerOutOfBounds = errors.New("pointer out of bounds")

// Interpreter executes a command sequence directly, with the same semantics
// as the C produced by a Generator with the same Config.
type Interpreter struct {
	Program     []Command
	program_ptr int
	jumps       []int
	mem         []uint8
	mem_ptr     int
	eof         EOFPolicy
	Input       io.Reader
	Output      io.Writer
}

// NewInterpreter validates the program and precomputes loop jumps.
func NewInterpreter(program []Command, config Config, input io.Reader, output io.Writer) (*Interpreter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := Validate(program); err != nil {
		return nil, err
	}
	return &Interpreter{
		Program: program,
		jumps:   matchLoops(program),
		mem:     make([]uint8, config.TapeSize),
		eof:     config.EOF,
		Input:   input,
		Output:  output,
	}, nil
}

// matchLoops pairs every '[' with its ']' (and back). Other entries are -1.
func matchLoops(program []Command) []int {
	jumps := make([]int, len(program))
	stack := []int{}
	for j, c := range program {
		jumps[j] = -1
		switch c.Kind {
		case LoopStart:
			stack = append(stack, j)
		case LoopEnd:
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			jumps[open] = j
			jumps[j] = open
		}
	}
	return jumps
}

func (i *Interpreter) Reset() {
	i.program_ptr = 0
	i.mem_ptr = 0
	for j := range i.mem {
		i.mem[j] = 0
	}
}

// MemoryLength is the number of tape cells.
func (i *Interpreter) MemoryLength() int {
	return len(i.mem)
}

// Index the memory
func (i *Interpreter) At(j int) uint8 {
	return i.mem[j]
}

func (i *Interpreter) Pointer() int {
	return i.mem_ptr
}

// Run the program until it finishes, fails or ctx is done
func (i *Interpreter) RunContext(ctx context.Context) error {
	for i.program_ptr < len(i.Program) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c := i.Program[i.program_ptr]
		switch c.Kind {
		case Add:
			i.mem[i.mem_ptr] += uint8(c.N % 256)
		case Sub:
			i.mem[i.mem_ptr] -= uint8(c.N % 256)
		case MoveRight:
			if c.N >= i.MemoryLength()-i.mem_ptr {
				return fmt.Errorf("command %d (%s): %w", i.program_ptr, c, ErrPointerOutOfBounds)
			}
			i.mem_ptr += c.N
		case MoveLeft:
			if c.N > i.mem_ptr {
				return fmt.Errorf("command %d (%s): %w", i.program_ptr, c, ErrPointerOutOfBounds)
			}
			i.mem_ptr -= c.N
		case WriteByte:
			if i.Output != nil {
				if _, err := i.Output.Write([]byte{i.mem[i.mem_ptr]}); err != nil {
					return fmt.Errorf("writing output: %w", err)
				}
			}
		case ReadByte:
			if err := i.read(ctx); err != nil {
				return err
			}
		case LoopStart:
			if i.mem[i.mem_ptr] == 0 {
				i.program_ptr = i.jumps[i.program_ptr]
			}
		case LoopEnd:
			if i.mem[i.mem_ptr] != 0 {
				i.program_ptr = i.jumps[i.program_ptr]
			}
		}
		i.program_ptr++
	}
	return nil
}

func (i *Interpreter) read(ctx context.Context) error {
	buff := make([]byte, 1)
	n := 0
	var err error
	if i.Input != nil {
		n, err = io.ReadFull(i.Input, buff)
	}
	if n == 1 {
		i.mem[i.mem_ptr] = buff[0]
		return nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}
	log.G(ctx).WithField("policy", i.eof).Debug("EOF")
	switch i.eof {
	case EOFZero:
		i.mem[i.mem_ptr] = 0
	case EOFMinusOne:
		i.mem[i.mem_ptr] = 255
	}
	return nil
}

func (i *Interpreter) Run() error {
	return i.RunContext(context.Background())
}
