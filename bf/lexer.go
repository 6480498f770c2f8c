package bf

import (
	"fmt"
	"strings"
)

type Kind uint8

const (
	Add Kind = iota + 1
	Sub
	MoveRight
	MoveLeft
	ReadByte
	WriteByte
	LoopStart
	LoopEnd
)

func (k Kind) String() string {
	switch k {
	case Add:
		return "Add"
	case Sub:
		return "Sub"
	case MoveRight:
		return "MoveRight"
	case MoveLeft:
		return "MoveLeft"
	case ReadByte:
		return "ReadByte"
	case WriteByte:
		return "WriteByte"
	case LoopStart:
		return "LoopStart"
	case LoopEnd:
		return "LoopEnd"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Coalesced reports whether consecutive commands of this kind are merged into
// a single command carrying the run length.
func (k Kind) Coalesced() bool {
	return k == Add || k == Sub || k == MoveRight || k == MoveLeft
}

// Command is a single instruction. N is the run length for coalesced kinds and
// zero for everything else.
type Command struct {
	Kind Kind
	N    int
}

func (c Command) String() string {
	if c.Kind.Coalesced() {
		return fmt.Sprintf("%s(%d)", c.Kind, c.N)
	}
	return c.Kind.String()
}

// Source renders the command back as brainfuck.
func (c Command) Source() string {
	ch := symbol(c.Kind)
	if c.Kind.Coalesced() {
		return strings.Repeat(string(ch), c.N)
	}
	return string(ch)
}

func symbol(k Kind) rune {
	switch k {
	case Add:
		return '+'
	case Sub:
		return '-'
	case MoveRight:
		return '>'
	case MoveLeft:
		return '<'
	case ReadByte:
		return ','
	case WriteByte:
		return '.'
	case LoopStart:
		return '['
	case LoopEnd:
		return ']'
	default:
		return ' '
	}
}

// parse maps a character to its command kind. Zero means the character is a
// comment.
func parse(c rune) Kind {
	switch c {
	case '+':
		return Add
	case '-':
		return Sub
	case '>':
		return MoveRight
	case '<':
		return MoveLeft
	case ',':
		return ReadByte
	case '.':
		return WriteByte
	case '[':
		return LoopStart
	case ']':
		return LoopEnd
	default:
		return 0
	}
}

type Lexer struct {
	chars string
}

func NewLexer(input string) *Lexer {
	return &Lexer{
		chars: input,
	}
}

// Lex scans the input once, left to right. Runs of identical arithmetic or
// movement characters collapse into one command; comment characters between
// them end the run.
func (l *Lexer) Lex() []Command {
	commands := []Command{}
	var last Kind
	for _, c := range l.chars {
		kind := parse(c)
		if kind == 0 {
			last = 0
			continue
		}
		if kind.Coalesced() && kind == last {
			commands[len(commands)-1].N++
			continue
		}
		cmd := Command{Kind: kind}
		if kind.Coalesced() {
			cmd.N = 1
		}
		commands = append(commands, cmd)
		last = kind
	}
	return commands
}

func Lex(input string) []Command {
	lexer := NewLexer(input)
	return lexer.Lex()
}
