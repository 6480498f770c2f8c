package bf

import (
	"fmt"
	"strings"
)

const boundsError = `fprintf(stderr, "Error: Pointer out of bounds\n"); return 1;`

// Generator emits C source for a validated command sequence. It holds no
// state between calls and is safe for concurrent use.
type Generator struct {
	config Config
}

func NewGenerator(config Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Generator{config: config}, nil
}

// DefaultGenerator uses DefaultConfig.
func DefaultGenerator() *Generator {
	return &Generator{config: DefaultConfig()}
}

func (g *Generator) Config() Config {
	return g.config
}

// emitter tracks the indent level while writing statements.
type emitter struct {
	b      strings.Builder
	indent string
	level  int
}

func (e *emitter) line(format string, args ...interface{}) {
	e.b.WriteString(strings.Repeat(e.indent, e.level))
	fmt.Fprintf(&e.b, format, args...)
	e.b.WriteByte('\n')
}

// Generate translates commands into a complete C program. The sequence must
// have passed Validate.
func (g *Generator) Generate(commands []Command) string {
	e := &emitter{indent: g.config.Indent}

	e.line("#include <stdio.h>")
	e.b.WriteByte('\n')
	e.line("int main(void) {")
	e.level = 1
	e.line("unsigned char tape[%d] = {0};", g.config.TapeSize)
	e.line("unsigned char *ptr = tape;")
	e.b.WriteByte('\n')

	for _, c := range commands {
		switch c.Kind {
		case Add:
			e.line("*ptr += %d;", c.N)
		case Sub:
			e.line("*ptr -= %d;", c.N)
		case MoveRight:
			e.line("ptr += %d;", c.N)
			e.line("if (ptr >= tape + sizeof(tape)) { %s }", boundsError)
		case MoveLeft:
			e.line("ptr -= %d;", c.N)
			e.line("if (ptr < tape) { %s }", boundsError)
		case ReadByte:
			e.line("%s", g.read())
		case WriteByte:
			e.line("putchar(*ptr);")
		case LoopStart:
			e.line("while (*ptr) {")
			e.level++
		case LoopEnd:
			e.level--
			// Unreachable for validated input; keeps the closing brace inside
			// main if an unvalidated sequence slips through.
			if e.level < 1 {
				e.level = 1
			}
			e.line("}")
		}
	}

	if len(commands) > 0 {
		e.b.WriteByte('\n')
	}
	e.line("return 0;")
	e.level = 0
	e.line("}")
	return e.b.String()
}

func (g *Generator) read() string {
	switch g.config.EOF {
	case EOFZero:
		return "{ int c = getchar(); *ptr = c == EOF ? 0 : (unsigned char)c; }"
	case EOFMinusOne:
		return "{ int c = getchar(); *ptr = c == EOF ? 255 : (unsigned char)c; }"
	default:
		return "{ int c = getchar(); if (c != EOF) *ptr = (unsigned char)c; }"
	}
}
