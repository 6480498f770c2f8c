package bf

// Transpiler turns brainfuck source into C source. A non-nil error means no
// code was produced.
type Transpiler interface {
	Transpile(source string) (string, error)
}

var _ Transpiler = (*Generator)(nil)

// Transpile tokenizes, validates and, only if the structure is sound,
// generates C.
func (g *Generator) Transpile(source string) (string, error) {
	commands := Lex(source)
	if err := Validate(commands); err != nil {
		return "", err
	}
	return g.Generate(commands), nil
}

// Transpile uses the default generator.
func Transpile(source string) (string, error) {
	return DefaultGenerator().Transpile(source)
}
