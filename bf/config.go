package bf

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/containerd/errdefs"
)

const (
	// DefaultTapeSize is also the smallest tape a config may ask for.
	DefaultTapeSize = 30_000
	// MaxTapeSize keeps the tape, a local array in the generated main, well
	// inside a default stack.
	MaxTapeSize   = 1 << 20
	DefaultIndent = "    "
)

// EOFPolicy decides what a read does to the current cell once input is
// exhausted. Brainfuck leaves this open, so it is fixed per generator.
type EOFPolicy uint8

const (
	// EOFUnchanged leaves the cell as it was.
	EOFUnchanged EOFPolicy = iota
	// EOFZero stores 0.
	EOFZero
	// EOFMinusOne stores 255, i.e. -1 truncated to a byte.
	EOFMinusOne
)

func (p EOFPolicy) String() string {
	switch p {
	case EOFUnchanged:
		return "unchanged"
	case EOFZero:
		return "zero"
	case EOFMinusOne:
		return "minus-one"
	default:
		return fmt.Sprintf("EOFPolicy(%d)", uint8(p))
	}
}

func ParseEOFPolicy(s string) (EOFPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unchanged":
		return EOFUnchanged, nil
	case "zero", "0":
		return EOFZero, nil
	case "minus-one", "-1", "255":
		return EOFMinusOne, nil
	}
	return 0, fmt.Errorf("unknown eof policy %q: %w", s, errdefs.ErrInvalidArgument)
}

func (p EOFPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *EOFPolicy) UnmarshalText(text []byte) error {
	v, err := ParseEOFPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Config holds the knobs shared by the generator and the interpreter.
type Config struct {
	// TapeSize is the number of cells on the tape
	TapeSize int `json:"tape_size"`
	// Indent is one level of indentation in the generated C
	Indent string `json:"indent"`
	// EOF is the end-of-input convention for ','
	EOF EOFPolicy `json:"eof"`
}

func DefaultConfig() Config {
	return Config{
		TapeSize: DefaultTapeSize,
		Indent:   DefaultIndent,
		EOF:      EOFUnchanged,
	}
}

func (c Config) Validate() error {
	if c.TapeSize < DefaultTapeSize || c.TapeSize > MaxTapeSize {
		return fmt.Errorf("tape size must be between %d and %d, got %d: %w", DefaultTapeSize, MaxTapeSize, c.TapeSize, errdefs.ErrInvalidArgument)
	}
	if c.Indent == "" || strings.Trim(c.Indent, " \t") != "" {
		return fmt.Errorf("indent must be non-empty whitespace, got %q: %w", c.Indent, errdefs.ErrInvalidArgument)
	}
	if c.EOF > EOFMinusOne {
		return fmt.Errorf("unknown eof policy %d: %w", c.EOF, errdefs.ErrInvalidArgument)
	}
	return nil
}

// ReadConfig reads a JSON config file. Fields missing from the file keep their
// defaults.
func ReadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return config, fmt.Errorf("config file %s not found: %w", path, errdefs.ErrNotFound)
		}
		return config, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parsing config file %s: %v: %w", path, err, errdefs.ErrInvalidArgument)
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("config file %s: %w", path, err)
	}
	return config, nil
}
