package bf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MarcinKonowalczyk/breakfast/bf"
	"github.com/MarcinKonowalczyk/breakfast/utils"
	"github.com/containerd/errdefs"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	utils.AssertNoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestReadConfig(t *testing.T) {
	path := writeConfig(t, `{"tape_size": 40000, "eof": "zero"}`)
	config, err := bf.ReadConfig(path)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, config.TapeSize, 40000)
	utils.AssertEqual(t, config.EOF, bf.EOFZero)
	utils.AssertEqual(t, config.Indent, bf.DefaultIndent)
}

func TestReadConfig_Missing(t *testing.T) {
	_, err := bf.ReadConfig(filepath.Join(t.TempDir(), "nope.json"))
	utils.Assert(t, errdefs.IsNotFound(err), "expected not found")
}

func TestReadConfig_Invalid(t *testing.T) {
	for _, contents := range []string{
		`{"tape_size": 0}`,
		`{"tape_size": 100}`,
		`{"tape_size": 29999}`,
		`{"eof": "sometimes"}`,
		`{"indent": "--"}`,
		`not json`,
	} {
		_, err := bf.ReadConfig(writeConfig(t, contents))
		utils.Assert(t, errdefs.IsInvalidArgument(err), "expected invalid argument for "+contents)
	}
}

func TestParseEOFPolicy(t *testing.T) {
	for input, expected := range map[string]bf.EOFPolicy{
		"":          bf.EOFUnchanged,
		"unchanged": bf.EOFUnchanged,
		"Zero":      bf.EOFZero,
		"-1":        bf.EOFMinusOne,
		"minus-one": bf.EOFMinusOne,
	} {
		policy, err := bf.ParseEOFPolicy(input)
		utils.AssertNoError(t, err)
		utils.AssertEqual(t, policy, expected)
		roundtrip, err := bf.ParseEOFPolicy(policy.String())
		utils.AssertNoError(t, err)
		utils.AssertEqual(t, roundtrip, policy)
	}
}

func TestConfig_TapeSizeBounds(t *testing.T) {
	config := bf.DefaultConfig()
	for _, size := range []int{bf.DefaultTapeSize, 65536, bf.MaxTapeSize} {
		config.TapeSize = size
		utils.AssertNoError(t, config.Validate())
	}
	for _, size := range []int{1, bf.DefaultTapeSize - 1, bf.MaxTapeSize + 1} {
		config.TapeSize = size
		utils.Assert(t, errdefs.IsInvalidArgument(config.Validate()), "expected invalid argument")
	}
}
