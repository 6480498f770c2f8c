package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/containerd/errdefs"
	"github.com/containerd/fifo"
	"github.com/containerd/log"
	"github.com/sirupsen/logrus"

	"github.com/MarcinKonowalczyk/breakfast/bf"
	"github.com/MarcinKonowalczyk/breakfast/service"
	"github.com/MarcinKonowalczyk/breakfast/web"
)

// comptime override for debug flag
// set with `-ldflags="-X 'main.debug=true'"`
var debug string

const (
	exitOK        = 0
	exitMalformed = 1
	exitIO        = 2
	exitRuntime   = 3
	exitUsage     = 64
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(status)
}

// usageError marks bad invocations, as opposed to failures while working.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...interface{}) error {
	return usageError{fmt.Errorf(format, args...)}
}

func splitCommand(args []string) (string, []string) {
	if len(args) > 0 {
		switch args[0] {
		case "transpile", "run", "serve", "web":
			return args[0], args[1:]
		}
	}
	return "transpile", args
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	name, args := splitCommand(args)

	logger := logrus.New()
	logger.SetOutput(stderr)
	ctx = log.WithLogger(ctx, logrus.NewEntry(logger).WithField("command", name))

	var err error
	switch name {
	case "transpile":
		err = runTranspile(ctx, args, stdin, stdout, stderr)
	case "run":
		err = runInterpreter(ctx, args, stdin, stdout, stderr)
	case "serve":
		err = runServe(ctx, args, stderr)
	case "web":
		err = runWeb(ctx, args, stderr)
	}
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return exitOK
	}

	fmt.Fprintln(stderr, "Error:", err)
	var usageErr usageError
	switch {
	case errors.As(err, &usageErr):
		return exitUsage
	case errors.Is(err, bf.ErrUnmatchedLoopEnd), errors.Is(err, bf.ErrUnclosedLoopStart):
		return exitMalformed
	case errors.Is(err, bf.ErrPointerOutOfBounds):
		return exitRuntime
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// interrupted by a signal
		return exitRuntime
	case errdefs.IsInvalidArgument(err):
		// bad configuration values
		return exitUsage
	default:
		return exitIO
	}
}

// commonFlags are shared by every subcommand that builds a generator.
type commonFlags struct {
	file       string
	configPath string
	tapeSize   int
	eof        string
	indent     string
	debug      bool
}

func newFlagSet(name string, stderr io.Writer, common *commonFlags) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&common.configPath, "config", "", "JSON config file")
	flags.IntVar(&common.tapeSize, "tape", bf.DefaultTapeSize, "number of tape cells")
	flags.StringVar(&common.eof, "eof", "unchanged", "end-of-input policy for ',' (unchanged, zero, minus-one)")
	flags.StringVar(&common.indent, "indent", bf.DefaultIndent, "indentation unit of the generated C")
	flags.BoolVar(&common.debug, "debug", false, "enable debug logging")
	return flags
}

func parseFlags(ctx context.Context, flags *flag.FlagSet, args []string, common *commonFlags) error {
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{err}
	}
	if common.debug || debug != "" {
		log.G(ctx).Logger.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// config layers explicitly set flags over the config file over the defaults.
func (c *commonFlags) config(flags *flag.FlagSet) (bf.Config, error) {
	config := bf.DefaultConfig()
	if c.configPath != "" {
		var err error
		if config, err = bf.ReadConfig(c.configPath); err != nil {
			return config, err
		}
	}

	var err error
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tape":
			config.TapeSize = c.tapeSize
		case "indent":
			config.Indent = c.indent
		case "eof":
			var policy bf.EOFPolicy
			if policy, err = bf.ParseEOFPolicy(c.eof); err == nil {
				config.EOF = policy
			}
		}
	})
	if err != nil {
		return config, err
	}
	return config, config.Validate()
}

// readSource takes the program from -file (or stdin for "-") or from the
// single positional argument.
func readSource(flags *flag.FlagSet, file string, stdin io.Reader) (string, error) {
	switch {
	case file != "" && flags.NArg() > 0:
		return "", usagef("give either -file or a source argument, not both")
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading source file: %w", err)
		}
		return string(data), nil
	case flags.NArg() == 1:
		return flags.Arg(0), nil
	case flags.NArg() == 0:
		return "", usagef("no source: use -file or pass the program as an argument")
	default:
		return "", usagef("expected one source argument, got %d", flags.NArg())
	}
}

func runTranspile(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	var common commonFlags
	var output string
	flags := newFlagSet("transpile", stderr, &common)
	flags.StringVar(&common.file, "file", "", "brainfuck source file ('-' for stdin)")
	flags.StringVar(&output, "o", "", "output file (default stdout); may be a FIFO")
	if err := parseFlags(ctx, flags, args, &common); err != nil {
		return err
	}

	config, err := common.config(flags)
	if err != nil {
		return err
	}
	source, err := readSource(flags, common.file, stdin)
	if err != nil {
		return err
	}

	g, err := bf.NewGenerator(config)
	if err != nil {
		return err
	}
	code, err := g.Transpile(source)
	if err != nil {
		return err
	}
	log.G(ctx).WithField("size", len(code)).Debug("transpiled")

	if err := writeOutput(ctx, output, code, stdout); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(stderr, "Wrote C code to %s\n", output)
	}
	return nil
}

// writeOutput writes code to path, or to stdout when path is empty. A FIFO
// is opened without truncation and blocks until a reader appears or ctx is
// done.
func writeOutput(ctx context.Context, path string, code string, stdout io.Writer) error {
	if path == "" {
		if _, err := io.WriteString(stdout, code); err != nil {
			return fmt.Errorf("writing stdout: %w", err)
		}
		return nil
	}

	isFifo, err := fifo.IsFifo(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking whether file %s is a fifo: %w", path, err)
	}
	if !isFifo {
		if err := os.WriteFile(path, []byte(code), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		return nil
	}

	log.G(ctx).WithField("path", path).Debug("waiting for fifo reader")
	fw, err := fifo.OpenFifo(ctx, path, syscall.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening write only fifo %s: %w", path, err)
	}
	defer fw.Close()
	if _, err := io.WriteString(fw, code); err != nil {
		return fmt.Errorf("writing fifo %s: %w", path, err)
	}
	return nil
}

func runInterpreter(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	var common commonFlags
	flags := newFlagSet("run", stderr, &common)
	flags.StringVar(&common.file, "file", "", "brainfuck source file")
	if err := parseFlags(ctx, flags, args, &common); err != nil {
		return err
	}
	if common.file == "-" {
		return usagef("run reads program input from stdin; -file - is not allowed")
	}

	config, err := common.config(flags)
	if err != nil {
		return err
	}
	source, err := readSource(flags, common.file, stdin)
	if err != nil {
		return err
	}

	interpreter, err := bf.NewInterpreter(bf.Lex(source), config, stdin, stdout)
	if err != nil {
		return err
	}
	return interpreter.RunContext(ctx)
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	var common commonFlags
	var address string
	var cacheSize int
	flags := newFlagSet("serve", stderr, &common)
	flags.StringVar(&address, "address", "", "unix socket to listen on")
	flags.IntVar(&cacheSize, "cache", bf.DefaultCacheSize, "number of transpiled sources to remember")
	if err := parseFlags(ctx, flags, args, &common); err != nil {
		return err
	}
	if address == "" {
		return usagef("invalid argument: -address is required")
	}

	config, err := common.config(flags)
	if err != nil {
		return err
	}

	l, err := net.Listen("unix", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}
	defer l.Close()

	return service.Serve(ctx, l, service.Config{Generator: config, CacheSize: cacheSize})
}

func runWeb(ctx context.Context, args []string, stderr io.Writer) error {
	var common commonFlags
	var listen, remote string
	var cacheSize int
	flags := newFlagSet("web", stderr, &common)
	flags.StringVar(&listen, "listen", ":8080", "address to serve the websocket on")
	flags.StringVar(&remote, "remote", "", "unix socket of a running 'serve' to forward to")
	flags.IntVar(&cacheSize, "cache", bf.DefaultCacheSize, "number of transpiled sources to remember")
	if err := parseFlags(ctx, flags, args, &common); err != nil {
		return err
	}

	var transpiler bf.Transpiler
	if remote != "" {
		client, err := service.Dial(ctx, remote)
		if err != nil {
			return err
		}
		defer client.Close()
		transpiler = client.Bind(ctx)
	} else {
		config, err := common.config(flags)
		if err != nil {
			return err
		}
		g, err := bf.NewGenerator(config)
		if err != nil {
			return err
		}
		transpiler = bf.NewCache(g, cacheSize)
	}

	l, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listen, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", web.NewHandler(transpiler))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(l)
	}()
	log.G(ctx).WithField("address", l.Addr().String()).Info("serving websocket on /ws")

	select {
	case err := <-served:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
