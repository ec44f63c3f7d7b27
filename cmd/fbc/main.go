package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/klauspost/compress/s2"
	"github.com/timtadh/getopt"

	"github.com/0xRadioAc7iv/go-filebacked/core"
	"github.com/0xRadioAc7iv/go-filebacked/internal"
	"github.com/0xRadioAc7iv/go-filebacked/internal/server"
	"github.com/0xRadioAc7iv/go-filebacked/internal/utils"
)

var ErrorCodes = map[string]int{
	"usage":   0,
	"opts":    3,
	"badint":  5,
	"badkind": 6,
	"failed":  7,
}

var UsageMessage = "fbc [-v] <serve|inspect|compact|dump> [options] <path>"
var ExtendedMessage = `
fbc -- serve and maintain file-backed collections

Global Options
  -h, --help                view this message
  -v, --verbose             log at debug level

serve <path>
  Serve a dictionary file over TCP.

  Options
    --host=<host>           default: 127.0.0.1
    -p, --port=<int>        default: 6969, the next free port is used if taken
    --cache=<int>           number of decoded values to cache, default: 0
    --sync                  fsync after every write
    --compress              s2-compress values (new files only)

inspect <path>
  Print record, size and free space statistics. The file is opened read-only.

  Options
    -k, --kind=<kind>       dictionary, set, list or log. default: dictionary

compact <path>
  Rewrite the file without dead space.

  Options
    -k, --kind=<kind>       dictionary, set or list. default: dictionary

dump <path>
  Print every element, one per line, with values quoted.

  Options
    -k, --kind=<kind>       dictionary, set, list or log. default: dictionary
    -z, --s2                write the dump as an s2 stream
`

func Usage(code int) {
	fmt.Fprintln(os.Stderr, UsageMessage)
	if code == 0 {
		fmt.Fprintln(os.Stdout, ExtendedMessage)
		code = ErrorCodes["usage"]
	} else {
		fmt.Fprintln(os.Stderr, "Try -h or --help for help")
	}
	os.Exit(code)
}

func ParseInt(str string) int {
	i, err := strconv.Atoi(str)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing '%v' expected an int\n", str)
		Usage(ErrorCodes["badint"])
	}
	return i
}

func main() {
	args, optargs, err := getopt.GetOpt(
		os.Args[1:],
		"hv",
		[]string{"help", "verbose"},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}

	level := slog.LevelInfo
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		case "-v", "--verbose":
			level = slog.LevelDebug
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag '%v'\n", oa.Opt())
			Usage(ErrorCodes["opts"])
		}
	}

	if len(args) <= 0 {
		fmt.Fprintln(os.Stderr, "Must supply a command, try --help")
		Usage(ErrorCodes["opts"])
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	commands := map[string]func(*slog.Logger, []string) error{
		"serve":   Serve,
		"inspect": Inspect,
		"compact": Compact,
		"dump":    Dump,
	}

	command, has := commands[args[0]]
	if !has {
		fmt.Fprintf(os.Stderr, "Command '%v' not supported\n", args[0])
		Usage(ErrorCodes["opts"])
	}
	if err := command(logger, args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "fbc:", err)
		os.Exit(ErrorCodes["failed"])
	}
}

// pathArg returns the single positional argument left after option parsing.
func pathArg(args []string) string {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Must supply exactly one file path")
		Usage(ErrorCodes["opts"])
	}
	return args[0]
}

func assertKind(kind string, allowed ...string) string {
	for _, k := range allowed {
		if kind == k {
			return kind
		}
	}
	fmt.Fprintf(os.Stderr, "Kind '%v' not supported here, expected one of %v\n", kind, allowed)
	Usage(ErrorCodes["badkind"])
	return ""
}

func Serve(logger *slog.Logger, argv []string) error {
	args, optargs, err := getopt.GetOpt(
		argv,
		"hp:",
		[]string{"help", "host=", "port=", "cache=", "sync", "compress"},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}

	cfg := internal.DefaultConfig()
	opts := []core.Option{core.WithLogger(logger)}
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		case "--host":
			cfg.Host = oa.Arg()
		case "-p", "--port":
			cfg.Port = ParseInt(oa.Arg())
		case "--cache":
			opts = append(opts, core.WithCacheSize(ParseInt(oa.Arg())))
		case "--sync":
			opts = append(opts, core.WithSyncWrites())
		case "--compress":
			opts = append(opts, core.WithCompression())
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag '%v'\n", oa.Opt())
			Usage(ErrorCodes["opts"])
		}
	}
	path := pathArg(args)

	db, err := core.OpenConcurrentDictionary(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing store", "path", path, "error", err)
		}
	}()
	logger.Info("opened store", "path", path, "records", db.Size())

	ln, err := server.Listen(cfg.Host, cfg.Port)
	if err != nil {
		return err
	}

	ctx, stop := utils.ContextUntilInterruptOrKill(context.Background())
	defer stop()

	handler := server.NewHandler(db, logger)
	err = server.Serve(ctx, ln, func(conn net.Conn) { handler.ServeConn(ctx, conn) }, logger)
	if err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

// kindArgs parses the options shared by the maintenance commands. Options
// other than --help and --kind are passed to extra, which reports whether it
// recognized them.
func kindArgs(argv []string, short string, long []string, extra func(opt, arg string) bool) (kind string, args []string) {
	args, optargs, err := getopt.GetOpt(argv, "hk:"+short, append([]string{"help", "kind="}, long...))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		Usage(ErrorCodes["opts"])
	}

	kind = "dictionary"
	for _, oa := range optargs {
		switch oa.Opt() {
		case "-h", "--help":
			Usage(0)
		case "-k", "--kind":
			kind = oa.Arg()
		default:
			if extra == nil || !extra(oa.Opt(), oa.Arg()) {
				fmt.Fprintf(os.Stderr, "Unknown flag '%v'\n", oa.Opt())
				Usage(ErrorCodes["opts"])
			}
		}
	}
	return kind, args
}

// collection is the part of every engine that the maintenance commands use.
type collection interface {
	Stats() core.Stats
	Close() error
}

func open(kind, path string, opts ...core.Option) (collection, error) {
	switch kind {
	case "set":
		return core.OpenSet(path, opts...)
	case "list":
		return core.OpenList(path, opts...)
	case "log":
		return core.OpenAppendLog(path, opts...)
	default:
		return core.OpenDictionary(path, opts...)
	}
}

func Inspect(logger *slog.Logger, argv []string) error {
	kind, args := kindArgs(argv, "", nil, nil)
	kind = assertKind(kind, "dictionary", "set", "list", "log")
	path := pathArg(args)

	c, err := open(kind, path, core.WithReadOnly(), core.WithLogger(logger))
	if err != nil {
		return err
	}
	defer c.Close()

	st := c.Stats()
	fmt.Printf("path:        %s\n", path)
	fmt.Printf("kind:        %s\n", kind)
	fmt.Printf("records:     %d\n", st.Records)
	fmt.Printf("file bytes:  %d\n", st.FileSize)
	fmt.Printf("free bytes:  %d\n", st.FreeBytes)
	fmt.Printf("free ranges: %d\n", st.FreeRanges)
	return nil
}

func Compact(logger *slog.Logger, argv []string) error {
	kind, args := kindArgs(argv, "", nil, nil)
	kind = assertKind(kind, "dictionary", "set", "list")
	path := pathArg(args)

	c, err := open(kind, path, core.WithCreateIfMissing(false), core.WithLogger(logger))
	if err != nil {
		return err
	}
	before := c.Stats()

	compactor := c.(interface{ Compact() error })
	if err := compactor.Compact(); err != nil {
		return errors.Join(err, c.Close())
	}
	after := c.Stats()
	if err := c.Close(); err != nil {
		return err
	}

	logger.Info("compacted", "path", path, "records", after.Records, "bytes_before", before.FileSize, "bytes_after", after.FileSize)
	return nil
}

func Dump(logger *slog.Logger, argv []string) error {
	compress := false
	kind, args := kindArgs(argv, "z", []string{"s2"}, func(opt, _ string) bool {
		if opt == "-z" || opt == "--s2" {
			compress = true
			return true
		}
		return false
	})
	kind = assertKind(kind, "dictionary", "set", "list", "log")
	path := pathArg(args)

	c, err := open(kind, path, core.WithReadOnly(), core.WithLogger(logger))
	if err != nil {
		return err
	}

	err = writeDump(os.Stdout, c, compress)
	return errors.Join(err, c.Close())
}

// writeDump writes c to w, through an s2 stream when compress is set. The
// stream is terminated even when the dump fails part way.
func writeDump(w io.Writer, c collection, compress bool) (err error) {
	if !compress {
		return dump(w, c)
	}

	zw := s2.NewWriter(w)
	defer func() {
		err = errors.Join(err, zw.Close())
	}()
	return dump(zw, c)
}

func dump(w io.Writer, c collection) error {
	switch c := c.(type) {
	case *core.Dictionary:
		it := c.Iterate()
		for it.Next() {
			if _, err := fmt.Fprintf(w, "%q\t%q\n", it.Key(), it.Value()); err != nil {
				return err
			}
		}
		return it.Err()
	case *core.Set:
		for member := range c.All() {
			if _, err := fmt.Fprintf(w, "%q\n", member); err != nil {
				return err
			}
		}
	case *core.List:
		for i, value := range c.All() {
			if _, err := fmt.Fprintf(w, "%d\t%q\n", i, value); err != nil {
				return err
			}
		}
		return c.Err()
	case *core.AppendLog:
		for i, value := range c.All() {
			if _, err := fmt.Fprintf(w, "%d\t%q\n", i, value); err != nil {
				return err
			}
		}
		return c.Err()
	}
	return nil
}
