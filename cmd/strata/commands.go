package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marmos91/strata/pkg/storage"
)

// environment is what a command runs against.
type environment struct {
	fs     storage.Operator
	mounts interface{ Mounts() []string }
	out    io.Writer
	in     io.Reader
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]command{
	"init":       {usage: "init [-force]", help: "write a default configuration file"},
	"mounts":     {usage: "mounts", help: "list the configured mounts", run: runMounts},
	"ls":         {usage: "ls [-r] [-l] <path>", help: "list a directory", run: runList},
	"cat":        {usage: "cat <path>", help: "print a file", run: runCat},
	"put":        {usage: "put [-visibility v] <local|-> <path>", help: "upload a local file (or stdin)", run: runPut},
	"get":        {usage: "get <path> <local|->", help: "download a file (or print it)", run: runGet},
	"cp":         {usage: "cp [-visibility v] <source> <destination>", help: "copy a file, across mounts too", run: runCopy},
	"mv":         {usage: "mv [-visibility v] <source> <destination>", help: "move a file, across mounts too", run: runMove},
	"rm":         {usage: "rm <path>", help: "delete a file", run: runDelete},
	"rmdir":      {usage: "rmdir <path>", help: "delete a directory and its contents", run: runDeleteDirectory},
	"mkdir":      {usage: "mkdir [-visibility v] <path>", help: "create a directory", run: runCreateDirectory},
	"stat":       {usage: "stat <path>", help: "show file metadata", run: runStat},
	"checksum":   {usage: "checksum [-algo a] <path>", help: "compute a file checksum", run: runChecksum},
	"visibility": {usage: "visibility <path> [public|private]", help: "show or change a file's visibility", run: runVisibility},
}

// commandHelp renders the command list for the usage message.
func commandHelp() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", commands[name].usage, commands[name].help)
	}
	_ = w.Flush()
	return b.String()
}

// parseArgs parses flags of a command and checks the positional argument
// count.
func parseArgs(flags *flag.FlagSet, args []string, lo, hi int) ([]string, error) {
	flags.SetOutput(io.Discard)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	rest := flags.Args()
	if len(rest) < lo || len(rest) > hi {
		return nil, fmt.Errorf("expected %s arguments, got %d", argCount(lo, hi), len(rest))
	}
	return rest, nil
}

func argCount(lo, hi int) string {
	if lo == hi {
		return fmt.Sprint(lo)
	}
	return fmt.Sprintf("%d to %d", lo, hi)
}

// writeConfig builds the config of a write-like command.
func writeConfig(visibility string) (storage.Config, error) {
	if visibility == "" {
		return storage.Config{}, nil
	}
	v, err := storage.ParseVisibility(visibility)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{}.WithSetting(storage.OptionVisibility, string(v)), nil
}

// ============================================================================
// Commands
// ============================================================================

func runMounts(_ context.Context, env *environment, args []string) error {
	if _, err := parseArgs(flag.NewFlagSet("mounts", flag.ContinueOnError), args, 0, 0); err != nil {
		return err
	}
	for _, name := range env.mounts.Mounts() {
		fmt.Fprintf(env.out, "%s://\n", name)
	}
	return nil
}

func runList(ctx context.Context, env *environment, args []string) error {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	recursive := flags.Bool("r", false, "list recursively")
	long := flags.Bool("l", false, "show visibility, size and modification time")
	rest, err := parseArgs(flags, args, 1, 1)
	if err != nil {
		return err
	}

	entries, err := env.fs.ListContents(ctx, rest[0], *recursive).Sort(storage.SortByPath).ToSlice()
	if err != nil {
		return err
	}

	if !*long {
		for _, entry := range entries {
			name := entry.Path()
			if entry.IsDir() {
				name += "/"
			}
			fmt.Fprintln(env.out, name)
		}
		return nil
	}

	w := tabwriter.NewWriter(env.out, 0, 4, 2, ' ', 0)
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			entry.Type(), visibilityColumn(entry), sizeColumn(entry), timeColumn(entry), entry.Path())
	}
	return w.Flush()
}

func visibilityColumn(entry storage.StorageAttributes) string {
	if v := entry.Visibility(); v != "" {
		return string(v)
	}
	return "-"
}

func sizeColumn(entry storage.StorageAttributes) string {
	file, ok := entry.(*storage.FileAttributes)
	if !ok {
		return "-"
	}
	size, ok := file.FileSize()
	if !ok {
		return "?"
	}
	return humanize.IBytes(uint64(size))
}

func timeColumn(entry storage.StorageAttributes) string {
	ts, ok := entry.LastModified()
	if !ok {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func runCat(ctx context.Context, env *environment, args []string) error {
	rest, err := parseArgs(flag.NewFlagSet("cat", flag.ContinueOnError), args, 1, 1)
	if err != nil {
		return err
	}
	return copyOut(ctx, env, rest[0], env.out)
}

func copyOut(ctx context.Context, env *environment, path string, w io.Writer) error {
	stream, err := env.fs.ReadStream(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	_, err = io.Copy(w, stream)
	return err
}

func runPut(ctx context.Context, env *environment, args []string) error {
	flags := flag.NewFlagSet("put", flag.ContinueOnError)
	visibility := flags.String("visibility", "", "visibility of the uploaded file (public, private)")
	rest, err := parseArgs(flags, args, 2, 2)
	if err != nil {
		return err
	}
	cfg, err := writeConfig(*visibility)
	if err != nil {
		return err
	}

	var r io.Reader = env.in
	if rest[0] != "-" {
		f, err := os.Open(rest[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	counter := &countingReader{r: r}
	if err := env.fs.WriteStream(ctx, rest[1], counter, cfg); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "%s: %s written\n", rest[1], humanize.IBytes(uint64(counter.n)))
	return nil
}

func runGet(ctx context.Context, env *environment, args []string) error {
	rest, err := parseArgs(flag.NewFlagSet("get", flag.ContinueOnError), args, 2, 2)
	if err != nil {
		return err
	}
	if rest[1] == "-" {
		return copyOut(ctx, env, rest[0], env.out)
	}

	f, err := os.OpenFile(rest[1], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := copyOut(ctx, env, rest[0], f); err != nil {
		_ = f.Close()
		_ = os.Remove(rest[1])
		return err
	}
	return f.Close()
}

func runTransfer(name string, transfer func(context.Context, string, string, storage.Config) error) func(context.Context, *environment, []string) error {
	return func(ctx context.Context, env *environment, args []string) error {
		flags := flag.NewFlagSet(name, flag.ContinueOnError)
		visibility := flags.String("visibility", "", "visibility of the destination (default: keep the source's)")
		rest, err := parseArgs(flags, args, 2, 2)
		if err != nil {
			return err
		}
		cfg, err := writeConfig(*visibility)
		if err != nil {
			return err
		}
		return transfer(ctx, rest[0], rest[1], cfg)
	}
}

func runCopy(ctx context.Context, env *environment, args []string) error {
	return runTransfer("cp", env.fs.Copy)(ctx, env, args)
}

func runMove(ctx context.Context, env *environment, args []string) error {
	return runTransfer("mv", env.fs.Move)(ctx, env, args)
}

func runDelete(ctx context.Context, env *environment, args []string) error {
	rest, err := parseArgs(flag.NewFlagSet("rm", flag.ContinueOnError), args, 1, 1)
	if err != nil {
		return err
	}
	return env.fs.Delete(ctx, rest[0])
}

func runDeleteDirectory(ctx context.Context, env *environment, args []string) error {
	rest, err := parseArgs(flag.NewFlagSet("rmdir", flag.ContinueOnError), args, 1, 1)
	if err != nil {
		return err
	}
	return env.fs.DeleteDirectory(ctx, rest[0])
}

func runCreateDirectory(ctx context.Context, env *environment, args []string) error {
	flags := flag.NewFlagSet("mkdir", flag.ContinueOnError)
	visibility := flags.String("visibility", "", "visibility of the directory (public, private)")
	rest, err := parseArgs(flags, args, 1, 1)
	if err != nil {
		return err
	}

	cfg := storage.Config{}
	if *visibility != "" {
		v, err := storage.ParseVisibility(*visibility)
		if err != nil {
			return err
		}
		cfg = cfg.WithSetting(storage.OptionDirectoryVisibility, string(v))
	}
	return env.fs.CreateDirectory(ctx, rest[0], cfg)
}

func runStat(ctx context.Context, env *environment, args []string) error {
	rest, err := parseArgs(flag.NewFlagSet("stat", flag.ContinueOnError), args, 1, 1)
	if err != nil {
		return err
	}
	path := rest[0]

	isFile, err := env.fs.FileExists(ctx, path)
	if err != nil {
		return err
	}
	if !isFile {
		isDir, err := env.fs.DirectoryExists(ctx, path)
		if err != nil {
			return err
		}
		if !isDir {
			return fmt.Errorf("%s: no such file or directory", path)
		}
		fmt.Fprintf(env.out, "Path:       %s\nType:       dir\n", path)
		return nil
	}

	size, err := env.fs.FileSize(ctx, path)
	if err != nil {
		return err
	}
	modified, err := env.fs.LastModified(ctx, path)
	if err != nil {
		return err
	}
	visibility, err := env.fs.Visibility(ctx, path)
	if err != nil {
		return err
	}
	mimeType, err := env.fs.MimeType(ctx, path)
	if err != nil {
		// Some content has no detectable type
		if !errors.Is(err, storage.ErrUnableToRetrieveMetadata) {
			return err
		}
		mimeType = "unknown"
	}

	w := tabwriter.NewWriter(env.out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(w, "Path:\t%s\n", path)
	fmt.Fprintf(w, "Type:\tfile\n")
	fmt.Fprintf(w, "Size:\t%s (%d bytes)\n", humanize.IBytes(uint64(size)), size)
	fmt.Fprintf(w, "MimeType:\t%s\n", mimeType)
	fmt.Fprintf(w, "Visibility:\t%s\n", visibility)
	fmt.Fprintf(w, "Modified:\t%s\n", time.Unix(modified, 0).UTC().Format(time.RFC3339))
	return w.Flush()
}

func runChecksum(ctx context.Context, env *environment, args []string) error {
	flags := flag.NewFlagSet("checksum", flag.ContinueOnError)
	algo := flags.String("algo", "", "checksum algorithm ("+strings.Join(storage.ChecksumAlgos(), ", ")+")")
	rest, err := parseArgs(flags, args, 1, 1)
	if err != nil {
		return err
	}

	cfg := storage.Config{}
	if *algo != "" {
		cfg = cfg.WithSetting(storage.OptionChecksumAlgo, strings.ToLower(*algo))
	}

	sum, err := env.fs.Checksum(ctx, rest[0], cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.out, "%s  %s\n", sum, rest[0])
	return nil
}

func runVisibility(ctx context.Context, env *environment, args []string) error {
	rest, err := parseArgs(flag.NewFlagSet("visibility", flag.ContinueOnError), args, 1, 2)
	if err != nil {
		return err
	}

	if len(rest) == 2 {
		v, err := storage.ParseVisibility(rest[1])
		if err != nil {
			return err
		}
		return env.fs.SetVisibility(ctx, rest[0], v)
	}

	v, err := env.fs.Visibility(ctx, rest[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(env.out, v)
	return nil
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
