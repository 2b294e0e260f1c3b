// Command qwt builds and queries quad wavelet tree index files.
//
// Index files are zstd-compressed serialized trees. The symbol regime
// (byte or 32-bit) is recorded in the file and picked up again on load.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	qwt "github.com/AlexWan0/go-qwt"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
)

var (
	Output  = pflag.StringP("output", "o", "index.qwt", "output path for build")
	Block   = pflag.Int("block", 256, "rank block size in symbols (256 or 512)")
	Wide    = pflag.Bool("wide", false, "force the 32-bit symbol regime even for small alphabets")
	Verbose = pflag.BoolP("verbose", "v", false, "debug logging")
	LogJSON = pflag.Bool("log-json", false, "use json logs")
	Help    = pflag.BoolP("help", "h", false, "show this help text")
)

const usage = `usage: qwt [options] <command> ...

commands:
  build <input>                    index a whitespace-separated list of integers
  query <index> access <i>         symbol at position i
  query <index> rank <c> <i>       occurrences of c in [0, i)
  query <index> select <c> <j>     position of the j-th occurrence of c
  query <index> count <c>          total occurrences of c
  info <index>                     print index parameters

options:
`

func main() {
	pflag.Parse()

	if *Help || pflag.NArg() == 0 {
		fmt.Printf("%s%s", usage, pflag.CommandLine.FlagUsages())
		if *Help {
			return
		}
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *Verbose {
		level = slog.LevelDebug
	}
	if *LogJSON {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	} else {
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level: level,
		})))
	}

	if err := run(pflag.Args()); err != nil {
		slog.Error("qwt failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "build":
		if len(rest) != 1 {
			return errors.New("build takes exactly one input path")
		}
		return build(rest[0], *Output)
	case "query":
		if len(rest) < 2 {
			return errors.New("query takes an index path and an operation")
		}
		return query(rest[0], rest[1], rest[2:])
	case "info":
		if len(rest) != 1 {
			return errors.New("info takes exactly one index path")
		}
		return info(rest[0])
	default:
		return errors.Newf("unknown command %q", cmd)
	}
}

func build(inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	var vals []uint32
	maxSym := uint64(0)
	sc := bufio.NewScanner(in)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		v, err := strconv.ParseUint(sc.Text(), 10, 32)
		if err != nil {
			return errors.Wrapf(err, "parse %q", sc.Text())
		}
		if v > maxSym {
			maxSym = v
		}
		vals = append(vals, uint32(v))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	slog.Debug("read input", "path", inPath, "symbols", len(vals), "max", maxSym)

	var idx index
	if maxSym <= 255 && !*Wide {
		narrow := make([]uint8, len(vals))
		for i, v := range vals {
			narrow[i] = uint8(v)
		}
		t, err := qwt.NewWithConfig(narrow, qwt.Config{BlockSize: *Block})
		if err != nil {
			return err
		}
		idx = narrowIndex{t}
	} else {
		t, err := qwt.NewWithConfig(vals, qwt.Config{BlockSize: *Block})
		if err != nil {
			return err
		}
		idx = wideIndex{t}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	zw, err := zstd.NewWriter(out)
	if err != nil {
		return err
	}
	if err := idx.serialize(zw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	slog.Info("built index", "path", outPath,
		"n", idx.Len(), "depth", idx.Depth(), "bytes", idx.SpaceUsage())
	return out.Close()
}

func query(path, op string, args []string) error {
	idx, err := load(path)
	if err != nil {
		return err
	}
	arg := func(i int) (uint64, error) {
		if i >= len(args) {
			return 0, errors.Newf("%s: missing argument", op)
		}
		return strconv.ParseUint(args[i], 10, 64)
	}

	switch op {
	case "access":
		i, err := arg(0)
		if err != nil {
			return err
		}
		if v, ok := idx.access(i); ok {
			fmt.Println(v)
		} else {
			fmt.Println("none")
		}
	case "rank":
		c, err := arg(0)
		if err != nil {
			return err
		}
		i, err := arg(1)
		if err != nil {
			return err
		}
		if v, ok := idx.rank(i, c); ok {
			fmt.Println(v)
		} else {
			fmt.Println("none")
		}
	case "select":
		c, err := arg(0)
		if err != nil {
			return err
		}
		j, err := arg(1)
		if err != nil {
			return err
		}
		if v, ok := idx.sel(j, c); ok {
			fmt.Println(v)
		} else {
			fmt.Println("none")
		}
	case "count":
		c, err := arg(0)
		if err != nil {
			return err
		}
		fmt.Println(idx.count(c))
	default:
		return errors.Newf("unknown operation %q", op)
	}
	return nil
}

func info(path string) error {
	idx, err := load(path)
	if err != nil {
		return err
	}
	fmt.Printf("n:          %d\n", idx.Len())
	fmt.Printf("max symbol: %d\n", idx.MaxSymbol())
	fmt.Printf("depth:      %d\n", idx.Depth())
	fmt.Printf("block size: %d\n", idx.BlockSize())
	fmt.Printf("regime:     %s\n", idx.regime())
	fmt.Printf("bytes:      %d\n", idx.SpaceUsage())
	return nil
}

// index erases the symbol type so the commands handle both regimes.
type index interface {
	Len() uint64
	MaxSymbol() uint64
	Depth() int
	BlockSize() int
	SpaceUsage() uint64
	regime() string
	serialize(w io.Writer) error
	access(i uint64) (uint64, bool)
	rank(i, c uint64) (uint64, bool)
	sel(j, c uint64) (uint64, bool)
	count(c uint64) uint64
}

type narrowIndex struct {
	*qwt.QuadWaveletTree[uint8]
}

func (x narrowIndex) regime() string              { return "narrow (8-bit)" }
func (x narrowIndex) serialize(w io.Writer) error { return x.Serialize(w) }

func (x narrowIndex) access(i uint64) (uint64, bool) {
	v, ok := x.Access(i)
	return uint64(v), ok
}

func (x narrowIndex) rank(i, c uint64) (uint64, bool) {
	if c > 255 {
		return 0, false
	}
	return x.Rank(i, uint8(c))
}

func (x narrowIndex) sel(j, c uint64) (uint64, bool) {
	if c > 255 {
		return 0, false
	}
	return x.Select(j, uint8(c))
}

func (x narrowIndex) count(c uint64) uint64 {
	if c > 255 {
		return 0
	}
	return x.Count(uint8(c))
}

type wideIndex struct {
	*qwt.QuadWaveletTree[uint32]
}

func (x wideIndex) regime() string              { return "wide (32-bit)" }
func (x wideIndex) serialize(w io.Writer) error { return x.Serialize(w) }

func (x wideIndex) access(i uint64) (uint64, bool) {
	v, ok := x.Access(i)
	return uint64(v), ok
}

func (x wideIndex) rank(i, c uint64) (uint64, bool) {
	if c > 1<<32-1 {
		return 0, false
	}
	return x.Rank(i, uint32(c))
}

func (x wideIndex) sel(j, c uint64) (uint64, bool) {
	if c > 1<<32-1 {
		return 0, false
	}
	return x.Select(j, uint32(c))
}

func (x wideIndex) count(c uint64) uint64 {
	if c > 1<<32-1 {
		return 0
	}
	return x.Count(uint32(c))
}

// load reads an index file, trying the narrow regime first and falling back
// to wide on a width mismatch.
func load(path string) (index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}

	if t, err := qwt.Deserialize[uint8](bytes.NewReader(data)); err == nil {
		return narrowIndex{t}, nil
	} else if !errors.Is(err, qwt.ErrSymbolWidth) {
		return nil, err
	}
	t, err := qwt.Deserialize[uint32](bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return wideIndex{t}, nil
}
