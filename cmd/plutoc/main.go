package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/pluto-lang/plutoc/internal/config"
	"github.com/pluto-lang/plutoc/internal/errors"
	"github.com/pluto-lang/plutoc/internal/orchestrate"
)

var (
	// Version info, set by ldflags during release builds.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "print version information")
		helpFlag    = flag.Bool("help", false, "show help")
		manifest    = flag.String("manifest", "", "path to plutoc.yaml (overrides positional entry resolution)")
		dumpIR      = flag.Bool("dump-ir", false, "print the lowered IR after a successful build")
		verbose     = flag.Bool("verbose", false, "print per-phase timings")
	)
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	command := flag.Arg(0)
	switch command {
	case "build":
		requireArg(command, "<file>")
		runBuild(flag.Arg(1), *manifest, *dumpIR, *verbose)
	case "check":
		requireArg(command, "<file>")
		runCheck(flag.Arg(1), *manifest, *verbose)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("Error"), command)
		printHelp()
		os.Exit(1)
	}
}

func requireArg(command, usage string) {
	if flag.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "%s: missing file argument\n", red("Error"))
		fmt.Printf("Usage: plutoc %s %s\n", command, usage)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("plutoc %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if BuildTime != "unknown" {
		fmt.Printf("Built:  %s\n", BuildTime)
	}
}

func printHelp() {
	fmt.Println(bold("plutoc - the Pluto compiler core"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  plutoc <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s <file>    compile through codegen and report diagnostics\n", cyan("build"))
	fmt.Printf("  %s <file>    type-check a file without codegen\n", cyan("check"))
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --manifest <path>   load a plutoc.yaml project manifest")
	fmt.Println("  --dump-ir           print the lowered IR (build only)")
	fmt.Println("  --verbose           print per-phase timings")
	fmt.Println()
	fmt.Println("A concrete instruction-selecting backend, and therefore actual")
	fmt.Println("execution of compiled programs, is outside this compiler core's scope;")
	fmt.Println("`build` stops once IR codegen succeeds.")
}

// resolveConfig builds an orchestrate.Config from a file argument and an
// optional manifest path. A manifest's stdlib override takes precedence
// over the default `<entry dir>/stdlib` convention.
func resolveConfig(file, manifestPath string) (orchestrate.Config, error) {
	if manifestPath != "" {
		m, err := config.Load(manifestPath)
		if err != nil {
			return orchestrate.Config{}, err
		}
		cfg := orchestrate.Config{EntryFile: m.EntryPath(), StdlibRoot: m.StdlibPath()}
		if cfg.StdlibRoot == "" {
			cfg.StdlibRoot = filepath.Join(filepath.Dir(m.EntryPath()), "stdlib")
		}
		return cfg, nil
	}
	return orchestrate.Config{
		EntryFile:  file,
		StdlibRoot: filepath.Join(filepath.Dir(file), "stdlib"),
	}, nil
}

func runCheck(file, manifestPath string, verbose bool) {
	cfg, err := resolveConfig(file, manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	cfg.StopAfter = "typecheck"
	res, errs := orchestrate.Run(cfg)
	if len(errs) > 0 {
		printDiagnostics(errs, res)
		os.Exit(1)
	}
	fmt.Printf("%s %s type-checks cleanly\n", green("✓"), file)
	if verbose {
		fmt.Println(res.PhaseReport())
	}
}

func runBuild(file, manifestPath string, dumpIR, verbose bool) {
	cfg, err := resolveConfig(file, manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	res, errs := orchestrate.Run(cfg)
	if len(errs) > 0 {
		printDiagnostics(errs, res)
		os.Exit(1)
	}
	fmt.Printf("%s compiled %s: %d functions, %d vtables\n",
		green("✓"), file, len(res.Module.Funcs), len(res.Module.Vtables))
	if verbose {
		fmt.Println(res.PhaseReport())
	}
	if dumpIR {
		fmt.Println(res.Module.String())
	}
}

// printDiagnostics renders every error through Report.String ("CODE at
// line:col: message"), plus a source
// snippet when the report's Data carries the originating file path.
// Not every phase attaches one yet; see internal/source's DESIGN.md note
// on ast.Pos.FileId never being populated.
func printDiagnostics(errs []error, res *orchestrate.Result) {
	for _, err := range errs {
		rep, ok := errors.AsReport(err)
		if !ok {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("Error"), err)
			continue
		}
		fmt.Fprintln(os.Stderr, red(rep.String()))
		if res == nil || res.Sources == nil || rep.Span == nil {
			continue
		}
		file, _ := rep.Data["file"].(string)
		if file == "" {
			continue
		}
		if snippet := res.Sources.Snippet(file, *rep.Span); snippet != "" {
			fmt.Fprintln(os.Stderr, snippet)
		}
	}
	fmt.Fprintf(os.Stderr, "%s %d error(s)\n", yellow("✗"), len(errs))
}
