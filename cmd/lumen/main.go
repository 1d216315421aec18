// Command lumen loads a compiled lumen Unit and runs one of its
// entrypoints to completion against the host embedding boundary in
// pkg/lumen (spec.md §6.1/§6.2).
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
	"code.hybscloud.com/lumen/pkg/lumen"
)

func main() {
	app := &cli.App{
		Name:  "lumen",
		Usage: "run a compiled lumen unit",
		Commands: []*cli.Command{
			runCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "execute one entrypoint of a compiled unit",
	ArgsUsage: "[args...]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "unit", Required: true, Usage: "path to a compiled .lum unit"},
		&cli.StringFlag{Name: "debug-map", Usage: "path to the unit's debug-map sidecar, if any"},
		&cli.StringFlag{Name: "entry", Required: true, Usage: "fully-qualified entrypoint name"},
		&cli.StringFlag{Name: "config", Usage: "path to a TOML host config file"},
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	cfg := lumen.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = lumen.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	logger := cfg.Logger()

	u, err := loadUnit(c.String("unit"), c.String("debug-map"))
	if err != nil {
		return err
	}

	ctx := lumen.NewContext()
	rc := ctx.Build()

	vm, err := lumen.New(u, rc, lumen.WithBudget(cfg.InstructionBudget, cfg.MemoryLimit))
	if err != nil {
		return fmt.Errorf("constructing vm: %w", err)
	}
	if err := vm.SetEntrypoint(c.String("entry")); err != nil {
		return fmt.Errorf("resolving entrypoint %q: %w", c.String("entry"), err)
	}

	vals, err := toScriptArgs(vm, c.Args().Slice())
	if err != nil {
		return fmt.Errorf("converting arguments: %w", err)
	}

	result, err := vm.Run(vals...)
	if err != nil {
		if p, ok := err.(*diag.Panic); ok {
			diag.RenderPanic(os.Stderr, p)
			os.Exit(1)
		}
		return err
	}

	out, err := lumen.FromScript(result)
	if err != nil {
		logger.Warn("result has no Go conversion", "error", err)
		return nil
	}
	fmt.Println(out)
	return nil
}

func loadUnit(unitPath, debugMapPath string) (*unit.Unit, error) {
	f, err := os.Open(unitPath)
	if err != nil {
		return nil, fmt.Errorf("opening unit: %w", err)
	}
	defer f.Close()

	u, err := unit.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding unit: %w", err)
	}

	if debugMapPath != "" {
		df, err := os.Open(debugMapPath)
		if err != nil {
			return nil, fmt.Errorf("opening debug map: %w", err)
		}
		defer df.Close()
		if err := unit.DecodeDebugMap(df, u); err != nil {
			return nil, fmt.Errorf("decoding debug map: %w", err)
		}
	}
	return u, nil
}

// toScriptArgs converts the trailing CLI positional arguments into script
// values using lumen.ToScript, one at a time so the already-minted values
// can be dropped on a later conversion failure.
func toScriptArgs(vm *lumen.Vm, raw []string) ([]value.Value, error) {
	vals := make([]value.Value, 0, len(raw))
	for _, a := range raw {
		v, err := lumen.ToScript(vm.Heap(), a)
		if err != nil {
			for _, pushed := range vals {
				value.Drop(pushed)
			}
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}
