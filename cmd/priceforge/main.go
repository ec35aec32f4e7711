// PriceForge CLI - pricing change authoring
//
// Usage:
//   priceforge serve --config config.yaml
//   priceforge preview --baseline baseline.yaml --input changes.tsv
//   priceforge catalog show --baseline baseline.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"priceforge/api"
	"priceforge/db/clickhouse"
	"priceforge/db/postgres"
	"priceforge/internal/changeset"
	"priceforge/internal/config"
	"priceforge/internal/gtm"
	"priceforge/internal/matrix"
	"priceforge/internal/wizard"
	"priceforge/pkg/catalog"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "priceforge",
		Usage:   "Pricing change authoring - edit, diff, and attach price changes to GTM motions",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to YAML config",
				EnvVars: []string{"PRICEFORGE_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Verbose development logging",
				EnvVars: []string{"PRICEFORGE_DEBUG"},
			},
		},

		Commands: []*cli.Command{
			serveCommand(),
			previewCommand(),
			catalogCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.Bool("debug") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the wizard HTTP API backed by the catalog and motion stores",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP port (overrides config)",
				EnvVars: []string{"PRICEFORGE_PORT"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if port := c.Int("port"); port > 0 {
		cfg.Server.Port = port
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	catalogStore, err := clickhouse.NewStore(&clickhouse.Config{
		Host:     cfg.ClickHouse.Host,
		Port:     cfg.ClickHouse.Port,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to catalog store: %w", err)
	}
	defer catalogStore.Close()

	motionStore, err := postgres.NewMotionStore(cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to motion store: %w", err)
	}
	defer motionStore.Close()
	if err := motionStore.EnsureSchema(context.Background()); err != nil {
		return err
	}

	binder := gtm.NewBinder(motionStore, logger)
	sessions := api.NewSessionManager(catalogStore, binder, logger)
	server := api.NewServer(catalogStore, sessions, &api.Config{
		Port:           cfg.Server.Port,
		ReadTimeout:    secondsOf(cfg.Server.ReadTimeoutSec),
		WriteTimeout:   secondsOf(cfg.Server.WriteTimeoutSec),
		MaxRequestSize: cfg.Server.MaxRequestSize,
		CORSOrigins:    []string{"*"},
	}, logger, catalogStore, motionStore)

	return server.StartWithGracefulShutdown()
}

// =============================================================================
// PREVIEW COMMAND
// =============================================================================

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Diff a pasted TSV block against a baseline and print the change set",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "baseline",
				Aliases:  []string{"b"},
				Usage:    "Baseline YAML (product, channel, cycle, price points)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "TSV block of proposed prices (default stdin)",
			},
			&cli.StringFlag{
				Name:    "anchor",
				Aliases: []string{"a"},
				Usage:   "Anchor cell as CURRENCY/SEATS/TIER (default first cell)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runPreview,
	}
}

func runPreview(c *cli.Context) error {
	product, ectx, err := loadFixture(c.String("baseline"))
	if err != nil {
		return err
	}
	session, err := wizard.NewDirectSession(product, ectx)
	if err != nil {
		return err
	}

	text, err := readInput(c.String("input"))
	if err != nil {
		return err
	}

	mat := session.Matrix()
	anchor, err := resolveAnchor(mat, c.String("anchor"))
	if err != nil {
		return err
	}
	if err := mat.Paste(anchor, text); err != nil {
		return fmt.Errorf("paste failed: %w", err)
	}
	if !mat.Dirty() {
		fmt.Fprintln(os.Stderr, "No price changes detected against the baseline.")
		return nil
	}
	if err := session.Advance(); err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	changes := session.Captured()
	fmt.Fprintf(os.Stderr, "Captured %d change(s) for %s (%s/%s)\n",
		len(changes), product.Name, ectx.Channel, ectx.Cycle)

	switch c.String("format") {
	case "json":
		return outputJSON(changes)
	default:
		return outputTable(changes)
	}
}

func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input %s: %w", path, err)
	}
	return string(data), nil
}

// resolveAnchor parses CURRENCY/SEATS/TIER, defaulting to the grid's first
// cell.
func resolveAnchor(mat *matrix.Matrix, spec string) (matrix.CellKey, error) {
	if spec == "" {
		currencies := mat.Currencies()
		if len(currencies) == 0 {
			return matrix.CellKey{}, fmt.Errorf("matrix has no currencies to anchor at")
		}
		c := currencies[0]
		if mat.Shape() == matrix.ShapeFlat {
			return matrix.FlatKey(c), nil
		}
		return matrix.CellKey{
			Currency: c,
			Seats:    mat.SeatRanges()[0],
			Tier:     mat.TiersFor(c)[0],
		}, nil
	}
	parts := strings.Split(spec, "/")
	if mat.Shape() == matrix.ShapeFlat {
		return matrix.FlatKey(parts[0]), nil
	}
	if len(parts) != 3 {
		return matrix.CellKey{}, fmt.Errorf("anchor must be CURRENCY/SEATS/TIER, got %q", spec)
	}
	seats, err := catalog.ParseSeatRange(parts[1])
	if err != nil {
		return matrix.CellKey{}, err
	}
	return matrix.CellKey{
		Currency: parts[0],
		Seats:    seats,
		Tier:     catalog.NormalizeTier(parts[2]),
	}, nil
}

// =============================================================================
// CATALOG COMMAND
// =============================================================================

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Catalog inspection",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the pivoted price matrix for a baseline",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "baseline",
						Aliases:  []string{"b"},
						Required: true,
						Usage:    "Baseline YAML file",
					},
				},
				Action: runCatalogShow,
			},
		},
	}
}

func runCatalogShow(c *cli.Context) error {
	product, ectx, err := loadFixture(c.String("baseline"))
	if err != nil {
		return err
	}
	session, err := wizard.NewDirectSession(product, ectx)
	if err != nil {
		return err
	}
	mat := session.Matrix()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "CURRENCY\tSEATS\tTIER\tCURRENT\n")
	for _, row := range mat.Rows() {
		for _, cell := range row.Cells {
			current := "-"
			if cell.Current != nil {
				current = cell.Current.StringFixed(2)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Currency, row.Seats, cell.Key.Tier, current)
		}
	}
	return w.Flush()
}

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

func outputJSON(changes []changeset.ChangeRecord) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(changes)
}

func outputTable(changes []changeset.ChangeRecord) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "CURRENCY\tSEATS\tTIER\tCURRENT\tNEW\tDELTA\tDELTA%%\tEFFECTIVE\n")
	for _, rec := range changes {
		seats, tier := "-", "-"
		if rec.SeatRange != nil {
			seats = rec.SeatRange.String()
		}
		if rec.Tier != "" {
			tier = rec.Tier
		}
		current := "-"
		if rec.Current != nil {
			current = rec.Current.StringFixed(2)
		}
		effective := rec.Window.Start.Format("2006-01-02")
		if rec.Window.End != nil {
			effective += " .. " + rec.Window.End.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s%%\t%s\n",
			rec.Currency, seats, tier, current,
			rec.New.StringFixed(2),
			rec.Delta.Amount.StringFixed(2),
			rec.Delta.Percentage.StringFixed(1),
			effective)
	}
	return w.Flush()
}

func secondsOf(n int) time.Duration {
	return time.Duration(n) * time.Second
}
