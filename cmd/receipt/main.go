package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/cestaprecios/internal/backends"
	"github.com/angelmondragon/cestaprecios/internal/catalog"
	"github.com/angelmondragon/cestaprecios/internal/receipt"
	"github.com/angelmondragon/cestaprecios/internal/scan"
	"github.com/angelmondragon/cestaprecios/internal/staging"
	"github.com/angelmondragon/cestaprecios/pkg/config"
	"github.com/angelmondragon/cestaprecios/pkg/logger"
)

const maxReceiptBytes = 1 << 20

type options struct {
	file   string
	commit bool
	json   bool
}

type lineOutput struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Strategy string `json:"strategy"`
}

type parseOutput struct {
	Supermarket string              `json:"supermarket,omitempty"`
	Detected    bool                `json:"detected"`
	Lines       []lineOutput        `json:"lines"`
	SessionID   string              `json:"sessionId,omitempty"`
	Source      staging.Source      `json:"source,omitempty"`
	Candidates  []catalog.Candidate `json:"candidates,omitempty"`
	Commit      *scan.ConfirmResult `json:"commit,omitempty"`
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "receipt"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.file, "file", "-", "receipt text file; - reads stdin")
	flag.BoolVar(&opts.commit, "commit", false, "stage the receipt and commit it to the configured store")
	flag.BoolVar(&opts.json, "json", false, "print JSON instead of a table")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "receipt",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.ResolvedLogFormat(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, cfg, logg, opts, os.Stdin, os.Stdout); err != nil {
		logg.Error(ctx, "receipt command failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options, stdin io.Reader, stdout io.Writer) error {
	text, err := readReceipt(opts.file, stdin)
	if err != nil {
		return err
	}

	parsed := receipt.ParseReceipt(text)
	out := parseOutput{
		Supermarket: string(parsed.Supermarket),
		Detected:    parsed.Detected,
		Lines:       make([]lineOutput, 0, len(parsed.Lines)),
	}
	for _, line := range parsed.Lines {
		out.Lines = append(out.Lines, lineOutput{Name: line.Name, Price: line.Price.StringFixed(2), Strategy: line.Strategy})
	}

	if opts.commit {
		if err := commitReceipt(ctx, cfg, logg, text, &out); err != nil {
			return err
		}
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printTable(stdout, out)
}

func readReceipt(path string, stdin io.Reader) (string, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open receipt: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxReceiptBytes))
	if err != nil {
		return "", fmt.Errorf("read receipt: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("receipt text is empty")
	}
	return string(data), nil
}

// commitReceipt drives the same staging flow as the API against the configured store.
func commitReceipt(ctx context.Context, cfg *config.Config, logg *logger.Logger, text string, out *parseOutput) (err error) {
	b, err := backends.Open(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := b.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	cat, err := catalog.New(catalog.Options{
		Store:  b.Store,
		Key:    cfg.Store.Key,
		Logger: logg,
		Seed:   seedOptions(cfg.Seed),
	})
	if err != nil {
		return err
	}
	if err := cat.Load(ctx); err != nil {
		return err
	}

	svc, err := scan.NewService(scan.ServiceParams{
		Catalog:  cat,
		Sessions: staging.NewRegistry(0),
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	snapshot, err := svc.StageReceiptText(ctx, text)
	if err != nil {
		return err
	}
	out.SessionID = snapshot.ID
	out.Source = snapshot.Source
	out.Candidates = snapshot.Candidates

	result, err := svc.Confirm(ctx, snapshot.ID)
	if err != nil {
		return err
	}
	out.Commit = &result
	return nil
}

func seedOptions(seed config.SeedConfig) catalog.SeedOptions {
	return catalog.SeedOptions{
		Samples:  seed.HistorySamples,
		Interval: seed.HistoryInterval,
		Variance: seed.Variance,
	}
}

func printTable(w io.Writer, out parseOutput) error {
	supermarket := out.Supermarket
	if !out.Detected {
		supermarket = "(not detected)"
	}
	if _, err := fmt.Fprintf(w, "supermarket: %s\n\n", supermarket); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPRICE\tSTRATEGY")
	for _, line := range out.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", line.Name, line.Price, line.Strategy)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if out.Commit != nil {
		_, err := fmt.Fprintf(w, "\n%s\n", out.Commit.Summary)
		return err
	}
	return nil
}
