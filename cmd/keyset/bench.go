package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eaugeas/keyset/concurrent"
	"github.com/eaugeas/keyset/config"
	"github.com/eaugeas/keyset/keyset"
	"github.com/eaugeas/keyset/logs"
)

// benchFlags configure the workload of the bench command
type benchFlags struct {
	Kinds         []keyset.Kind
	Keys          int
	Ops           int
	Seed          int64
	ValidateEvery int
	Concurrency   int
	Capacity      int
	Degree        int
}

func (f *benchFlags) Bind(v *viper.Viper, cmd *cobra.Command) error {
	names := make([]string, 0, len(keyset.Kinds))
	for _, kind := range keyset.Kinds {
		names = append(names, kind.String())
	}

	cmd.PersistentFlags().StringSlice("bench.kinds", names, "kinds of set to run the workload on")
	cmd.PersistentFlags().Int("bench.keys", 10000, "keys are drawn from [0, keys)")
	cmd.PersistentFlags().Int("bench.ops", 100000, "operations applied to every set")
	cmd.PersistentFlags().Int64("bench.seed", 1, "seed of the workload")
	cmd.PersistentFlags().Int("bench.validate-every", 1000, "operations between invariant checks, 0 to check only at the end")
	cmd.PersistentFlags().Int("bench.concurrency", 0, "sets benchmarked in parallel, 0 for the number of cpus")
	cmd.PersistentFlags().Int("bench.capacity", 0, "maximum number of keys of a set, 0 for unlimited")
	cmd.PersistentFlags().Int("bench.degree", 0, "minimum degree of btree sets, 0 for the default")
	return nil
}

func (f *benchFlags) Configure(v *viper.Viper) error {
	f.Kinds = f.Kinds[:0]
	for _, name := range config.StringList(v, "bench.kinds") {
		kind, err := keyset.ParseKind(name)
		if err != nil {
			return errors.Wrap(config.ErrInvalidConfig, err.Error())
		}
		f.Kinds = append(f.Kinds, kind)
	}

	f.Keys = v.GetInt("bench.keys")
	f.Ops = v.GetInt("bench.ops")
	f.Seed = v.GetInt64("bench.seed")
	f.ValidateEvery = v.GetInt("bench.validate-every")
	f.Concurrency = v.GetInt("bench.concurrency")
	f.Capacity = v.GetInt("bench.capacity")
	f.Degree = v.GetInt("bench.degree")

	if f.Keys <= 0 || f.Ops < 0 || f.ValidateEvery < 0 {
		return errors.Wrap(config.ErrInvalidConfig, "bench.keys must be positive, bench.ops and bench.validate-every not negative")
	}
	return nil
}

type benchConfig struct {
	Log   config.LogConfig
	Bench benchFlags
}

func (c *benchConfig) Use() string {
	return "bench"
}

func (c *benchConfig) EnvPrefix() string {
	return envPrefix
}

func (c *benchConfig) Binders() []config.Binder {
	return []config.Binder{&c.Log, &c.Bench}
}

func newBenchCommand() (*cobra.Command, error) {
	cfg := &benchConfig{}
	cmd := &cobra.Command{
		Use:   cfg.Use(),
		Short: "Run a randomized workload over every kind of set",
		Args:  cobra.NoArgs,
	}

	parser, err := config.GenerateForCommand(cmd, cfg)
	if err != nil {
		return nil, err
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := parser.Configure(); err != nil {
			return err
		}

		logger, err := cfg.Log.Logger(os.Stderr)
		if err != nil {
			return err
		}

		results, err := runBench(cmd.Context(), cfg.Bench, logger)
		printBench(cmd.OutOrStdout(), results)
		return err
	}

	return cmd, nil
}

// benchResult is the outcome of the workload on a set of a kind
type benchResult struct {
	Kind     keyset.Kind
	Ops      int
	Inserted int
	Deleted  int
	Found    int
	Full     int
	Len      int
	Height   int
	Elapsed  time.Duration
}

func (r benchResult) Log(fields logs.Fields) {
	fields.Add("kind", r.Kind.String())
	fields.Add("ops", r.Ops)
	fields.Add("len", r.Len)
	fields.Add("height", r.Height)
	fields.Add("elapsed", r.Elapsed.String())
}

// workload applies a mix of inserts, deletes and searches to a set and
// checks it against a map
type workload struct {
	flags benchFlags
	kind  keyset.Kind
}

func (w workload) Supply() (benchResult, error) {
	res := benchResult{Kind: w.kind}

	set, err := keyset.New(w.kind, keyset.Opts{
		Capacity: w.flags.Capacity,
		Degree:   w.flags.Degree,
		Seed:     w.flags.Seed,
	})
	if err != nil {
		return res, err
	}

	rnd := rand.New(rand.NewSource(w.flags.Seed))
	oracle := make(map[int]struct{})
	start := time.Now()

	for i := 0; i < w.flags.Ops; i++ {
		key := rnd.Intn(w.flags.Keys)
		_, present := oracle[key]

		switch op := rnd.Intn(10); {
		case op < 5:
			ok, err := set.Insert(key)
			switch {
			case keyset.IsCapacityExceeded(err):
				res.Full++
			case err != nil:
				return res, err
			case ok == present:
				return res, errors.Errorf("%s: insert %d returned %t with key present %t", w.kind, key, ok, present)
			case ok:
				oracle[key] = struct{}{}
				res.Inserted++
			}
		case op < 8:
			ok := set.Delete(key)
			if ok != present {
				return res, errors.Errorf("%s: delete %d returned %t with key present %t", w.kind, key, ok, present)
			}
			if ok {
				delete(oracle, key)
				res.Deleted++
			}
		default:
			ok := set.Search(key)
			if ok != present {
				return res, errors.Errorf("%s: search %d returned %t with key present %t", w.kind, key, ok, present)
			}
			if ok {
				res.Found++
			}
		}

		if w.flags.ValidateEvery > 0 && (i+1)%w.flags.ValidateEvery == 0 {
			if err := set.Validate(); err != nil {
				return res, errors.Wrapf(err, "%s after %d operations", w.kind, i+1)
			}
		}
		res.Ops++
	}

	res.Elapsed = time.Since(start)

	if err := set.Validate(); err != nil {
		return res, errors.Wrapf(err, "%s after %d operations", w.kind, res.Ops)
	}
	if set.Len() != len(oracle) {
		return res, errors.Errorf("%s: set has %d keys, expected %d", w.kind, set.Len(), len(oracle))
	}

	res.Len = set.Len()
	res.Height = set.Height()
	return res, nil
}

// runBench runs the workload over every kind as a batch
func runBench(ctx context.Context, flags benchFlags, logger logs.Logger) ([]benchResult, error) {
	suppliers := make([]concurrent.Supplier[benchResult], 0, len(flags.Kinds))
	for _, kind := range flags.Kinds {
		suppliers = append(suppliers, workload{flags: flags, kind: kind})
	}

	batch := concurrent.BatchSliceWithOpts(ctx, suppliers, concurrent.BatchOpts{
		Concurrency: flags.Concurrency,
	})

	var (
		results []benchResult
		errs    []error
	)
	for _, res := range batch {
		if err := res.Err(); err != nil {
			logger.Error(ctx, "workload failed", res.Value(), logs.MapFields{"err": err.Error()})
			errs = append(errs, err)
			continue
		}

		logger.Info(ctx, "workload completed", res.Value())
		results = append(results, res.Value())
	}

	if len(errs) > 0 {
		return results, errors.Wrapf(errs[0], "%d of %d workloads failed", len(errs), len(batch))
	}
	return results, nil
}

func printBench(w io.Writer, results []benchResult) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendHeader(table.Row{"kind", "ops", "inserted", "deleted", "found", "full", "len", "height", "elapsed", "ops/s"})
	for _, r := range results {
		rate := "-"
		if r.Elapsed > 0 {
			rate = humanize.Comma(int64(float64(r.Ops) / r.Elapsed.Seconds()))
		}

		tbl.AppendRow(table.Row{
			r.Kind.String(),
			humanize.Comma(int64(r.Ops)),
			humanize.Comma(int64(r.Inserted)),
			humanize.Comma(int64(r.Deleted)),
			humanize.Comma(int64(r.Found)),
			humanize.Comma(int64(r.Full)),
			humanize.Comma(int64(r.Len)),
			r.Height,
			r.Elapsed.Round(time.Microsecond).String(),
			rate,
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("%d kinds", len(results))})
	tbl.Render()
}
