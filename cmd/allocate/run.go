package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/pkg/allocator"
	"github.com/noah-isme/sma-timetable/pkg/export"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

type runOptions struct {
	file       string
	seed       int64
	attempts   int
	population int
	workers    int
	tiers      int
	format     string
	verbose    bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "allocate",
		Short:         "Offline timetable allocation",
		Long:          "Run the timetable allocator against a YAML description of subjects, credits and timeslots.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Allocate one weekly timetable",
		Example: `  allocate run -f class-10a.yaml
  allocate run -f class-10a.yaml --seed 42 --format csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllocation(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "input YAML file, - for stdin")
	flags.Int64Var(&opts.seed, "seed", 0, "seed for reproducible runs (0 picks a random seed)")
	flags.IntVar(&opts.attempts, "attempts", 0, "attempt budget override")
	flags.IntVar(&opts.population, "population-size", 0, "population size; the attempt budget is max(10*N, 200) unless --attempts is set")
	flags.IntVar(&opts.workers, "workers", 1, "concurrent attempts")
	flags.IntVar(&opts.tiers, "priority-tiers", 0, "number of top priority tiers treated as high priority")
	flags.StringVar(&opts.format, "format", formatTable, "output format: table, csv or json")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log search progress to stderr")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runAllocation(cmd *cobra.Command, opts *runOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.format))
	switch format {
	case formatTable, formatCSV, formatJSON:
	default:
		return fmt.Errorf("unsupported format %q", opts.format)
	}

	file, err := readInput(opts.file)
	if err != nil {
		return err
	}
	in, err := file.toInput()
	if err != nil {
		return err
	}
	if total, capacity := in.TotalCredits(), in.Capacity(); total > capacity {
		return fmt.Errorf("requested %d credits but the week only has %d cells", total, capacity)
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	cfg := allocator.Config{
		Attempts:       opts.attempts,
		PopulationSize: opts.population,
		Workers:        opts.workers,
		PriorityTiers:  opts.tiers,
		Logger:         logger,
	}
	if cmd.Flags().Changed("seed") && opts.seed != 0 {
		seed := opts.seed
		cfg.Seed = &seed
	}

	result, err := allocator.New(cfg).Allocate(cmd.Context(), in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case formatCSV:
		return writeCSV(out, result.Schedule)
	default:
		return writeTable(out, in, result)
	}
}

func writeCSV(out io.Writer, schedule allocator.Schedule) error {
	rows := make([]export.TimetableRow, 0, len(schedule))
	for _, p := range schedule {
		rows = append(rows, export.TimetableRow{Day: p.Day, Timeslot: p.Timeslot, Subject: p.Subject})
	}
	content, err := export.NewCSVExporter().Render(rows)
	if err != nil {
		return err
	}
	_, err = out.Write(content)
	return err
}

func writeTable(out io.Writer, in allocator.Input, result allocator.Result) error {
	days := in.Days
	if len(days) == 0 {
		days = allocator.Weekdays
	}
	cells := make(map[allocator.Cell]string, len(result.Schedule))
	for _, p := range result.Schedule {
		cells[p.Cell()] = p.Subject
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Time\t%s\n", strings.Join(days, "\t"))
	for _, slot := range in.Timeslots {
		row := make([]string, len(days))
		for i, day := range days {
			row[i] = cells[allocator.Cell{Day: day, Timeslot: slot}]
			if row[i] == "" {
				row[i] = "-"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\n", slot, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nscore: %d  attempts: %d  completed: %d  high priority: %s\n",
		result.Score, result.Attempts, result.Completed, strings.Join(result.HighPriority, ", "))
	return err
}
