package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	replayWorkers int
	replayFormat  string
	replaySave    bool
)

// replayLine is the result for one input line.
type replayLine struct {
	Line     int           `json:"line"`
	Result   *decodeResult `json:"result,omitempty"`
	TicketID uint          `json:"ticket_id,omitempty"`
	Created  bool          `json:"created,omitempty"`
	Error    string        `json:"error,omitempty"`
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode one code or fragment pair per line",
	Long:  "Each non-blank line holds a canonical code or two whitespace-separated fragments. Lines starting with # are skipped. Use - to read stdin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return eris.Wrapf(err, "open %s", args[0])
			}
			defer f.Close()
			in = f
		}

		results, err := replay(cmd.Context(), in, replayWorkers)
		if err != nil {
			return err
		}

		if replaySave {
			env, err := initEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			saveReplayed(cmd.Context(), env.Rec, results)
		}
		return writeResult(cmd.OutOrStdout(), replayFormat, results)
	},
}

func init() {
	replayCmd.Flags().IntVar(&replayWorkers, "workers", 4, "concurrent decoders")
	replayCmd.Flags().StringVar(&replayFormat, "format", formatJSON, "output format: json or yaml")
	replayCmd.Flags().BoolVar(&replaySave, "save", false, "save every decoded ticket")
	rootCmd.AddCommand(replayCmd)
}

// replay decodes every line of r concurrently. Per-line failures are
// reported in the result, not returned.
func replay(ctx context.Context, r io.Reader, workers int) ([]replayLine, error) {
	type input struct {
		line   int
		fields []string
	}
	var inputs []input
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		inputs = append(inputs, input{line: n, fields: strings.Fields(line)})
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "read replay input")
	}

	if workers < 1 {
		workers = 1
	}
	results := make([]replayLine, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = decodeLine(in.line, in.fields)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rejected, failed := 0, 0
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
		case r.Result.Rejected():
			rejected++
		}
	}
	zap.L().Info("replay finished", zap.Int("lines", len(results)), zap.Int("rejected", rejected), zap.Int("failed", failed))
	return results, nil
}

// saveReplayed stores every decoded line. New tickets are published in a
// single batch once all saves ran.
func saveReplayed(ctx context.Context, rec *recorder, results []replayLine) {
	var (
		items []recordItem
		idx   []int
	)
	for i, r := range results {
		if r.Result == nil || r.Result.Outcome == nil {
			continue
		}
		items = append(items, recordItem{Code: r.Result.Code, Source: "replay"})
		idx = append(idx, i)
	}
	saved, errs := rec.RecordBatch(ctx, items)
	for j, i := range idx {
		if errs[j] != nil {
			results[i].Error = errs[j].Error()
			continue
		}
		results[i].TicketID, results[i].Created = saved[j].Ticket.ID, saved[j].Created
	}
}

func decodeLine(line int, fields []string) replayLine {
	out := replayLine{Line: line}
	var (
		res decodeResult
		err error
	)
	switch len(fields) {
	case 1:
		res, err = decodeInput(fields[0], nil)
	case 2:
		res, err = decodeInput("", fields)
	default:
		err = eris.Wrapf(errBadRequest, "expected 1 or 2 fields, got %d", len(fields))
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = &res
	return out
}
