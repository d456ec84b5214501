package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"baken/pkg/capture"
	"baken/pkg/ticket"
)

var (
	scanFormat string
	scanSave   bool
)

// scanReport is printed for each ticket a scan completed.
type scanReport struct {
	Files      []string             `json:"files"`
	Code       string               `json:"code"`
	Resolution *ticket.Resolution   `json:"resolution,omitempty"`
	Outcome    *ticket.ParseOutcome `json:"outcome,omitempty"`
	TicketID   uint                 `json:"ticket_id,omitempty"`
	Created    bool                 `json:"created,omitempty"`
}

var scanCmd = &cobra.Command{
	Use:   "scan <image>...",
	Short: "Detect QR halves in images and decode the tickets they form",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		detector, err := newDetector()
		if err != nil {
			return err
		}
		session, err := newSession()
		if err != nil {
			return err
		}
		var env *appEnv
		if scanSave {
			if env, err = initEnv(ctx); err != nil {
				return err
			}
			defer env.Close()
		}

		var reports []scanReport
		origin := map[string]string{}
		for _, path := range args {
			det, err := detector.DetectFile(ctx, path)
			if eris.Is(err, capture.ErrNoCode) {
				zap.L().Info("no code found", zap.String("file", path))
				continue
			}
			if err != nil {
				return err
			}
			name := filepath.Base(path)
			ev := session.Accept(det.Text, det.Meta)
			zap.L().Info("frame read",
				zap.String("file", name),
				zap.String("event", string(ev.Kind)),
				zap.String("reason", string(ev.Reason)),
				zap.String("engine", det.Meta.Engine),
				zap.String("profile", det.Meta.Profile))
			switch ev.Kind {
			case capture.EventFirst:
				origin[capture.CleanDigits(det.Text)] = name
				continue
			case capture.EventCompleted:
			default:
				continue
			}

			halves := session.Halves()
			files := []string{origin[halves[0].Fragment.Digits], name}
			rep := scanReport{Files: files, Code: ev.Code, Resolution: ev.Resolution}
			if env != nil {
				saved, err := env.Rec.Record(ctx, ev.Code, "scan", scanSources(halves, files...))
				if err != nil {
					return err
				}
				rep.Outcome, rep.TicketID, rep.Created = &saved.Outcome, saved.Ticket.ID, saved.Created
			} else {
				out, err := ticket.Decode(ev.Code)
				if err != nil {
					return err
				}
				logOutcome(zap.L(), ev.Code, out)
				rep.Outcome = &out
			}
			reports = append(reports, rep)
			session.Reset()
			clear(origin)
		}

		if held := session.Halves(); len(held) > 0 {
			zap.L().Warn("scan ended with one half held; the other half was never read",
				zap.String("role", held[0].Classification.Role.String()))
		}
		if len(reports) == 0 {
			return eris.New("no ticket completed")
		}
		return writeResult(cmd.OutOrStdout(), scanFormat, reports)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", formatJSON, "output format: json or yaml")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "save every decoded ticket")
	rootCmd.AddCommand(scanCmd)
}
