package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"baken/internal/publisher"
	"baken/models"
	"baken/pkg/capture"
	"baken/pkg/ticket"
)

var errBadRequest = eris.New("bad request")

// decodeResult is what decode requests return: the outcome when the input
// produced a canonical code, the resolution when it came as two fragments.
type decodeResult struct {
	Code       string               `json:"code,omitempty"`
	Outcome    *ticket.ParseOutcome `json:"outcome,omitempty"`
	Resolution *ticket.Resolution   `json:"resolution,omitempty"`
}

// Rejected reports whether a fragment pair was declined.
func (r decodeResult) Rejected() bool {
	return r.Resolution != nil && !r.Resolution.Accepted()
}

// decodeInput decodes either a canonical code or a pair of fragments.
// Formatting characters and full-width digits are dropped first.
func decodeInput(code string, fragments []string) (decodeResult, error) {
	switch {
	case code != "" && len(fragments) > 0:
		return decodeResult{}, eris.Wrap(errBadRequest, "give either a code or two fragments, not both")
	case code != "":
		code = capture.CleanDigits(code)
		out, err := ticket.Decode(code)
		if err != nil {
			return decodeResult{}, err
		}
		return decodeResult{Code: code, Outcome: &out}, nil
	case len(fragments) == 2:
		a := ticket.Fragment{Digits: capture.CleanDigits(fragments[0])}
		b := ticket.Fragment{Digits: capture.CleanDigits(fragments[1])}
		res, err := ticket.Resolve(a, b)
		if err != nil {
			return decodeResult{}, err
		}
		if !res.Accepted() {
			return decodeResult{Resolution: &res}, nil
		}
		out, err := ticket.Decode(res.Code)
		if err != nil {
			return decodeResult{}, err
		}
		return decodeResult{Code: res.Code, Outcome: &out, Resolution: &res}, nil
	}
	return decodeResult{}, eris.Wrapf(errBadRequest, "need a code or exactly two fragments, got %d", len(fragments))
}

// recorder decodes canonical codes, saves them and announces new tickets.
type recorder struct {
	store *Store
	pub   publisher.Publisher
	log   *zap.Logger
}

func newRecorder(store *Store, pub publisher.Publisher, log *zap.Logger) *recorder {
	if pub == nil {
		pub = publisher.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &recorder{store: store, pub: pub, log: log}
}

type recordResult struct {
	Ticket  *models.Ticket      `json:"ticket"`
	Outcome ticket.ParseOutcome `json:"outcome"`
	Created bool                `json:"created"`
}

// Record decodes code and saves it. Saving a code twice returns the stored
// ticket with Created false and publishes nothing.
func (r *recorder) Record(ctx context.Context, code, source string, sources []models.ScanSource) (*recordResult, error) {
	res, err := r.save(ctx, code, source, sources)
	if err != nil {
		return nil, err
	}
	if res.Created {
		if err := r.pub.Publish(ctx, res.message()); err != nil {
			r.log.Warn("publish ticket", zap.Uint("ticket_id", res.Ticket.ID), zap.Error(err))
		}
	}
	return res, nil
}

// recordItem is one code of a batch.
type recordItem struct {
	Code   string
	Source string
}

// RecordBatch saves the codes in order, then announces every new ticket
// in one publish call. errs[i] is set when item i could not be saved.
func (r *recorder) RecordBatch(ctx context.Context, items []recordItem) (results []*recordResult, errs []error) {
	results = make([]*recordResult, len(items))
	errs = make([]error, len(items))
	var msgs []*publisher.Message
	for i, it := range items {
		res, err := r.save(ctx, it.Code, it.Source, nil)
		if err != nil {
			errs[i] = err
			continue
		}
		results[i] = res
		if res.Created {
			msgs = append(msgs, res.message())
		}
	}
	if len(msgs) == 0 {
		return results, errs
	}
	if err := r.pub.PublishBatch(ctx, msgs); err != nil {
		r.log.Warn("publish ticket batch", zap.Int("tickets", len(msgs)), zap.Error(err))
	}
	return results, errs
}

func (r *recorder) save(ctx context.Context, code, source string, sources []models.ScanSource) (*recordResult, error) {
	out, err := ticket.Decode(code)
	if err != nil {
		return nil, err
	}
	logOutcome(r.log, code, out)

	t := models.NewTicket(code, source, out)
	t.Sources = sources
	created, err := r.store.Save(ctx, &t)
	if err != nil {
		return nil, err
	}
	r.log.Info("ticket recorded",
		zap.Uint("ticket_id", t.ID),
		zap.Bool("created", created),
		zap.String("source", source),
		zap.Int("bets", len(out.Bets)),
		zap.Int("total_stake", out.TotalStake()))
	return &recordResult{Ticket: &t, Outcome: out, Created: created}, nil
}

func (res *recordResult) message() *publisher.Message {
	return &publisher.Message{
		TicketID: res.Ticket.ID,
		Code:     res.Ticket.Code,
		Source:   res.Ticket.Source,
		SavedAt:  time.Now().UTC(),
		Outcome:  res.Outcome,
	}
}

func logOutcome(log *zap.Logger, code string, out ticket.ParseOutcome) {
	switch {
	case out.Degraded():
		log.Info("body not decoded, bets need manual entry", zap.String("code", shortCode(code)), zap.Int("ticket_type", int(out.Header.TicketType)))
	case out.OffsetReason == ticket.OffsetFallback:
		log.Info("body found at fallback offset", zap.String("code", shortCode(code)), zap.Int("offset", out.BodyOffset))
	}
}

// scanSources describes the halves a session completed with. files, when
// given, are matched to halves by slot.
func scanSources(halves []capture.Half, files ...string) []models.ScanSource {
	out := make([]models.ScanSource, 0, len(halves))
	for i, h := range halves {
		src := models.ScanSource{
			Slot:        i + 1,
			Engine:      h.Fragment.Meta.Engine,
			Profile:     h.Fragment.Meta.Profile,
			Role:        h.Classification.Role.String(),
			HeaderScore: h.Classification.HeaderScore,
			TailRun:     h.Classification.TailRun,
		}
		if i < len(files) {
			src.FileName = files[i]
		}
		out = append(out, src)
	}
	return out
}
