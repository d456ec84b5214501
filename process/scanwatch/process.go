package scanwatch

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"baken/pkg/capture"
	"baken/pkg/ticket"
)

// EngineText marks reads taken from .txt dumps.
const EngineText = "text"

type read struct {
	raw  string
	meta ticket.CaptureMeta
}

// processFile reads one dropped file, feeds its reads to the session and
// moves it aside. Files that cannot be read stay in place.
func (w *Watcher) processFile(ctx context.Context, name string) {
	path := filepath.Join(w.opts.Dir, name)
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	reads, err := w.reads(ctx, path)
	if err != nil {
		w.log.Warn("read failed", zap.String("file", name), zap.Error(err))
		return
	}
	if len(reads) == 0 {
		w.log.Info("no code found", zap.String("file", name))
	}
	for _, r := range reads {
		w.feed(ctx, r, name)
	}
	if err := moveToProcessed(path, filepath.Join(w.opts.ProcessedDir, name)); err != nil {
		w.log.Warn("move to processed failed", zap.String("file", name), zap.Error(err))
	}
}

func (w *Watcher) reads(ctx context.Context, path string) ([]read, error) {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return textReads(path)
	}
	if w.opts.Detector == nil {
		return nil, eris.New("no detector configured for images")
	}
	det, err := w.opts.Detector.DetectFile(ctx, path)
	if eris.Is(err, capture.ErrNoCode) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []read{{raw: det.Text, meta: det.Meta}}, nil
}

func textReads(path string) ([]read, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	var out []read
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, read{raw: line, meta: ticket.CaptureMeta{Engine: EngineText}})
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return out, nil
}

// feed runs one read through the session. A completed ticket is handed to
// the handler after the session was reset for the next one.
func (w *Watcher) feed(ctx context.Context, r read, file string) {
	w.mu.Lock()
	s := w.opts.Session
	ev := s.Accept(r.raw, r.meta)
	var done *Completion
	switch ev.Kind {
	case capture.EventFirst:
		w.origin[capture.CleanDigits(r.raw)] = file
		w.log.Info("first half held", zap.String("file", file), zap.String("role", ev.Classification.Role.String()))
	case capture.EventRejected:
		w.log.Info("read rejected", zap.String("file", file), zap.String("reason", string(ev.Reason)))
	case capture.EventCompleted:
		halves := s.Halves()
		files := make([]string, len(halves))
		for i, h := range halves {
			files[i] = w.origin[h.Fragment.Digits]
		}
		files[len(files)-1] = file
		done = &Completion{Code: ev.Code, Halves: halves, Files: files}
		s.Reset()
		clear(w.origin)
	}
	w.mu.Unlock()

	if done == nil {
		return
	}
	if err := w.handle(ctx, *done); err != nil {
		w.log.Error("handle completed ticket", zap.Strings("files", done.Files), zap.Error(err))
		// let a re-scan of the same ticket through
		w.mu.Lock()
		s.Forget(done.Code)
		w.mu.Unlock()
	}
}
