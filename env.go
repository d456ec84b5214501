package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"baken/internal/publisher"
	"baken/pkg/capture"
)

// appEnv holds what the recording commands share.
type appEnv struct {
	Store *Store
	Pub   publisher.Publisher
	Rec   *recorder
}

func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	store, err := openStore(cfg.Store, zap.L())
	if err != nil {
		return nil, err
	}
	pub, err := publisher.New(ctx, cfg.Redis)
	if err != nil {
		_ = store.Close()
		return nil, eris.Wrap(err, "connect publisher")
	}
	return &appEnv{Store: store, Pub: pub, Rec: newRecorder(store, pub, zap.L())}, nil
}

func (e *appEnv) Close() {
	if err := e.Pub.Close(); err != nil {
		zap.L().Warn("close publisher", zap.Error(err))
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func newDetector() (*capture.Detector, error) {
	engines, err := capture.NewEngines(cfg.Scan.Engines, cfg.Scan.TesseractLang)
	if err != nil {
		return nil, err
	}
	return capture.NewDetector(engines, nil, zap.L()), nil
}

func newSession() (*capture.Session, error) {
	if err := cfg.Validate("decoder"); err != nil {
		return nil, err
	}
	return capture.NewSession(
		capture.WithLogger(zap.L()),
		capture.WithNoise(cfg.Decoder.FirstNoise, cfg.Decoder.SecondNoise),
	), nil
}
