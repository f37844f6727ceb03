package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/crisisobs/shockwatch/internal/classifier"
	"github.com/crisisobs/shockwatch/internal/config"
	"github.com/crisisobs/shockwatch/internal/detector"
	"github.com/crisisobs/shockwatch/internal/source"
	"github.com/crisisobs/shockwatch/internal/store"
)

// newStore builds the configured store backend and runs migrations.
func newStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newSource builds the configured record source.
func newSource() (source.Source, error) {
	switch cfg.Source.Kind {
	case "jsonl":
		return source.NewJSONL(cfg.Source.Path)
	case "xlsx":
		return source.NewXLSX(cfg.Source.Path, source.XLSXOptions{SheetName: cfg.Source.Sheet})
	case "api":
		return source.NewAPI(cfg.Source.BaseURL, source.APIOptions{
			PageSize:   cfg.Source.PageSize,
			RatePerSec: cfg.Source.RatePerSec,
		})
	default:
		return nil, eris.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// detectorDeps wires the classifier factory for headline detectors. The
// endpoint comes from each detector document; the app config only tunes
// the transport.
func detectorDeps(clsCfg config.ClassifierConfig) detector.Dependencies {
	return detector.Dependencies{
		NewClassifier: func(modelURL string) (classifier.Classifier, error) {
			return classifier.NewHTTP(modelURL, classifier.HTTPOptions{
				Timeout:    time.Duration(clsCfg.TimeoutSecs) * time.Second,
				MaxRetries: clsCfg.MaxRetries,
				RatePerSec: clsCfg.RatePerSec,
				MaxLength:  clsCfg.MaxLength,
			})
		},
	}
}
