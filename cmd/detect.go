package main

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crisisobs/shockwatch/internal/detector"
	"github.com/crisisobs/shockwatch/internal/model"
)

var (
	detectFrom   string
	detectTo     string
	detectDryRun bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run all configured detectors over the source records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("detect"); err != nil {
			return err
		}
		ctx := cmd.Context()

		from, to, err := parseWindow(detectFrom, detectTo)
		if err != nil {
			return err
		}

		detectors, err := detector.LoadDir(cfg.Detectors.Dir, detectorDeps(cfg.Classifier))
		if err != nil {
			return err
		}

		src, err := newSource()
		if err != nil {
			return err
		}
		records, err := src.Records(ctx, from, to)
		if err != nil {
			return err
		}
		zap.L().Info("detect: records loaded",
			zap.Int("records", len(records)),
			zap.String("source", cfg.Source.Kind),
		)

		var sink detectionSink
		if detectDryRun {
			sink = printDetections
		} else {
			st, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			sink = func(ctx context.Context, dets []model.Detection) error {
				_, err := st.SaveDetections(ctx, dets)
				return err
			}
		}

		total, err := runDetectors(ctx, detectors, records, cfg.Run.MaxConcurrentDetectors, sink)
		if err != nil {
			return err
		}
		zap.L().Info("detect: run finished",
			zap.Int("detectors", len(detectors)),
			zap.Int("detections", total),
		)
		return nil
	},
}

// detectionSink receives one detector's output.
type detectionSink func(ctx context.Context, detections []model.Detection) error

// runDetectors fans the same record batch out to every detector with
// bounded parallelism. A failing detector is logged and skipped so the
// others still run; only sink errors abort the whole run.
func runDetectors(ctx context.Context, detectors []detector.Detector, records []*model.RawRecord, limit int, sink detectionSink) (int, error) {
	if limit < 1 {
		limit = 1
	}

	var (
		mu    sync.Mutex
		total int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, d := range detectors {
		d := d
		g.Go(func() error {
			detections, err := d.Detect(ctx, records)
			if err != nil {
				zap.L().Error("detect: detector failed",
					zap.String("detector", d.Name()),
					zap.Error(err),
				)
				return nil
			}
			for i := range detections {
				detections[i].Detector = d.Name()
			}

			mu.Lock()
			defer mu.Unlock()
			if err := sink(ctx, detections); err != nil {
				return eris.Wrapf(err, "detect: persist output of %s", d.Name())
			}
			total += len(detections)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return total, nil
}

func printDetections(_ context.Context, detections []model.Detection) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, det := range detections {
		if err := enc.Encode(det); err != nil {
			return eris.Wrap(err, "detect: encode detection")
		}
	}
	return nil
}

// parseWindow parses the --from/--to flags; empty means unbounded.
func parseWindow(fromRaw, toRaw string) (from, to time.Time, err error) {
	parse := func(raw, flag string) (time.Time, error) {
		if raw == "" {
			return time.Time{}, nil
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, eris.Errorf("detect: bad --%s value %q", flag, raw)
	}
	if from, err = parse(fromRaw, "from"); err != nil {
		return
	}
	to, err = parse(toRaw, "to")
	return
}

func init() {
	detectCmd.Flags().StringVar(&detectFrom, "from", "", "window start (RFC3339 or YYYY-MM-DD)")
	detectCmd.Flags().StringVar(&detectTo, "to", "", "window end (RFC3339 or YYYY-MM-DD)")
	detectCmd.Flags().BoolVar(&detectDryRun, "dry-run", false, "print detections instead of persisting them")
	rootCmd.AddCommand(detectCmd)
}
