// Command legscan is the batch entry point: it feeds an OHLC bar file
// through the leg detector, then replays the bars plus the swings it
// formed through the discretizer to produce a DiscretizationLog,
// grounded on cmd/cryptorun's cobra/zerolog wiring.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	legscanconfig "github.com/sawpanic/legscan/internal/config"
	"github.com/sawpanic/legscan/internal/domain/discretize"
	"github.com/sawpanic/legscan/internal/domain/legs"
	"github.com/sawpanic/legscan/internal/domain/reference"
	"github.com/sawpanic/legscan/internal/domain/swingstate"
	"github.com/sawpanic/legscan/internal/metricsx"
)

const version = "v1.0.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "legscan",
		Short:   "Replay OHLC bars through the leg/swing structure detector",
		Version: version,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Detect legs/swings over a bar file and emit a discretization log",
		RunE:  runDetect,
	}
	runCmd.Flags().String("bars", "", "path to a JSON bar file (required)")
	runCmd.Flags().String("config", "", "path to a YAML config file (optional, defaults used when absent)")
	runCmd.Flags().String("out", "", "output path for the discretization log (stdout when empty)")
	runCmd.Flags().String("instrument", "UNKNOWN", "instrument name recorded in the log metadata")
	runCmd.Flags().String("resolution", "1m", "source bar resolution recorded in the log metadata")
	runCmd.Flags().Bool("explain", false, "print a human-readable narration of every event to stderr")
	_ = runCmd.MarkFlagRequired("bars")

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("legscan failed")
		os.Exit(1)
	}
}

func runDetect(cmd *cobra.Command, args []string) error {
	barsPath, _ := cmd.Flags().GetString("bars")
	configPath, _ := cmd.Flags().GetString("config")
	outPath, _ := cmd.Flags().GetString("out")
	instrument, _ := cmd.Flags().GetString("instrument")
	resolution, _ := cmd.Flags().GetString("resolution")
	explain, _ := cmd.Flags().GetBool("explain")

	legsCfg := legs.DefaultConfig()
	swingCfg := swingstate.DefaultConfig()
	discCfg := discretize.DefaultConfig()

	if configPath != "" {
		raw, err := legscanconfig.Load(configPath)
		if err != nil {
			return err
		}
		built, err := raw.Build()
		if err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		legsCfg, swingCfg, discCfg = built.Legs, built.SwingState, built.Discretize
	}

	bars, err := loadBars(barsPath)
	if err != nil {
		return err
	}
	log.Info().Int("bars", len(bars)).Str("instrument", instrument).Msg("loaded bar file")

	metrics := metricsx.NewRegistry(newScrapeRegistry())

	detector, err := legs.NewDetector(legsCfg)
	if err != nil {
		return fmt.Errorf("construct detector: %w", err)
	}
	swingMgr, err := swingstate.NewManager(swingCfg)
	if err != nil {
		return fmt.Errorf("construct swing-state manager: %w", err)
	}

	swingsByScale := make(map[swingstate.Scale][]discretize.SwingEntry)
	swingScaleByID := make(map[string]swingstate.Scale)

	for _, bar := range bars {
		timer := metrics.StartBarTimer("legs")
		events, err := detector.ProcessBar(bar)
		timer.Stop()
		if err != nil {
			return fmt.Errorf("process bar %d: %w", bar.Index, err)
		}
		for _, ev := range events {
			if explain {
				fmt.Fprintln(os.Stderr, ev.Explain())
			}
			switch ev.Kind {
			case legs.EventLegCreated:
				metrics.RecordLegCreated(legDirectionLabel(detector, ev.LegID))
			case legs.EventLegPruned:
				metrics.RecordLegPruned(string(ev.Reason), legDirectionLabel(detector, ev.LegID))
			case legs.EventSwingFormed:
				sw, ok := detector.Swing(ev.SwingID)
				if !ok {
					continue
				}
				entry := swingEntryFromNode(sw, swingCfg)
				swingsByScale[entry.Scale] = append(swingsByScale[entry.Scale], entry)
				swingScaleByID[sw.SwingID] = entry.Scale
				metrics.RecordSwingFormed(string(entry.Scale))
				if err := swingMgr.Register(sw, sw.HighPrice.Sub(sw.LowPrice)); err != nil {
					return fmt.Errorf("register swing %s: %w", sw.SwingID, err)
				}
			}
		}

		swingTimer := metrics.StartBarTimer("swingstate")
		stateEvents := swingMgr.ProcessBar(bar)
		swingTimer.Stop()
		for _, ev := range stateEvents {
			if explain {
				fmt.Fprintln(os.Stderr, ev.Explain())
			}
			scale := string(swingScaleByID[ev.SwingID])
			switch ev.Kind {
			case swingstate.EventInvalidation:
				metrics.RecordSwingInvalidated(scale)
			case swingstate.EventCompletion:
				metrics.RecordSwingCompleted(scale)
			}
		}
		for _, ev := range swingMgr.FlushPendingCrossEvents() {
			if explain {
				fmt.Fprintln(os.Stderr, ev.Explain())
			}
			metrics.RecordSwingStateLevelCross(ev.Level)
		}
	}

	engine, err := discretize.NewEngine(discCfg)
	if err != nil {
		return fmt.Errorf("construct discretizer: %w", err)
	}

	result, err := engine.Run(discretize.RunInput{
		Instrument:       instrument,
		SourceResolution: resolution,
		Bars:             bars,
		SwingsByScale:    swingsByScale,
	})
	if err != nil {
		return fmt.Errorf("discretize: %w", err)
	}

	for _, ev := range result.Events {
		metrics.RecordDiscretizeEvent(string(ev.EventType), ev.Data["level_crossed"])
	}

	data, err := discretize.Write(result)
	if err != nil {
		return fmt.Errorf("serialize log: %w", err)
	}

	if outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("path", outPath).Int("events", len(result.Events)).Msg("discretization log written")
	return nil
}

func legDirectionLabel(detector *legs.Detector, legID string) string {
	for _, l := range detector.ActiveLegs() {
		if l.LegID == legID {
			return string(l.Direction)
		}
	}
	return "unknown"
}

func swingEntryFromNode(sw *legs.SwingNode, cfg swingstate.Config) discretize.SwingEntry {
	rng := sw.HighPrice.Sub(sw.LowPrice)
	scale := swingstate.ClassifyScale(rng, cfg)

	anchor0 := sw.DefendedPivot()
	anchor1 := sw.Origin()
	anchor0Bar, anchor1Bar := sw.LowBarIndex, sw.HighBarIndex
	if sw.Direction != reference.Bull {
		anchor0Bar, anchor1Bar = sw.HighBarIndex, sw.LowBarIndex
	}

	return discretize.SwingEntry{
		SwingID:     sw.SwingID,
		Scale:       scale,
		Direction:   sw.Direction,
		Anchor0:     anchor0,
		Anchor1:     anchor1,
		Anchor0Bar:  anchor0Bar,
		Anchor1Bar:  anchor1Bar,
		FormedAtBar: sw.FormedAtBar,
		Status:      string(sw.Status),
	}
}
