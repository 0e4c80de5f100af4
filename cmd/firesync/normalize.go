package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/firesync/internal/domain"
	"github.com/couchcryptid/firesync/internal/normalize"
	"github.com/couchcryptid/firesync/internal/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type normalizeFlags struct {
	incidents  string
	viirs      string
	modis      string
	window     time.Duration
	modisFloor float64
	summary    bool
}

type normalizeOutput struct {
	Reports   []normalize.Report                   `json:"reports"`
	Incidents []domain.FireIncident                `json:"incidents,omitempty"`
	Hotspots  map[domain.Provider][]domain.Hotspot `json:"hotspots,omitempty"`
}

func addNormalizeCmd(root *cobra.Command) {
	var f normalizeFlags
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize saved feed payloads and print the result as JSON",
		Example: `  firesync normalize --incidents data/mock/wfigs_incidents.geojson \
    --viirs data/mock/viirs_hotspots.geojson --modis data/mock/modis_hotspots.geojson`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.incidents == "" && f.viirs == "" && f.modis == "" {
				return errors.New("at least one of --incidents, --viirs or --modis is required")
			}
			out, err := runNormalize(f, observability.NewLoggerTo(cmd.ErrOrStderr(), "warn", "text"))
			if err != nil {
				return err
			}
			if f.summary {
				out.Incidents = nil
				out.Hotspots = nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&f.incidents, "incidents", "", "Incident perimeter GeoJSON file")
	cmd.Flags().StringVar(&f.viirs, "viirs", "", "VIIRS hotspot GeoJSON file")
	cmd.Flags().StringVar(&f.modis, "modis", "", "MODIS hotspot GeoJSON file")
	cmd.Flags().DurationVar(&f.window, "window", 0, "Discard incident reports older than this (0 keeps all)")
	cmd.Flags().Float64Var(&f.modisFloor, "modis-floor", 80, "Minimum MODIS confidence")
	cmd.Flags().BoolVar(&f.summary, "summary", false, "Print only the normalization reports")
	root.AddCommand(cmd)
}

// runNormalize normalizes each given file concurrently. Reports are ordered
// incidents, viirs, modis.
func runNormalize(f normalizeFlags, logger *slog.Logger) (normalizeOutput, error) {
	n := normalize.New(logger)

	var (
		g         errgroup.Group
		reports   [3]*normalize.Report
		incidents []domain.FireIncident
		hotspots  [2][]domain.Hotspot
	)

	if f.incidents != "" {
		g.Go(func() error {
			payload, err := os.ReadFile(f.incidents)
			if err != nil {
				return fmt.Errorf("read incidents: %w", err)
			}
			out, report, err := n.Incidents(normalize.WFIGSIncidents(f.window), payload)
			if err != nil {
				return fmt.Errorf("normalize %s: %w", f.incidents, err)
			}
			incidents, reports[0] = out, &report
			return nil
		})
	}

	for i, file := range []string{f.viirs, f.modis} {
		if file == "" {
			continue
		}
		provider := domain.Providers()[i]
		g.Go(func() error {
			payload, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s hotspots: %w", provider, err)
			}
			src, _ := normalize.HotspotSourceFor(provider, f.modisFloor)
			out, report, err := n.Hotspots(src, payload)
			if err != nil {
				return fmt.Errorf("normalize %s: %w", file, err)
			}
			hotspots[i], reports[i+1] = out, &report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return normalizeOutput{}, err
	}

	out := normalizeOutput{Incidents: incidents, Hotspots: make(map[domain.Provider][]domain.Hotspot)}
	for _, r := range reports {
		if r != nil {
			out.Reports = append(out.Reports, *r)
		}
	}
	for i, points := range hotspots {
		if points != nil {
			out.Hotspots[domain.Providers()[i]] = points
		}
	}
	return out, nil
}
