package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fuelhedge/core/calibrate"
)

var (
	snapshotPath string
	fitDegree    int
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fit unit heat-rate curves from a telemetry snapshot",
	Long: `Reads a telemetry snapshot CSV (unit_id,timestamp,output_mw,fuel_mmbtu,
capacity_mw) and prints fitted heat-rate coefficients and capacities as YAML
fragments for the run configuration.`,
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "telemetry snapshot CSV")
	calibrateCmd.Flags().IntVarP(&fitDegree, "degree", "d", 2, "polynomial degree of the fitted curve")
	_ = calibrateCmd.MarkFlagRequired("snapshot")
}

type fittedUnit struct {
	ID             string    `yaml:"id"`
	HeatRateCoeffs []float64 `yaml:"heat_rate_coeffs"`
	MaxMW          float64   `yaml:"max_mw"`
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	f, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := calibrate.LoadCSV(f)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	units, err := calibrate.FitUnits(snap, fitDegree)
	if err != nil {
		return fmt.Errorf("fit units: %w", err)
	}

	out := make([]fittedUnit, 0, len(units))
	for _, u := range units {
		out = append(out, fittedUnit{ID: u.ID, HeatRateCoeffs: u.HeatRate.Coeffs, MaxMW: u.MaxMW})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(map[string]any{"units": out})
}
