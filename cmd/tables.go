/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/earthmodel"
	"github.com/notargets/globemesh/tables"
)

// TablesCmd represents the tables command
var TablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Builds the attenuation and gravity tables of the Earth model",
	Long: `
Samples the Earth model on a fine radial grid, fits standard linear solids to
each distinct Q over the period band and integrates gravity from the center.

globemesh tables --step 5000`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var mp *InputParameters.MeshParameters
		if mp, err = loadParameters(); err != nil {
			return
		}
		step, _ := cmd.Flags().GetFloat64("step")
		return RunTables(cmd.Context(), mp, step, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(TablesCmd)
	TablesCmd.Flags().Float64("step", 0, "print the tables every step meters, 0 prints a summary only")
}

func RunTables(ctx context.Context, mp *InputParameters.MeshParameters, step float64, w io.Writer) (err error) {
	var (
		model = earthmodel.NewPREMWithRadii(mp.Radii)
		atten *tables.AttenuationTable
		grav  *tables.GravityTable
	)
	if atten, err = tables.BuildAttenuation(ctx, mp, model, logger); err != nil {
		return
	}
	if grav, err = tables.BuildGravity(mp, model, logger); err != nil {
		return
	}
	fmt.Fprintf(w, "tau sigma %v\n", atten.TauSigma)
	for _, q := range atten.DistinctQ() {
		fit := atten.Fits[q]
		fmt.Fprintf(w, "Q %8.1f tau epsilon %v misfit %.3g\n", q, fit.TauEpsilon, fit.Misfit)
	}
	fmt.Fprintf(w, "mass %.5g kg, surface gravity %.4f m/s^2\n", grav.Mass, grav.Entries[len(grav.Entries)-1].G)
	if step <= 0 {
		return
	}
	fmt.Fprintf(w, "%12s %8s %-22s %10s %10s %12s\n", "Radius(m)", "Qmu", "Region", "Density", "g", "dg/dr")
	for r := 0.; r <= mp.Radii.Earth; r += step {
		a, g := atten.Lookup(r), grav.Interpolate(r)
		fmt.Fprintf(w, "%12.1f %8.1f %-22s %10.2f %10.5f %12.5g\n", r, a.Qmu, a.Region, g.Density, g.G, g.DG)
	}
	return
}
