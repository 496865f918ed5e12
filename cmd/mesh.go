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

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/decompose"
	"github.com/notargets/globemesh/earthmodel"
	"github.com/notargets/globemesh/radial"
	"github.com/notargets/globemesh/superbrick"
	"github.com/notargets/globemesh/tables"
	"github.com/notargets/globemesh/topology"
)

type MeshRun struct {
	Check      bool
	Verbose    bool
	Profile    string
	ProfileDir string
}

// MeshCmd represents the mesh command
var MeshCmd = &cobra.Command{
	Use:   "mesh",
	Short: "Builds and decomposes the global mesh, then checks every slice boundary",
	Long: `
Builds every slice of the cubed sphere concurrently, exchanges boundary
descriptions between neighboring slices and reports the result. The attenuation
and gravity tables are built alongside the decomposition.

globemesh mesh --nex 32 --nproc 2 --check`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		mr := &MeshRun{}
		mr.Check, _ = cmd.Flags().GetBool("check")
		mr.Verbose, _ = cmd.Flags().GetBool("slices")
		mr.Profile, _ = cmd.Flags().GetString("profile")
		mr.ProfileDir, _ = cmd.Flags().GetString("profileDir")
		switch mr.Profile {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(mr.ProfileDir)).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(mr.ProfileDir)).Stop()
		default:
			return fmt.Errorf("unknown profile %q, use cpu or mem", mr.Profile)
		}
		var mp *InputParameters.MeshParameters
		if mp, err = loadParameters(); err != nil {
			return
		}
		return RunMesh(cmd.Context(), mp, mr, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(MeshCmd)
	MeshCmd.Flags().Bool("check", false, "check covering and conformity of every slice")
	MeshCmd.Flags().Bool("slices", false, "print the boundary description of every slice")
	MeshCmd.Flags().String("profile", "", "write a cpu or mem profile")
	MeshCmd.Flags().String("profileDir", ".", "directory for the profile output")
}

func buildTopology(mp *InputParameters.MeshParameters) (topo *topology.Topology, err error) {
	var plan *radial.Plan
	if plan, err = radial.NewPlan(mp); err != nil {
		return
	}
	return topology.NewTopology(mp, plan, superbrick.Reference(), logger)
}

// RunMesh decomposes the mesh while the radial tables are built. A table that
// fails to build is reported and left out, the mesh is still written.
func RunMesh(ctx context.Context, mp *InputParameters.MeshParameters, mr *MeshRun, w io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		topo  *topology.Topology
		d     *decompose.Decomposer
		all   []*decompose.Slice
		atten *tables.AttenuationTable
		grav  *tables.GravityTable
		model = earthmodel.NewPREMWithRadii(mp.Radii)
		g     errgroup.Group
	)
	if topo, err = buildTopology(mp); err != nil {
		return
	}
	if d, err = decompose.NewDecomposer(topo, logger); err != nil {
		return
	}
	g.Go(func() (err error) {
		if atten, err = tables.BuildAttenuation(ctx, mp, model, logger); err != nil {
			logger.Warn("attenuation table skipped", zap.Error(err))
		}
		return nil
	})
	g.Go(func() (err error) {
		if grav, err = tables.BuildGravity(mp, model, logger); err != nil {
			logger.Warn("gravity table skipped", zap.Error(err))
		}
		return nil
	})
	all, err = d.Decompose(ctx)
	_ = g.Wait()
	if err != nil {
		for _, te := range decompose.TopologyErrors(err) {
			fmt.Fprintln(w, te)
		}
		return
	}

	fmt.Fprintf(w, "build %s: %d slices, %d elements per chunk, %d central cube elements\n",
		d.BuildID(), d.NumSlices(), topo.ChunkElementCount(), topo.CubeElementCount())
	if mr.Verbose {
		for _, s := range all {
			s.Print(w)
		}
	}
	decompose.PrintCommunication(w, decompose.CommunicationMatrix(all))
	if atten != nil {
		fmt.Fprintf(w, "attenuation: %d entries, %d distinct Q\n", len(atten.Entries), len(atten.Fits))
	}
	if grav != nil {
		fmt.Fprintf(w, "gravity: %d entries, surface g %.4f m/s^2\n", len(grav.Entries), grav.Entries[len(grav.Entries)-1].G)
	}
	if !mr.Check {
		return
	}
	if err = d.CheckCovering(all); err != nil {
		return
	}
	for _, s := range all {
		m, err := d.CheckConforming(s)
		if err != nil {
			return err
		}
		if mr.Verbose {
			fmt.Fprintf(w, "slice %d\n", s.ID)
			m.PrintStatistics(w)
		}
	}
	fmt.Fprintln(w, "all slices cover the globe and conform")
	return
}
