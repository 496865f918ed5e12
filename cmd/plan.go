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
	"github.com/spf13/cobra"

	"github.com/notargets/globemesh/InputParameters"
	"github.com/notargets/globemesh/radial"
)

// PlanCmd represents the plan command
var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Prints the parameters and the radial layering of the mesh",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			mp   *InputParameters.MeshParameters
			plan *radial.Plan
		)
		if mp, err = loadParameters(); err != nil {
			return
		}
		if plan, err = radial.NewPlan(mp); err != nil {
			return
		}
		mp.Print()
		plan.Print(cmd.OutOrStdout())
		return
	},
}

func init() {
	rootCmd.AddCommand(PlanCmd)
}
