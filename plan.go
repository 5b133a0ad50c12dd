package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/km-arc/go-component/framework/container"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compose without starting and print the start order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		application, err := bootstrap()
		if err != nil {
			return err
		}
		if err := application.Boot(); err != nil {
			return err
		}
		renderPlan(cmd.OutOrStdout(), application.Lifecycle().States())
		return nil
	},
}

// renderPlan prints one row per component in start order.
func renderPlan(w io.Writer, states []container.ComponentState) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Component", "Depends On", "State"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for i, st := range states {
		deps := make([]string, len(st.DependsOn))
		for j, d := range st.DependsOn {
			deps[j] = string(d)
		}
		dependsOn := strings.Join(deps, ", ")
		if dependsOn == "" {
			dependsOn = "-"
		}
		table.Append([]string{fmt.Sprint(i + 1), string(st.TypeID), dependsOn, st.State.String()})
	}
	table.Render()
}
