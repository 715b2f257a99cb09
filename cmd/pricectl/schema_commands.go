package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/homeprice/engine/artifact"
	"github.com/WessleyAI/homeprice/engine/domain"
)

func newSchemaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List the model features in schema order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ctx.paths()
			if err != nil {
				return err
			}
			schema, err := artifact.LoadSchema(paths.Schema)
			if err != nil {
				return err
			}
			if ctx.jsonFlag {
				return writeJSON(cmd, schema.Names())
			}
			rows := make([][]string, 0, schema.Len())
			for i, name := range schema.Names() {
				rows = append(rows, []string{strconv.Itoa(i), name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "Feature"}, rows, []columnAlignment{alignRight, alignLeft}))
			return nil
		},
	}
}

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "categories [field]",
		Short: "Show the categorical label tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maps := domain.CategoryMaps
			if len(args) == 1 {
				maps = nil
				for _, m := range domain.CategoryMaps {
					if m.Field() == args[0] {
						maps = append(maps, m)
					}
				}
				if len(maps) == 0 {
					return fmt.Errorf("unknown categorical field %q", args[0])
				}
			}

			if ctx.jsonFlag {
				out := make(map[string][]domain.Category, len(maps))
				for _, m := range maps {
					out[m.Field()] = m.Entries()
				}
				return writeJSON(cmd, out)
			}
			var rows [][]string
			for _, m := range maps {
				for _, e := range m.Entries() {
					rows = append(rows, []string{m.Field(), m.Feature(), e.Label, strconv.Itoa(e.Code)})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Feature", "Label", "Code"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}
