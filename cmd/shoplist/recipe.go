package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"shoplist/internal/model"
	"shoplist/internal/recipes"
	"shoplist/internal/webimport"
)

func (c *cli) recipeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "recipe", Short: "Manage recipes"}

	var (
		desc  string
		steps []string
		lines []string
		file  string
	)
	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a recipe, or every recipe of a YAML file with -f",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var drafts []recipes.Draft
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &drafts); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			} else {
				if len(args) == 0 {
					return fmt.Errorf("recipe name or -f is required")
				}
				d := recipes.Draft{Name: args[0], Description: desc, Steps: steps}
				for _, l := range lines {
					line, err := parseLine(l)
					if err != nil {
						return err
					}
					d.Ingredients = append(d.Ingredients, line)
				}
				drafts = append(drafts, d)
			}
			a, err := c.services()
			if err != nil {
				return err
			}
			for _, d := range drafts {
				r, err := a.Recipes.Create(d)
				if err != nil {
					return fmt.Errorf("%q: %w", d.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added recipe %d %s\n", r.ID, r.Name)
			}
			return nil
		},
	}
	add.Flags().StringVar(&desc, "desc", "", "description")
	add.Flags().StringArrayVar(&steps, "step", nil, "preparation step (repeatable)")
	add.Flags().StringArrayVar(&lines, "ing", nil, `ingredient as "name:quantity[:unit]" (repeatable)`)
	add.Flags().StringVarP(&file, "file", "f", "", "YAML file with a list of recipes")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.services()
			if err != nil {
				return err
			}
			all, err := a.Recipes.List()
			if err != nil {
				return err
			}
			for _, r := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", r.ID, r.Name)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recipe with its ingredients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.services()
			if err != nil {
				return err
			}
			r, err := a.Recipes.Get(id)
			if err != nil {
				return err
			}
			rows, err := a.Recipes.Ingredients(id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", r.Name)
			if r.Description != "" {
				fmt.Fprintf(out, "%s\n", r.Description)
			}
			for _, row := range rows {
				ing, _, err := a.Catalog.Get(row.IngredientID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  - %s %s\n", ing.Name, model.FormatQuantity(row.Quantity, row.Unit))
			}
			for i, s := range r.Steps {
				fmt.Fprintf(out, "  %d. %s\n", i+1, s)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.services()
			if err != nil {
				return err
			}
			if err := a.Recipes.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted recipe %d\n", id)
			return nil
		},
	}

	imp := &cobra.Command{
		Use:   "import <url>",
		Short: "Create a recipe from a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			d, err := webimport.New(nil).FromURL(ctx, args[0])
			if err != nil {
				return err
			}
			a, err := c.services()
			if err != nil {
				return err
			}
			r, err := a.Recipes.Create(d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported recipe %d %s (add ingredients with recipe edit)\n", r.ID, r.Name)
			return nil
		},
	}

	var (
		editName  string
		editDesc  string
		editSteps []string
		editLines []string
	)
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a recipe; each flag given replaces that part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.services()
			if err != nil {
				return err
			}
			r, err := a.Recipes.Get(id)
			if err != nil {
				return err
			}
			d := recipes.Draft{Name: r.Name, Description: r.Description, ImageURI: r.ImageURI, Steps: r.Steps}
			rows, err := a.Recipes.Ingredients(id)
			if err != nil {
				return err
			}
			for _, row := range rows {
				ing, ok, err := a.Catalog.Get(row.IngredientID)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				d.Ingredients = append(d.Ingredients, recipes.Line{Name: ing.Name, Quantity: row.Quantity, Unit: string(row.Unit)})
			}

			f := cmd.Flags()
			if f.Changed("name") {
				d.Name = editName
			}
			if f.Changed("desc") {
				d.Description = editDesc
			}
			if f.Changed("step") {
				d.Steps = editSteps
			}
			if f.Changed("ing") {
				d.Ingredients = nil
				for _, l := range editLines {
					line, err := parseLine(l)
					if err != nil {
						return err
					}
					d.Ingredients = append(d.Ingredients, line)
				}
			}
			r, err = a.Recipes.Update(id, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated recipe %d %s (%d ingredients)\n", r.ID, r.Name, len(d.Ingredients))
			return nil
		},
	}
	edit.Flags().StringVar(&editName, "name", "", "new name")
	edit.Flags().StringVar(&editDesc, "desc", "", "new description")
	edit.Flags().StringArrayVar(&editSteps, "step", nil, "preparation step (repeatable, replaces all steps)")
	edit.Flags().StringArrayVar(&editLines, "ing", nil, `ingredient as "name:quantity[:unit]" (repeatable, replaces all ingredients)`)

	cmd.AddCommand(add, list, show, edit, del, imp)
	return cmd
}

// parseLine reads "name:quantity" or "name:quantity:unit". The unit is
// checked when the recipe is created.
func parseLine(s string) (recipes.Line, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return recipes.Line{}, fmt.Errorf("ingredient %q: want name:quantity[:unit]", s)
	}
	qty, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return recipes.Line{}, fmt.Errorf("ingredient %q: bad quantity: %w", s, err)
	}
	l := recipes.Line{Name: parts[0], Quantity: qty}
	if len(parts) == 3 {
		l.Unit = strings.TrimSpace(parts[2])
	}
	return l, nil
}
