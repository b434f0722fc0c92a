package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"shoplist/internal/model"
	"shoplist/internal/shopping"
)

func printItem(out io.Writer, it model.ShoppingListItem) {
	box := "[ ]"
	if it.Checked {
		box = "[x]"
	}
	fmt.Fprintf(out, "%d\t%s %s %s\n", it.ID, box, it.Name, model.FormatQuantity(it.Quantity, it.Unit))
}

func (c *cli) listCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "list", Short: "Work with the shopping list"}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.services()
			if err != nil {
				return err
			}
			items, err := a.Shopping.List()
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(empty)")
			}
			for _, it := range items {
				printItem(cmd.OutOrStdout(), it)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <name...>",
		Short: "Add a manual item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.services()
			if err != nil {
				return err
			}
			it, err := a.Shopping.AddItem(strings.Join(args, " "))
			if err != nil {
				return err
			}
			printItem(cmd.OutOrStdout(), it)
			return nil
		},
	}

	addRecipe := &cobra.Command{
		Use:   "add-recipe <recipe-id>",
		Short: "Merge a recipe's ingredients into the list",
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
			res, err := a.Shopping.AddRecipe(id)
			if errors.Is(err, shopping.ErrRecipeHasNoIngredients) {
				return fmt.Errorf("%w; add some with: shoplist recipe edit %d --ing name:quantity[:unit]", err, id)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d new, %d merged", res.Created, res.Merged)
			if len(res.Skipped) > 0 {
				fmt.Fprintf(out, ", %d skipped (ingredient missing from catalog)", len(res.Skipped))
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	itemCmd := func(use, short string, fn func(int64) (model.ShoppingListItem, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <item-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if _, err := c.services(); err != nil {
					return err
				}
				it, err := fn(id)
				if err != nil {
					return err
				}
				printItem(cmd.OutOrStdout(), it)
				return nil
			},
		}
	}
	// The service is only known once the app is open, hence the indirection.
	toggle := itemCmd("toggle", "Check or uncheck an item", func(id int64) (model.ShoppingListItem, error) {
		return c.app.Shopping.Toggle(id)
	})
	inc := itemCmd("inc", "Add one step (100 g, 10 cl or 1)", func(id int64) (model.ShoppingListItem, error) {
		return c.app.Shopping.Increment(id)
	})
	dec := itemCmd("dec", "Remove one step, down to one step", func(id int64) (model.ShoppingListItem, error) {
		return c.app.Shopping.Decrement(id)
	})

	rm := &cobra.Command{
		Use:   "rm <item-id>",
		Short: "Remove an item",
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
			return a.Shopping.Remove(id)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every checked item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.services()
			if err != nil {
				return err
			}
			n, err := a.Shopping.ClearChecked()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d checked item(s)\n", n)
			return nil
		},
	}

	who := &cobra.Command{
		Use:   "who <item-name...>",
		Short: "Show recipes that use an item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.services()
			if err != nil {
				return err
			}
			rs, err := a.Shopping.RecipesWithItem(strings.Join(args, " "))
			if err != nil {
				return err
			}
			for _, r := range rs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", r.ID, r.Name)
			}
			return nil
		},
	}

	cmd.AddCommand(show, add, addRecipe, toggle, inc, dec, rm, clearCmd, who)
	return cmd
}
