package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shoplist/internal/listener"
)

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "backup", Short: "Snapshots and restore"}

	snap := &cobra.Command{
		Use:   "snapshot",
		Short: "Write a snapshot and publish it as latest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.services()
			if err != nil {
				return err
			}
			id, err := a.Backup.Run()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s\n", id)
			return nil
		},
	}

	rest := &cobra.Command{
		Use:   "restore",
		Short: "Load the latest snapshot and replay the changelog after it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.services()
			if err != nil {
				return err
			}
			res, err := a.Restore()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied=%d skipped=%d\n", res.Applied, res.Skipped)
			return nil
		},
	}

	cmd.AddCommand(snap, rest)
	return cmd
}

func (c *cli) pushCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "push", Short: "Send list commands to a running shoplistd over Kafka"}

	send := func(command listener.Command) error {
		if !c.cfg.KafkaEnabled() {
			return fmt.Errorf("kafka bootstrap is not configured")
		}
		pb, err := listener.NewPublisher(c.cfg.KafkaBootstrap, c.cfg.TopicCommands)
		if err != nil {
			return err
		}
		defer pb.Close()
		return pb.Send(command)
	}

	addRecipe := &cobra.Command{
		Use:   "add-recipe <recipe-id>",
		Short: "Ask the daemon to merge a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return send(listener.Command{Type: listener.TypeAddRecipe, RecipeID: id})
		},
	}
	addItem := &cobra.Command{
		Use:   "add-item <name>",
		Short: "Ask the daemon to add a manual item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(listener.Command{Type: listener.TypeAddItem, Name: args[0]})
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear-checked",
		Short: "Ask the daemon to remove checked items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(listener.Command{Type: listener.TypeClearChecked})
		},
	}
	cmd.AddCommand(addRecipe, addItem, clearCmd)
	return cmd
}
