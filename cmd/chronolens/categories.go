package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"chronolens/internal/cli"
	"chronolens/internal/model"

	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage activity categories",
		Long:  `List, add, update, and delete the categories activities are classified into.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			if len(categories) == 0 {
				fmt.Println(cli.InfoStyle.Render("No categories found. Use 'chronolens categories add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("Name"),
				cli.HeaderStyle.Render("Priority"),
				cli.HeaderStyle.Render("Productivity"),
				cli.HeaderStyle.Render("Passive"),
				cli.HeaderStyle.Render("Color"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 4),
				strings.Repeat("-", 20),
				strings.Repeat("-", 8),
				strings.Repeat("-", 12),
				strings.Repeat("-", 7),
				strings.Repeat("-", 7))

			for i := range categories {
				cat := &categories[i]
				passive := ""
				if cat.IsPassive {
					passive = "yes"
				}
				name := cat.Name
				if cat.IsSentinel() {
					name = cli.SubtleStyle.Render(name)
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
					cat.ID, name, cat.Priority, cat.Productivity, passive, cat.Color)
			}

			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var (
		color        string
		productivity string
		priority     int
		passive      bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			categoryName := args[0]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			existing, err := store.GetCategoryByName(ctx, categoryName)
			if err != nil {
				return fmt.Errorf("failed to check existing category: %w", err)
			}
			if existing != nil {
				return fmt.Errorf("category %q already exists", categoryName)
			}

			category := &model.Category{
				Name:         categoryName,
				Color:        color,
				Productivity: model.ProductivityType(productivity),
				Priority:     priority,
				IsPassive:    passive,
			}

			created, err := store.CreateCategory(ctx, category)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Created category %q (ID: %d)", created.Name, created.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "Display color as a hex string (default #808080)")
	cmd.Flags().StringVar(&productivity, "productivity", "neutral", "Productivity weight (productive, neutral, distraction)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Match priority; higher wins within a cascade stage")
	cmd.Flags().BoolVar(&passive, "passive", false, "Passive categories keep accruing time while idle")

	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var (
		name         string
		color        string
		productivity string
		priority     int
		passive      bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid category ID: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			category, err := store.GetCategoryByID(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get category: %w", err)
			}
			if category == nil {
				return fmt.Errorf("category with ID %d not found", id)
			}

			if cmd.Flags().Changed("name") {
				category.Name = name
			}
			if cmd.Flags().Changed("color") {
				category.Color = color
			}
			if cmd.Flags().Changed("productivity") {
				category.Productivity = model.ProductivityType(productivity)
			}
			if cmd.Flags().Changed("priority") {
				category.Priority = priority
			}
			if cmd.Flags().Changed("passive") {
				category.IsPassive = passive
			}

			if err := store.UpdateCategory(ctx, category); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Updated category %d", id)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New category name")
	cmd.Flags().StringVar(&color, "color", "", "New display color")
	cmd.Flags().StringVar(&productivity, "productivity", "", "New productivity weight")
	cmd.Flags().IntVar(&priority, "priority", 0, "New match priority")
	cmd.Flags().BoolVar(&passive, "passive", false, "New passive flag")

	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Long:  `Delete a category. Its activities are reassigned to Uncategorized and its rules are removed.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid category ID: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if !force {
				fmt.Printf("Are you sure you want to delete category %d? (y/N): ", id)
				var response string
				fmt.Scanln(&response)
				if strings.ToLower(response) != "y" {
					fmt.Println("Deletion cancelled.")
					return nil
				}
			}

			if err := store.DeleteCategory(ctx, id); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Deleted category %d", id)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}
