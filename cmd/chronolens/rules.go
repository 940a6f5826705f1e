package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"

	"chronolens/internal/cli"
	"chronolens/internal/model"
	"chronolens/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
		Long:  `List, add, and delete the rules that map observed activity to categories, or move whole rule sets between machines as YAML.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(deleteRuleCmd())
	cmd.AddCommand(exportRulesCmd())
	cmd.AddCommand(importRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	var categoryName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categorization rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var rules []model.CategoryRule
			if categoryName != "" {
				category, catErr := store.GetCategoryByName(ctx, categoryName)
				if catErr != nil {
					return fmt.Errorf("failed to get category: %w", catErr)
				}
				if category == nil {
					return fmt.Errorf("category %q not found", categoryName)
				}
				rules, err = store.GetRulesByCategory(ctx, category.ID)
			} else {
				rules, err = store.GetRules(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println(cli.InfoStyle.Render("No rules found. Use 'chronolens rules add' to create one."))
				return nil
			}

			// Resolve category names once for display.
			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			names := make(map[int]string, len(categories))
			for i := range categories {
				names[categories[i].ID] = categories[i].Name
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("Category"),
				cli.HeaderStyle.Render("Type"),
				cli.HeaderStyle.Render("Match"),
				cli.HeaderStyle.Render("Pattern"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 4),
				strings.Repeat("-", 16),
				strings.Repeat("-", 14),
				strings.Repeat("-", 8),
				strings.Repeat("-", 30))

			for i := range rules {
				r := &rules[i]
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					r.ID, names[r.CategoryID], r.Type, r.Match, r.Pattern)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&categoryName, "category", "", "Only show rules for this category")

	return cmd
}

func addRuleCmd() *cobra.Command {
	var (
		ruleType  string
		matchMode string
	)

	cmd := &cobra.Command{
		Use:   "add <category> <pattern>",
		Short: "Add a categorization rule",
		Long: `Attach a matching rule to a category. Rule types are app, domain,
keyword, domain_keyword, and file_path; domain_keyword patterns take the
form "<domain>|<keyword>".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			categoryName, pattern := args[0], args[1]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			category, err := store.GetCategoryByName(ctx, categoryName)
			if err != nil {
				return fmt.Errorf("failed to get category: %w", err)
			}
			if category == nil {
				return fmt.Errorf("category %q not found", categoryName)
			}

			rule := &model.CategoryRule{
				CategoryID: category.ID,
				Type:       model.RuleType(ruleType),
				Pattern:    pattern,
				Match:      model.MatchMode(matchMode),
			}

			// A broken regex still creates the rule, but it will only ever
			// match as a substring, so warn up front.
			if rule.Match == model.MatchRegex {
				if _, reErr := regexp.Compile(pattern); reErr != nil {
					fmt.Println(cli.WarningStyle.Render(fmt.Sprintf("⚠ pattern does not compile as a regex and will match as a substring instead: %v", reErr)))
				}
			}

			created, err := store.CreateRule(ctx, rule)
			if err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Created %s rule %d for %q", created.Type, created.ID, category.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&ruleType, "type", "app", "Rule type (app, domain, keyword, domain_keyword, file_path)")
	cmd.Flags().StringVar(&matchMode, "match", "exact", "Match mode (exact, contains, regex)")

	return cmd
}

func deleteRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a categorization rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule ID: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteRule(ctx, id); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Deleted rule %d", id)))
			return nil
		},
	}
}

// ruleSetFile is the YAML document shape used by export and import.
type ruleSetFile struct {
	Categories []ruleSetCategory `yaml:"categories"`
}

type ruleSetCategory struct {
	Name         string        `yaml:"name"`
	Color        string        `yaml:"color,omitempty"`
	Productivity string        `yaml:"productivity,omitempty"`
	Priority     int           `yaml:"priority,omitempty"`
	Passive      bool          `yaml:"passive,omitempty"`
	Rules        []ruleSetRule `yaml:"rules,omitempty"`
}

type ruleSetRule struct {
	Type    string `yaml:"type"`
	Pattern string `yaml:"pattern"`
	Match   string `yaml:"match"`
}

func exportRulesCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export categories and rules as YAML",
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

			doc := ruleSetFile{}
			for i := range categories {
				cat := &categories[i]
				if cat.IsSentinel() {
					continue
				}

				rules, rulesErr := store.GetRulesByCategory(ctx, cat.ID)
				if rulesErr != nil {
					return fmt.Errorf("failed to get rules for %q: %w", cat.Name, rulesErr)
				}

				entry := ruleSetCategory{
					Name:         cat.Name,
					Color:        cat.Color,
					Productivity: string(cat.Productivity),
					Priority:     cat.Priority,
					Passive:      cat.IsPassive,
				}
				for j := range rules {
					entry.Rules = append(entry.Rules, ruleSetRule{
						Type:    string(rules[j].Type),
						Pattern: rules[j].Pattern,
						Match:   string(rules[j].Match),
					})
				}
				doc.Categories = append(doc.Categories, entry)
			}

			data, err := yaml.Marshal(&doc)
			if err != nil {
				return fmt.Errorf("failed to marshal rule set: %w", err)
			}

			if output == "" {
				fmt.Print(string(data))
				return nil
			}

			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Exported %d categories to %s", len(doc.Categories), output)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func importRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import categories and rules from YAML",
		Long: `Read a YAML rule set produced by 'chronolens rules export' and merge it
into the database. Categories are matched by name and created when
missing; rules already present are not duplicated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var doc ruleSetFile
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse rule set: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var createdCategories, createdRules int
			for _, entry := range doc.Categories {
				category, created, catErr := ensureCategory(cmd, store, entry)
				if catErr != nil {
					return catErr
				}
				if category == nil {
					continue
				}
				if created {
					createdCategories++
				}

				existing, rulesErr := store.GetRulesByCategory(ctx, category.ID)
				if rulesErr != nil {
					return fmt.Errorf("failed to get rules for %q: %w", category.Name, rulesErr)
				}

				for _, r := range entry.Rules {
					if hasRule(existing, r) {
						continue
					}
					rule := &model.CategoryRule{
						CategoryID: category.ID,
						Type:       model.RuleType(r.Type),
						Pattern:    r.Pattern,
						Match:      model.MatchMode(r.Match),
					}
					if _, createErr := store.CreateRule(ctx, rule); createErr != nil {
						return fmt.Errorf("failed to create rule %q for %q: %w", r.Pattern, category.Name, createErr)
					}
					createdRules++
				}
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Imported %d new categories and %d new rules", createdCategories, createdRules)))
			return nil
		},
	}
}

// ensureCategory finds the named category or creates it from the import
// entry. The sentinel category is never imported.
func ensureCategory(cmd *cobra.Command, store service.Storage, entry ruleSetCategory) (category *model.Category, created bool, err error) {
	ctx := cmd.Context()

	if entry.Name == model.SentinelCategoryName {
		return nil, false, nil
	}

	category, err = store.GetCategoryByName(ctx, entry.Name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up category %q: %w", entry.Name, err)
	}
	if category != nil {
		return category, false, nil
	}

	category, err = store.CreateCategory(ctx, &model.Category{
		Name:         entry.Name,
		Color:        entry.Color,
		Productivity: model.ProductivityType(entry.Productivity),
		Priority:     entry.Priority,
		IsPassive:    entry.Passive,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create category %q: %w", entry.Name, err)
	}
	return category, true, nil
}

func hasRule(existing []model.CategoryRule, r ruleSetRule) bool {
	for i := range existing {
		if string(existing[i].Type) == r.Type &&
			existing[i].Pattern == r.Pattern &&
			string(existing[i].Match) == r.Match {
			return true
		}
	}
	return false
}
