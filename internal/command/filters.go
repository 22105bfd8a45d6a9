package command

import (
	"context"
	"fmt"
	"strings"
)

// AddFilterCommand implements /addfilter <word>.
type AddFilterCommand struct{}

func (c *AddFilterCommand) Kind() Kind          { return KindAddFilter }
func (c *AddFilterCommand) Usage() string       { return "/addfilter <word>" }
func (c *AddFilterCommand) Description() string { return "Block WA messages starting with it" }

func (c *AddFilterCommand) Execute(ctx context.Context, args []string, env Env) error {
	if len(args) == 0 {
		return env.send(ctx, "❌ Usage: /addfilter <word>")
	}
	word := strings.ToLower(strings.Join(args, " "))
	if err := env.Filters.AddFilter(word); err != nil {
		return fmt.Errorf("add filter: %w", err)
	}
	return env.send(ctx, fmt.Sprintf("✅ Added filter: `%s`", word))
}

// ListFiltersCommand implements /filters.
type ListFiltersCommand struct{}

func (c *ListFiltersCommand) Kind() Kind          { return KindFilters }
func (c *ListFiltersCommand) Usage() string       { return "/filters" }
func (c *ListFiltersCommand) Description() string { return "Show current filters" }

func (c *ListFiltersCommand) Execute(ctx context.Context, _ []string, env Env) error {
	words := env.Filters.Filters()
	if len(words) == 0 {
		return env.send(ctx, "⚠️ No filters set.")
	}
	lines := make([]string, 0, len(words))
	for _, w := range words {
		lines = append(lines, fmt.Sprintf("- `%s`", w))
	}
	return env.send(ctx, "🛑 *Current Filters:*\n\n"+strings.Join(lines, "\n"))
}

// ClearFiltersCommand implements /clearfilters.
type ClearFiltersCommand struct{}

func (c *ClearFiltersCommand) Kind() Kind          { return KindClearFilters }
func (c *ClearFiltersCommand) Usage() string       { return "/clearfilters" }
func (c *ClearFiltersCommand) Description() string { return "Remove all filters" }

func (c *ClearFiltersCommand) Execute(ctx context.Context, _ []string, env Env) error {
	if err := env.Filters.ClearFilters(); err != nil {
		return fmt.Errorf("clear filters: %w", err)
	}
	return env.send(ctx, "🧹 All filters cleared.")
}
