package cli

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
	"github.com/strdr1/telegram-bot-api-sub001/internal/usecase"
)

func init() {
	category := &cobra.Command{
		Use:   "category <query>",
		Short: "Resolve free text to a menu category",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCategory,
	}

	dishes := &cobra.Command{
		Use:   "dishes <query>",
		Short: "Search dishes by keywords",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDishes,
	}
	dishes.Flags().IntP("limit", "n", 0, "Maximum number of dishes to show (default: matching.dish_limit)")

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch both menu snapshots from the catalog",
		RunE:  runRefresh,
	}
	refresh.Flags().Bool("force", false, "Refresh even when the snapshots are fresh")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop the delivery snapshot",
		RunE:  runClear,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted snapshots",
		RunE:  runStatus,
	}

	RootCmd.AddCommand(category, dishes, refresh, clearCmd, statusCmd)
}

// openApp loads configuration and restores the persisted snapshots
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := newApp(cfg, sourceOverride)
	a.cache.Restore()
	return a, nil
}

// sourceOverride replaces the catalog client in tests
var sourceOverride domain.CatalogSource

// warmUp fetches snapshots that are missing or stale; failures leave the
// restored ones in place.
func warmUp(cmd *cobra.Command, a *app) {
	if _, err := a.service.Refresh(cmd.Context(), false); err != nil {
		log.Printf("[CACHE] Using restored snapshots: %v", err)
	}
}

func runCategory(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	warmUp(cmd, a)

	result, err := a.service.ResolveCategory(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), result, usecase.RenderMatch(result, a.service.DishLimit()))
}

func runDishes(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	warmUp(cmd, a)

	query := strings.Join(args, " ")
	items, total, err := a.service.SearchDishes(cmd.Context(), query, limit)
	if err != nil {
		return err
	}

	text := usecase.RenderDishes(query, items, len(items))
	if total > len(items) {
		text += fmt.Sprintf("\n…и ещё %d", total-len(items))
	}
	return printResult(cmd.OutOrStdout(), map[string]interface{}{
		"query": query,
		"items": items,
		"total": total,
	}, text)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	reports, err := a.service.Refresh(cmd.Context(), force)
	var lines []string
	for _, r := range reports {
		line := fmt.Sprintf("%s: %d fetched, %d failed, replaced=%v", r.Kind, len(r.Fetched), len(r.Failed), r.Replaced)
		if r.Diff != nil {
			line += fmt.Sprintf(", +%d -%d ~%d (%.2f%%)", len(r.Diff.Added), len(r.Diff.Removed), len(r.Diff.Changed), r.Diff.ChangePercent)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, "snapshots are fresh, nothing fetched")
	}
	if printErr := printResult(cmd.OutOrStdout(), reports, strings.Join(lines, "\n")); printErr != nil {
		return printErr
	}
	return err
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if !a.service.Clear() {
		return fmt.Errorf("delivery snapshot cleared in memory but its file could not be removed")
	}
	return printResult(cmd.OutOrStdout(), map[string]bool{"cleared": true}, "delivery snapshot cleared")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	status := a.service.Status()
	var lines []string
	for _, s := range status {
		line := fmt.Sprintf("%s: %s, %d menus, %d items", s.Kind, s.State, s.Menus, s.Items)
		if s.Timestamp != nil {
			line += fmt.Sprintf(", taken %s", s.Timestamp.Format("2006-01-02 15:04:05"))
		}
		lines = append(lines, line)
	}
	return printResult(cmd.OutOrStdout(), status, strings.Join(lines, "\n"))
}
