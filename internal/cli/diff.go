package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
	"github.com/strdr1/telegram-bot-api-sub001/internal/infrastructure/store"
	"github.com/strdr1/telegram-bot-api-sub001/internal/usecase"
)

func init() {
	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Compare two persisted snapshots",
		Args:  cobra.ExactArgs(2),
		RunE:  runDiff,
	}
	cmd.Flags().Float64("threshold", 15, "Change percentage considered significant")

	RootCmd.AddCommand(cmd)
}

// diffOutput is the JSON form of the diff command
type diffOutput struct {
	*domain.DiffResult
	Significant bool `json:"significant"`
}

func runDiff(cmd *cobra.Command, args []string) error {
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	old, err := readSnapshot(args[0])
	if err != nil {
		return err
	}
	current, err := readSnapshot(args[1])
	if err != nil {
		return err
	}

	diff := usecase.CompareSnapshots(old, current)
	significant := usecase.IsSignificant(diff, threshold, false)

	var b strings.Builder
	fmt.Fprintf(&b, "%d changes (%.2f%%), significant=%v", diff.TotalChanges(), diff.ChangePercent, significant)
	for _, r := range diff.Added {
		fmt.Fprintf(&b, "\n+ %s %s: %s", r.ID, r.Name, usecase.FormatPrice(r.Price))
	}
	for _, r := range diff.Removed {
		fmt.Fprintf(&b, "\n- %s %s", r.ID, r.Name)
	}
	for _, c := range diff.Changed {
		fmt.Fprintf(&b, "\n~ %s %s: %s", c.ID, c.Name, strings.Join(c.Fields, ", "))
	}

	return printResult(cmd.OutOrStdout(), diffOutput{DiffResult: diff, Significant: significant}, b.String())
}

func readSnapshot(path string) (*domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := store.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}
