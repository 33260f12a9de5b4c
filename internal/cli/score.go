package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-coach/internal/framework"
	"github.com/mind-engage/mindengage-coach/internal/proficiency"
)

// scoreFixture describes one offline scoring run.
type scoreFixture struct {
	// Framework is a framework YAML path, relative to the fixture file.
	Framework string `yaml:"framework"`
	// Checked lists behavior ids or descriptions.
	Checked []string `yaml:"checked"`
	// Overrides maps step number to a level name or Auto-Calculate.
	Overrides map[int]string `yaml:"overrides"`
}

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <fixture.yaml>",
		Short: "Score a fixture against its framework without a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			recs, err := scoreFile(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			return printRecords(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().Bool("json", false, "Print records as JSON")
	return cmd
}

func scoreFile(path string) ([]proficiency.Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx scoreFixture
	if err := yaml.Unmarshal(content, &fx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if fx.Framework == "" {
		return nil, fmt.Errorf("%s: framework is required", path)
	}
	fwPath := fx.Framework
	if !filepath.IsAbs(fwPath) {
		fwPath = filepath.Join(filepath.Dir(path), fwPath)
	}
	raw, err := os.ReadFile(fwPath)
	if err != nil {
		return nil, err
	}
	var fw framework.Framework
	if err := yaml.Unmarshal(raw, &fw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", fwPath, err)
	}
	// behavior ids as written in the file, in tree order
	var fileIDs []string
	for _, st := range fw.Steps {
		for _, ss := range st.Substeps {
			for _, b := range ss.Behaviors {
				fileIDs = append(fileIDs, b.ID)
			}
		}
	}
	if err := framework.Normalize(&fw); err != nil {
		return nil, err
	}

	refs := map[string]string{}
	i := 0
	for _, st := range fw.Steps {
		for _, ss := range st.Substeps {
			for _, b := range ss.Behaviors {
				refs[b.Description] = b.ID
				if fileIDs[i] != "" {
					refs[fileIDs[i]] = b.ID
				}
				i++
			}
		}
	}
	checked := map[string]bool{}
	for _, ref := range fx.Checked {
		id, ok := refs[ref]
		if !ok {
			return nil, fmt.Errorf("unknown behavior %q", ref)
		}
		checked[id] = true
	}

	overrides := map[string]string{}
	for n, level := range fx.Overrides {
		found := false
		for _, st := range fw.Steps {
			if st.Number == n {
				overrides[st.ID] = level
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("override for unknown step %d", n)
		}
	}
	return proficiency.Evaluate("", fw.ScoringLevels(), fw.StepInputs(), checked, overrides)
}

func printRecords(w io.Writer, recs []proficiency.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tLEVEL\tMANUAL\tPOINTS\tPERCENT")
	for _, r := range recs {
		step := fmt.Sprint(r.StepNumber)
		if r.Type == proficiency.TypeOverall {
			step = "overall"
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d/%d\t%d%%\n", step, r.LevelName, r.IsManual, r.PointsEarned, r.TotalPossible, r.Percentage)
	}
	return tw.Flush()
}
