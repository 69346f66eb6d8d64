package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/thrustmapper/config"
	"github.com/kilianp07/thrustmapper/core/allocation"
	"github.com/kilianp07/thrustmapper/core/model"
)

func newMatrixCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the allocation matrix of the configured layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printMatrix(cmd.OutOrStdout(), jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")
	return cmd
}

// loadLayout reads the layout from --layout or from the configuration file.
func loadLayout() (*allocation.Layout, config.Config, error) {
	var cfg config.Config
	var thrusters []model.Thruster
	var err error
	if layoutPath != "" {
		thrusters, err = config.LoadLayoutFile(layoutPath)
	} else {
		var loaded *config.Config
		loaded, err = config.Load(cfgPath)
		if err == nil {
			cfg = *loaded
			thrusters, err = cfg.Layout.Resolve()
		}
	}
	if err != nil {
		return nil, cfg, err
	}
	cfg.Allocator.SetDefaults()
	l, err := allocation.BuildLayout(thrusters)
	return l, cfg, err
}

func printMatrix(out io.Writer, asJSON bool) error {
	l, _, err := loadLayout()
	if err != nil {
		return err
	}
	if asJSON {
		return json.NewEncoder(out).Encode(map[string]any{
			"rows":      model.WrenchDim,
			"cols":      l.Len(),
			"thrusters": l.Names(),
			"matrix":    l.Flatten(),
		})
	}
	return writeMatrix(out, l)
}

func writeMatrix(w io.Writer, l *allocation.Layout) error {
	rows := []string{"fx", "fy", "fz", "tx", "ty", "tz"}
	flat := l.Flatten()
	n := l.Len()
	var b strings.Builder
	b.WriteString("    ")
	for _, name := range l.Names() {
		fmt.Fprintf(&b, " %9s", name)
	}
	b.WriteByte('\n')
	for i, r := range rows {
		fmt.Fprintf(&b, "%-4s", r)
		for j := 0; j < n; j++ {
			fmt.Fprintf(&b, " %9.4f", flat[i*n+j])
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
