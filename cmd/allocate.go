package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/thrustmapper/core/allocation"
	"github.com/kilianp07/thrustmapper/core/model"
	"github.com/kilianp07/thrustmapper/infra/logger"
)

type allocateOptions struct {
	force  []float64
	torque []float64
	drop   []string
}

func newAllocateCmd() *cobra.Command {
	o := &allocateOptions{}
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate a single wrench offline and print the thrust commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.OutOrStdout())
		},
	}
	cmd.Flags().Float64SliceVar(&o.force, "force", []float64{0, 0, 0}, "force x,y,z in N")
	cmd.Flags().Float64SliceVar(&o.torque, "torque", []float64{0, 0, 0}, "torque x,y,z in N·m")
	cmd.Flags().StringSliceVar(&o.drop, "drop", nil, "thrusters to exclude")
	return cmd
}

func vec3(name string, v []float64) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("--%s needs 3 components, got %d", name, len(v))
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

func (o *allocateOptions) run(out io.Writer) error {
	force, err := vec3("force", o.force)
	if err != nil {
		return err
	}
	torque, err := vec3("torque", o.torque)
	if err != nil {
		return err
	}
	l, cfg, err := loadLayout()
	if err != nil {
		return err
	}
	alloc, err := allocation.NewAllocator(l, cfg.Allocator, nil, nil, nil, logger.NopLogger{})
	if err != nil {
		return err
	}
	if len(o.drop) > 0 {
		if err := alloc.UpdateLayout(o.drop); err != nil {
			return err
		}
	}
	res, err := alloc.Handle(context.Background(), model.WrenchRequest{
		Wrench:    model.Wrench{Force: force, Torque: torque},
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Allocation)
}
