package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/thrustmapper/config"
	"github.com/kilianp07/thrustmapper/core/model"
	"github.com/kilianp07/thrustmapper/infra/mqtt"
)

func newSendCmd() *cobra.Command {
	var force, torque []float64
	var frame string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish a wrench request to the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendWrench(cmd.OutOrStdout(), force, torque, frame)
		},
	}
	cmd.Flags().Float64SliceVar(&force, "force", []float64{0, 0, 0}, "force x,y,z in N")
	cmd.Flags().Float64SliceVar(&torque, "torque", []float64{0, 0, 0}, "torque x,y,z in N·m")
	cmd.Flags().StringVar(&frame, "frame", "base_link", "frame of the wrench")
	return cmd
}

func newDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop [thruster...]",
		Short: "Request a new dropped thruster set; no names restores every thruster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dropThrusters(cmd.OutOrStdout(), args)
		},
	}
}

// cliClient connects with a client id distinct from the service's.
func cliClient(suffix string) (*mqtt.PahoClient, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	mcfg := cfg.MQTT
	mcfg.SetDefaults()
	mcfg.ClientID = fmt.Sprintf("%s-%s-%d", mcfg.ClientID, suffix, time.Now().UnixNano())
	return mqtt.NewPahoClient(mcfg)
}

func sendWrench(out io.Writer, forceArg, torqueArg []float64, frame string) error {
	force, err := vec3("force", forceArg)
	if err != nil {
		return err
	}
	torque, err := vec3("torque", torqueArg)
	if err != nil {
		return err
	}
	cli, err := cliClient("send")
	if err != nil {
		return err
	}
	defer cli.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.PublishWrench(ctx, model.Wrench{Force: force, Torque: torque}, frame); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, "wrench sent")
	return err
}

func dropThrusters(out io.Writer, names []string) error {
	cli, err := cliClient("drop")
	if err != nil {
		return err
	}
	defer cli.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := cli.RequestLayout(ctx, names)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "layout request %s sent\n", id)
	return err
}
