package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/visiona/camlink/internal/command"
	"github.com/visiona/camlink/internal/config"
)

func newSetCommand() *cobra.Command {
	var (
		width   int
		height  int
		bitrate float64
		fps     int
	)

	cmd := &cobra.Command{
		Use:           "set",
		Short:         "Apply stream settings on the device (SET)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			payload, err := command.SetPayload(width, height, bitrate, fps)
			if err != nil {
				return err
			}
			return exchange(cfg, payload)
		},
	}

	cmd.Flags().IntVar(&width, "width", 1280, "stream width in pixels")
	cmd.Flags().IntVar(&height, "height", 720, "stream height in pixels")
	cmd.Flags().Float64Var(&bitrate, "bitrate", 8.0, "stream bitrate in Mbit/s")
	cmd.Flags().IntVar(&fps, "fps", 120, "stream frame rate")

	return cmd
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "get",
		Short:         "Read current stream settings from the device (GET)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return exchange(cfg, command.GetPayload())
		},
	}
}

// exchange runs one request/reply cycle against the configured device and
// prints the raw trimmed reply.
func exchange(cfg *config.Config, payload string) error {
	if cfg.Device.Host == "" {
		return fmt.Errorf("no device host configured (use --host or a config file)")
	}

	req := command.Request{
		Host:    cfg.Device.Host,
		Port:    cfg.Device.Port,
		Payload: payload,
		Timeout: time.Duration(cfg.Device.TimeoutMS) * time.Millisecond,
	}

	fmt.Printf(">>> %s:%d %s\n", req.Host, req.Port, payload)

	out := <-command.NewChannel().Go(req)
	if out.Err != nil {
		return out.Err
	}

	fmt.Printf("<<< %s\n", out.Reply)
	if command.ClassifyReply(out.Reply) == command.ReplyErr {
		return fmt.Errorf("device rejected the request")
	}
	return nil
}
