package cmd

import (
	"fmt"

	"github.com/smazurov/zoomrelay/internal/ffmpeg"
	"github.com/smazurov/zoomrelay/internal/frame"
	"github.com/smazurov/zoomrelay/internal/scaler"
	"github.com/spf13/cobra"
)

// CreateScalerCommandCmd creates the scaler-command command, which prints
// the engine command line the relay would spawn for a viewport geometry.
func CreateScalerCommandCmd() *cobra.Command {
	var (
		output     string
		ffmpegPath string
		filter     string
		template   string
	)

	cmd := &cobra.Command{
		Use:   "scaler-command <WxH>",
		Short: "Print the rescale command for a viewport size",
		Long: `Prints the command line spawned to rescale a cropped viewport of the given ` +
			`size to the output resolution. Useful for checking a custom --template.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := frame.ParseSize(args[0])
			if err != nil {
				return fmt.Errorf("invalid viewport size %q: %w", args[0], err)
			}
			out, err := frame.ParseSize(output)
			if err != nil {
				return fmt.Errorf("invalid output size %q: %w", output, err)
			}

			spawner := &scaler.ProcessSpawner{Binary: ffmpegPath, Filter: filter, Template: template}
			fmt.Fprintln(cmd.OutOrStdout(), spawner.Command(in, out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "1280x720", "Output frame size")
	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg-path", "ffmpeg", "FFmpeg binary")
	cmd.Flags().StringVar(&filter, "filter", ffmpeg.DefaultFilter, "FFmpeg scale filter")
	cmd.Flags().StringVar(&template, "template", "", "Custom command template ({in_w} {in_h} {in_size} {out_w} {out_h} {out_size})")
	return cmd
}
