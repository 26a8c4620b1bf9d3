package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docauto/internal/imgop"
	"docauto/internal/logger"
	"docauto/internal/render"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Prepare signature and stamp images",
	Long: `Utilities for preparing stamp assets: turn a white background transparent,
merge a signature with a company stamp, crop a scan, or paint a box over part
of an image.`,
}

var imageTransparentCmd = &cobra.Command{
	Use:     "transparent [image]",
	Short:   "Turn near-white pixels fully transparent",
	Example: `  docauto image transparent scan_sign.png -o assets_stamps/1_acme_NoBG.png`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		threshold, _ := cmd.Flags().GetUint8("threshold")

		path, err := imgop.TransparentFile(args[0], out, threshold)
		if err != nil {
			return err
		}
		logImageWritten("transparent", path)
		return nil
	},
}

var imageMergeCmd = &cobra.Command{
	Use:   "merge [transparent-image] [background-image]",
	Short: "Merge a signature with a stamp image",
	Long: `Whiten the background image to transparency, resize the smaller of the two
images to the size of the larger one and composite them. By default the
resized image is drawn on top; --flip draws the larger image on top instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		flip, _ := cmd.Flags().GetBool("flip")
		threshold, _ := cmd.Flags().GetUint8("threshold")
		if out == "" {
			out = imgop.SuffixPath(args[0], "_merged")
		}

		opts := imgop.MergeOptions{OverlayFlip: flip, WhiteThreshold: threshold}
		if err := imgop.MergeFiles(args[0], args[1], out, opts); err != nil {
			return err
		}
		logImageWritten("merge", out)
		return nil
	},
}

var imageCropCmd = &cobra.Command{
	Use:     "crop [image]",
	Short:   "Cut margins off an image",
	Example: `  docauto image crop scan.png --left 980 --right 860 --top 1720 --bottom 1450`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		path, err := imgop.CropFile(args[0], out, marginFlags(cmd))
		if err != nil {
			return err
		}
		logImageWritten("crop", path)
		return nil
	},
}

var imageOverlayCmd = &cobra.Command{
	Use:   "overlay [image]",
	Short: "Paint a white box inside the given margins",
	Long: `Paint the box left inside the margins white. With --debug the box is only
outlined in red so its position can be checked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		debug, _ := cmd.Flags().GetBool("debug")

		path, err := imgop.OverlayRectangleFile(args[0], out, marginFlags(cmd), debug)
		if err != nil {
			return err
		}
		logImageWritten("overlay", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.AddCommand(imageTransparentCmd, imageMergeCmd, imageCropCmd, imageOverlayCmd)

	for _, c := range []*cobra.Command{imageTransparentCmd, imageMergeCmd, imageCropCmd, imageOverlayCmd} {
		c.Flags().StringP("output", "o", "", "Output PNG path (default: next to the input)")
	}
	for _, c := range []*cobra.Command{imageTransparentCmd, imageMergeCmd} {
		c.Flags().Uint8("threshold", imgop.DefaultWhiteThreshold, "Channel level at or above which a pixel is white")
	}
	imageMergeCmd.Flags().Bool("flip", false, "Draw the larger image on top")
	imageOverlayCmd.Flags().Bool("debug", false, "Outline the box in red instead of filling it")

	for _, c := range []*cobra.Command{imageCropCmd, imageOverlayCmd} {
		c.Flags().Int("left", 0, "Left margin in pixels")
		c.Flags().Int("top", 0, "Top margin in pixels")
		c.Flags().Int("right", 0, "Right margin in pixels")
		c.Flags().Int("bottom", 0, "Bottom margin in pixels")
	}
}

func marginFlags(cmd *cobra.Command) render.Margins {
	var m render.Margins
	m.Left, _ = cmd.Flags().GetInt("left")
	m.Top, _ = cmd.Flags().GetInt("top")
	m.Right, _ = cmd.Flags().GetInt("right")
	m.Bottom, _ = cmd.Flags().GetInt("bottom")
	return m
}

func logImageWritten(op, path string) {
	log := logger.WithComponent("image")
	log.Info().Str("op", op).Str("file", path).Msg("Image written")
	fmt.Println(path)
}
