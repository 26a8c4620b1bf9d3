package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docauto/internal/blank"
	"docauto/internal/logger"
	"docauto/internal/pdfdoc"
	"docauto/internal/render"
)

var blankCmd = &cobra.Command{
	Use:   "blank [pdf-file]",
	Short: "List blank pages and the page a signature would go on",
	Long: `Render every page of a scanned PDF and report the fraction of near-white
pixels. A page is blank when that fraction exceeds the threshold
(BLANK_THRESHOLD, default 0.99). The command also prints the insertion page
the sign command would choose.

With --text, pages are instead listed when their content carries no text
operators at all, which is how born-digital empty pages look. The number of
images and forms drawn on each page is printed too; a signed scan shows one
extra object per stamp.`,
	Args: cobra.ExactArgs(1),
	RunE: runBlank,
}

func init() {
	rootCmd.AddCommand(blankCmd)

	blankCmd.Flags().Float64("threshold", 0, "White fraction above which a page is blank (default: BLANK_THRESHOLD)")
	blankCmd.Flags().Bool("text", false, "List pages without text operators instead of rendering")
	blankCmd.Flags().Bool("json", false, "Output as JSON")
}

func runBlank(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("blank")

	threshold, _ := cmd.Flags().GetFloat64("threshold")
	textMode, _ := cmd.Flags().GetBool("text")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if !cmd.Flags().Changed("threshold") {
		threshold = appConfig.BlankThreshold
	}

	path := args[0]

	if textMode {
		pages, err := pdfdoc.TextlessPages(path)
		if err != nil {
			return err
		}
		counts, err := pdfdoc.PageObjectCounts(path)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string][]int{"textless_pages": pages, "drawn_objects": counts})
		}
		fmt.Printf("Pages without text: %v\n", pages)
		for i, n := range counts {
			fmt.Printf("page %d: %d drawn objects\n", i+1, n)
		}
		return nil
	}

	doc, err := pdfdoc.Open(path, log)
	if err != nil {
		return err
	}
	defer doc.Close()

	ctx, cancel := createContextWithTimeout(120, log)
	defer cancel()

	renderer := render.NewScanRenderer(logger.WithComponent("render"))
	verdict, err := blank.NewClassifier(renderer, log, blank.WithThreshold(threshold)).Classify(ctx, doc)
	if err != nil {
		return err
	}

	selector := blank.NewSelector(logger.WithComponent("selector"))
	target, selErr := selector.Select(blank.Layout(appConfig.DocumentLayout), verdict, doc.PageCount(), nil)

	if jsonOutput {
		out := map[string]interface{}{
			"pages":   verdict.Pages,
			"blank":   verdict.Blank,
			"verdict": verdict.Kind().String(),
		}
		if selErr != nil {
			out["error"] = selErr.Error()
		} else {
			out["target_pages"] = target
		}
		return printJSON(out)
	}

	for _, p := range verdict.Pages {
		mark := ""
		if p.Blank {
			mark = "  blank"
		}
		fmt.Printf("page %d: %.4f white%s\n", p.PageNumber, p.WhiteFraction, mark)
	}
	if selErr != nil {
		fmt.Printf("insertion page: none (%v)\n", selErr)
		return nil
	}
	fmt.Printf("insertion page: %v\n", target)
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}
