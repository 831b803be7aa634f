package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/MeKo-Tech/inpaint/internal/models"
	"github.com/MeKo-Tech/inpaint/internal/onnx"
	"github.com/spf13/cobra"
)

// modelsCmd lists the known models and whether they are installed.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List inpainting models and check the ONNX Runtime installation",
	Long: `List the known inpainting models, where they are expected under the
models directory and whether they are present.

With --check-runtime the ONNX Runtime shared library is located and
initialized as well.

Examples:
  inpaint models
  inpaint models --json
  inpaint models --models-dir /opt/models --check-runtime`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		statuses := models.ListModelStatus(models.GetModelsDir(cfg.ModelsDir))
		out := cmd.OutOrStdout()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(statuses); err != nil {
				return err
			}
		} else {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tTYPE\tINPUT\tPRESENT\tPATH")
			for _, st := range statuses {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", st.Name, st.Type, st.InputSize, st.Present, st.Path)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}

		if check, _ := cmd.Flags().GetBool("check-runtime"); check {
			lib, err := onnx.ResolveLibraryPath(cfg.GPU.Enabled)
			if err != nil {
				return err
			}
			if err := onnx.InitializeEnvironment(cfg.GPU.Enabled); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "ONNX Runtime: %s\n", lib)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().Bool("json", false, "print the model list as JSON")
	modelsCmd.Flags().Bool("check-runtime", false, "locate and initialize the ONNX Runtime library")
}
