package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/convkit/internal/envconfig"
	"github.com/born-ml/convkit/internal/version"
)

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI builds the convkit command tree.
func NewCLI() *cobra.Command {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: envconfig.LogLevel()})))
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "convkit",
		Short:         "Convolution layer toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	initCmd := newInitCmd()
	inspectCmd := newInspectCmd()
	convertCmd := newConvertCmd()
	forwardCmd := newForwardCmd()
	kindsCmd := newKindsCmd()
	versionCmd := newVersionCmd()

	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{initCmd, convertCmd} {
		appendEnvDocs(cmd, []envconfig.EnvVar{envVars["CONVKIT_DEBUG"], envVars["CONVKIT_PRECISION"]})
	}
	appendEnvDocs(forwardCmd, []envconfig.EnvVar{envVars["CONVKIT_DEBUG"], envVars["CONVKIT_NUM_THREADS"]})
	appendEnvDocs(inspectCmd, []envconfig.EnvVar{envVars["CONVKIT_DEBUG"]})

	rootCmd.AddCommand(
		initCmd,
		inspectCmd,
		convertCmd,
		forwardCmd,
		kindsCmd,
		versionCmd,
	)

	return rootCmd
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init CONFIG",
		Short: "Create a layer checkpoint from a YAML config",
		Long: `Create a layer checkpoint from a YAML config.

The config names a layer kind and its settings; omitted settings keep
their defaults:

  kind: conv2d
  config:
    channels: [3, 8]
    kernel_size: [3, 3]
    padding: same`,
		Args: cobra.ExactArgs(1),
		RunE: InitHandler,
	}
	cmd.Flags().StringP("output", "o", "", "Checkpoint path (.ckpt or .json, default: CONFIG with a .ckpt extension)")
	cmd.Flags().StringP("precision", "p", envconfig.Precision(), "Tensor precision: full, half, bfloat or double")
	return cmd
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect CHECKPOINT",
		Short: "Show a checkpoint's layer and fields",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}
	cmd.Flags().Bool("skip-checksum", false, "Do not verify the data checksum of .ckpt files")
	return cmd
}

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert SOURCE DEST",
		Short: "Re-encode a checkpoint at another precision or format",
		Long: `Re-encode a checkpoint at another precision or format.

The output format follows the DEST extension: .json for JSON, anything
else for the binary .ckpt format.`,
		Args: cobra.ExactArgs(2),
		RunE: ConvertHandler,
	}
	cmd.Flags().StringP("precision", "p", "", "Tensor precision (default: keep the source precision)")
	cmd.Flags().Bool("skip-checksum", false, "Do not verify the data checksum of the source")
	return cmd
}

func newForwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forward CHECKPOINT",
		Short: "Run a checkpointed layer on a synthetic input",
		Args:  cobra.ExactArgs(1),
		RunE:  ForwardHandler,
	}
	cmd.Flags().IntSlice("shape", nil, "Input shape, e.g. 1,3,28,28 (required)")
	cmd.Flags().String("fill", "arange", "Input values: arange, ones or zeros")
	cmd.Flags().Float32("step", 0.01, "Increment between arange values")
	_ = cmd.MarkFlagRequired("shape")
	return cmd
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the layer kinds",
		Args:  cobra.NoArgs,
		RunE:  KindsHandler,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run:   versionHandler,
	}
}

func versionHandler(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "convkit version is %s\n", version.Version)
}
