// Command wgslc compiles WGSL shaders to SPIR-V.
//
// Usage:
//
//	wgslc compile shader.wgsl -o shader.spv
//	wgslc check shader.wgsl
//	wgslc batch shaders.toml --jobs 4
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gogpu/wgslc"
	"github.com/gogpu/wgslc/ir"
	"github.com/gogpu/wgslc/spirv"
	"github.com/gogpu/wgslc/wgsl"
)

const version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:           "wgslc",
	Short:         "WGSL to SPIR-V shader compiler",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var compileCmd = &cobra.Command{
	Use:   "compile <input.wgsl>",
	Short: "Compile a shader to a SPIR-V binary",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

var checkCmd = &cobra.Command{
	Use:   "check <input.wgsl>",
	Short: "Parse and validate a shader without emitting output",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func main() {
	compileCmd.Flags().StringP("output", "o", "", "output file (default: input with .spv extension)")
	compileCmd.Flags().String("spirv-version", "1.3", "SPIR-V version to declare in the header")
	compileCmd.Flags().Bool("no-debug-names", false, "omit OpName debug instructions")
	compileCmd.Flags().Bool("no-validate", false, "skip IR validation")

	batchCmd.Flags().Int("jobs", 0, "maximum concurrent translations (0 = unbounded)")
	batchCmd.Flags().String("spirv-version", "1.3", "SPIR-V version to declare in the header")
	batchCmd.Flags().Bool("no-debug-names", false, "omit OpName debug instructions")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(batchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	input := args[0]
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = strings.TrimSuffix(input, ".wgsl") + ".spv"
	}
	opts, err := optionsFromFlags(cmd)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	data, err := wgslc.Translate(string(source), opts)
	if err != nil {
		return diagnose(input, string(source), err)
	}
	return os.WriteFile(output, data, 0o644)
}

func runCheck(cmd *cobra.Command, args []string) error {
	input := args[0]
	source, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if err := wgslc.Check(string(source)); err != nil {
		return diagnose(input, string(source), err)
	}
	fmt.Printf("%s %s\n", color.GreenString("ok:"), input)
	return nil
}

// optionsFromFlags builds translation options shared by compile and
// batch.
func optionsFromFlags(cmd *cobra.Command) (wgslc.Options, error) {
	opts := wgslc.DefaultOptions()
	if v, err := cmd.Flags().GetString("spirv-version"); err == nil && v != "" {
		ver, err := parseSPIRVVersion(v)
		if err != nil {
			return opts, err
		}
		opts.SPIRVVersion = ver
	}
	if noNames, _ := cmd.Flags().GetBool("no-debug-names"); noNames {
		opts.DebugNames = false
	}
	if noValidate, _ := cmd.Flags().GetBool("no-validate"); noValidate {
		opts.SkipValidation = true
	}
	return opts, nil
}

func parseSPIRVVersion(s string) (spirv.Version, error) {
	majorStr, minorStr, ok := strings.Cut(s, ".")
	if !ok {
		return spirv.Version{}, fmt.Errorf("invalid SPIR-V version %q (want <major>.<minor>)", s)
	}
	majorInt, err := strconv.Atoi(majorStr)
	if err != nil {
		return spirv.Version{}, fmt.Errorf("invalid SPIR-V version %q: %w", s, err)
	}
	minorInt, err := strconv.Atoi(minorStr)
	if err != nil {
		return spirv.Version{}, fmt.Errorf("invalid SPIR-V version %q: %w", s, err)
	}
	major, err := safecast.Conv[uint8](majorInt)
	if err != nil {
		return spirv.Version{}, fmt.Errorf("invalid SPIR-V version %q: %w", s, err)
	}
	minor, err := safecast.Conv[uint8](minorInt)
	if err != nil {
		return spirv.Version{}, fmt.Errorf("invalid SPIR-V version %q: %w", s, err)
	}
	return spirv.Version{Major: major, Minor: minor}, nil
}

// diagnose prints a color-coded diagnostic for a translation failure
// and returns a short error for the exit path.
func diagnose(path, source string, err error) error {
	var srcErr wgsl.SourceError
	var valErr *ir.ValidationError
	switch {
	case errors.As(err, &srcErr):
		pos := srcErr.SourcePos()
		fmt.Fprintf(os.Stderr, "%s %s:%s\n", color.RedString("error:"), path, pos)
		fmt.Fprint(os.Stderr, wgsl.RenderContext(source, pos, srcErr.SourceMessage()))
	case errors.As(err, &valErr):
		fmt.Fprintf(os.Stderr, "%s %s: %s (%s)\n",
			color.RedString("error:"), path, valErr.Message, color.YellowString("%s", valErr.Cause))
	default:
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", color.RedString("error:"), path, err)
	}
	return fmt.Errorf("%s: translation failed", path)
}
