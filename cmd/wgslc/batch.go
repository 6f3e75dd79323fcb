package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gogpu/wgslc"
)

// manifest is the TOML batch description: a list of shader jobs and a
// directory the binaries land in. Relative paths resolve against the
// manifest's own directory.
type manifest struct {
	OutDir  string      `toml:"out_dir"`
	Shaders []shaderJob `toml:"shader"`
}

type shaderJob struct {
	Name   string `toml:"name"`
	Input  string `toml:"input"`
	Output string `toml:"output"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.toml>",
	Short: "Compile every shader listed in a TOML manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifestPath := args[0]
	jobs, _ := cmd.Flags().GetInt("jobs")
	opts, err := optionsFromFlags(cmd)
	if err != nil {
		return err
	}

	var m manifest
	if _, err := toml.DecodeFile(manifestPath, &m); err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	if len(m.Shaders) == 0 {
		return fmt.Errorf("manifest %s lists no shaders", manifestPath)
	}
	base := filepath.Dir(manifestPath)
	outDir := m.OutDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(base, outDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	inputs := make([]wgslc.BatchInput, len(m.Shaders))
	sources := make([]string, len(m.Shaders))
	for i, job := range m.Shaders {
		path := job.Input
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		name := job.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(job.Input), ".wgsl")
		}
		inputs[i] = wgslc.BatchInput{Name: name, Source: string(src)}
		sources[i] = string(src)
	}

	results, err := wgslc.TranslateBatch(cmd.Context(), inputs, opts, jobs)
	if err != nil {
		return err
	}

	failed := 0
	for i, res := range results {
		if res.Err != nil {
			failed++
			_ = diagnose(m.Shaders[i].Input, sources[i], res.Err)
			continue
		}
		out := m.Shaders[i].Output
		if out == "" {
			out = res.Name + ".spv"
		}
		if err := os.WriteFile(filepath.Join(outDir, out), res.Data, 0o644); err != nil {
			return err
		}
		fmt.Printf("%s %s -> %s\n", color.GreenString("ok:"), m.Shaders[i].Input, out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d shaders failed", failed, len(results))
	}
	return nil
}
