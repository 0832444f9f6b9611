package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"vidspeed/internal/batch"
	"vidspeed/internal/config"
	"vidspeed/internal/filtergraph"
	"vidspeed/internal/inputs"
)

type plannedJob struct {
	Input    string   `json:"input"`
	Output   string   `json:"output"`
	Command  []string `json:"command"`
	Warnings []string `json:"warnings,omitempty"`
}

type planResult struct {
	Speed    float64           `json:"speed"`
	Stages   []string          `json:"audio_filters"`
	Jobs     []plannedJob      `json:"jobs"`
	Rejected []inputs.Rejected `json:"rejected,omitempty"`
}

func runPlan(args []string) error {
	cfg := config.Load("")

	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	jf := bindJobFlags(fs, cfg)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := jf.resolve(cfg)
	if err != nil {
		return err
	}
	collected := inputs.Collect(fs.Args())
	if err := requireFiles(collected); err != nil {
		return err
	}

	builder := filtergraph.New()
	overlay := jf.overlaySpec(cfg)
	res := planResult{Speed: cfg.Speed, Rejected: collected.Rejected}
	for _, in := range collected.Files {
		out := batch.OutputPath(cfg.OutputDir, in, cfg.Speed)
		plan := builder.Build(cfg.Speed, overlay, filepath.Base(in))
		res.Stages = plan.AudioFilters
		res.Jobs = append(res.Jobs, plannedJob{
			Input:    in,
			Output:   out,
			Command:  append([]string{cfg.FFmpegPath}, plan.Args(in, out)...),
			Warnings: plan.Warnings,
		})
	}

	if *jsonOut {
		return printJSON(res)
	}
	for _, r := range collected.Rejected {
		fmt.Fprintf(os.Stderr, "skipping %s: %s\n", r.Path, r.Reason)
	}
	for _, j := range res.Jobs {
		for _, w := range j.Warnings {
			fmt.Fprintln(os.Stderr, w)
		}
		fmt.Println(filtergraph.CommandLine(j.Command[0], j.Command[1:]))
	}
	return nil
}
