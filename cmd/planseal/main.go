// cmd/planseal/main.go
//
// Entry point for the planseal CLI.
//
// Subcommands:
//
//	run <plan.json>     verify the plan's attestation and execute it
//	attest <plan.json>  stamp attestation.plan_hash into the plan file
//	status              open the workspace status view
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/planseal/planseal/internal/artifact"
	"github.com/planseal/planseal/internal/attest"
	"github.com/planseal/planseal/internal/audit"
	"github.com/planseal/planseal/internal/config"
	"github.com/planseal/planseal/internal/generator"
	"github.com/planseal/planseal/internal/pipeline"
	"github.com/planseal/planseal/internal/plan"
	"github.com/planseal/planseal/internal/tui"
	"github.com/planseal/planseal/plugins"
)

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	switch args[0] {
	case "run":
		if len(args) != 2 {
			die("usage: planseal run <plan.json>")
		}
		runPlan(args[1])
	case "attest":
		if len(args) != 2 {
			die("usage: planseal attest <plan.json>")
		}
		attestPlan(args[1])
	case "status":
		runStatus()
	default:
		die("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: planseal <run|attest|status> [args]")
}

func runPlan(path string) {
	project := projectDir()
	if err := config.InitWorkspace(project); err != nil {
		die("init workspace: %v", err)
	}
	cfg, err := config.NewConfig(project)
	if err != nil {
		die("load config: %v", err)
	}
	log, err := audit.NewFileLog(cfg.AuditLogPath())
	if err != nil {
		die("open audit log: %v", err)
	}
	reg := generator.NewRegistry()
	generator.RegisterBuiltins(reg)
	if err := plugins.RegisterGeneratorPlugins(reg, cfg); err != nil {
		die("load generator plugins: %v", err)
	}
	runner, err := pipeline.NewRunner(artifact.NewStore(cfg.ArtifactsDir()), reg, log)
	if err != nil {
		die("build runner: %v", err)
	}
	run, err := runner.RunFile(path)
	if err != nil {
		die("run plan: %v", err)
	}
	fmt.Printf("Plan %s completed: %d artifact(s) under %s\n", run.PlanID, len(run.Outputs), filepath.Dir(run.SummaryPath))
	if !run.Integrity.OK {
		fmt.Printf("Warning: integrity check reported missing outputs: %v\n", run.Integrity.Missing)
	}
	fmt.Printf("Summary: %s\n", run.SummaryPath)
}

func attestPlan(path string) {
	p, err := plan.Load(path)
	if err != nil {
		die("load plan: %v", err)
	}
	if err := p.Validate(); err != nil {
		die("validate plan: %v", err)
	}
	digest, err := attest.Stamp(p)
	if err != nil {
		die("stamp plan: %v", err)
	}
	encoded, err := p.Encode()
	if err != nil {
		die("encode plan: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		die("write plan: %v", err)
	}
	fmt.Printf("Stamped %s with %s (%s)\n", path, digest, attest.ContractV1)
}

func runStatus() {
	project := projectDir()
	if err := config.InitWorkspace(project); err != nil {
		die("init workspace: %v", err)
	}
	app, err := tui.NewApp(project)
	if err != nil {
		die("open status view: %v", err)
	}
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		die("run status view: %v", err)
	}
}

func projectDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		die("determine working directory: %v", err)
	}
	return cwd
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
