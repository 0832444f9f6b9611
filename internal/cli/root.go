package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "run":
		return runBatch(args[1:])
	case "plan":
		return runPlan(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "history":
		return runHistory(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("vidspeed: batch video speed changer driven by ffmpeg")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  vidspeed doctor")
	fmt.Println("  vidspeed run --speed 2 --output-dir out/ clip1.mp4 clip2.mkv")
	fmt.Println("  vidspeed run --speed 0.5 --overlay videos/")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       process files (or folders of videos) one at a time")
	fmt.Println("  plan      print the ffmpeg command for each file without running it")
	fmt.Println("  doctor    check ffmpeg, directories and the overlay font")
	fmt.Println("  history   list recent batches")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Speed range is 0.01..100; 2 plays twice as fast, 0.5 half as fast")
	fmt.Println("  - Outputs are named <name>_x<speed>.<ext>; existing files are overwritten")
	fmt.Println("  - Defaults come from VIDSPEED_* environment variables or ./.env")
	fmt.Println("  - Use --json on commands for machine-readable output")
}
