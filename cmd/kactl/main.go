// Command kactl is a dev CLI for keepalive maintenance and debugging tasks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/browser"

	kabrowser "github.com/ibeckermayer/keepalive/internal/browser"
	"github.com/ibeckermayer/keepalive/internal/config"
	"github.com/ibeckermayer/keepalive/internal/logging"
	"github.com/ibeckermayer/keepalive/internal/markers"
	"github.com/ibeckermayer/keepalive/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "inspect":
		url := ""
		if len(os.Args) > 2 {
			url = os.Args[2]
		}
		runInspect(url)
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: kactl open <config|history|snapshots|latest>")
			os.Exit(1)
		}
		runOpen(os.Args[2])
	case "init":
		runInit()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: kactl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  inspect [url]     Open the target in a visible browser and list its frames")
	fmt.Println("  open config       Open config file in default editor")
	fmt.Println("  open history      Open the run history database")
	fmt.Println("  open snapshots    Open the failure snapshot directory")
	fmt.Println("  open latest       Open the most recent failure snapshot")
	fmt.Println("  init              Write the default config file")
}

func loadConfig() *config.Config {
	cfg, err := config.LoadOrDefault("")
	if err != nil {
		log.Printf("Using defaults: %v", err)
		cfg = config.Default()
	}
	return cfg
}

// runInspect shows what the prober sees: every frame's text and buttons,
// with marker hits flagged.
func runInspect(url string) {
	cfg := loadConfig()
	if url == "" {
		url = cfg.Target.URL
	}

	logger := logging.New(true)
	defer logger.Sync()

	// non-headless so you can see it
	sess, err := kabrowser.Launch(context.Background(), kabrowser.Config{
		Headless:  false,
		NoSandbox: cfg.Browser.NoSandbox,
		UserAgent: cfg.Browser.UserAgent,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to launch browser: %v", err)
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Target.Timeout.Duration)
	defer cancel()

	log.Printf("Opening %s...", url)
	if err := sess.Navigate(ctx, url); err != nil {
		log.Printf("Failed to navigate: %v", err)
	}

	frames, err := sess.Frames(ctx)
	if err != nil {
		log.Printf("Failed to read frames: %v", err)
	}
	for _, f := range frames {
		fmt.Printf("frame %s %s\n", f.ID, f.URL)
		if m, ok := markers.Find(f.Text, cfg.Markers.Alive); ok {
			fmt.Printf("  alive marker: %q\n", m)
		}
		if m, ok := markers.Find(f.Text, cfg.Markers.Fallback); ok {
			fmt.Printf("  fallback marker: %q\n", m)
		}
		for i, b := range f.Buttons {
			flag := ""
			if markers.Contains(b, cfg.Markers.Wake) {
				flag = "  <- wake"
			}
			fmt.Printf("  button[%d] %q%s\n", i, b, flag)
		}
		fmt.Printf("  text: %s\n", markers.Truncate(f.Text, 200))
	}

	fmt.Println("Press Enter to end program...")
	fmt.Scanln()

	log.Println("Done.")
}

func runOpen(target string) {
	var path string
	var err error

	cfg := loadConfig()
	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "history":
		path, err = cfg.HistoryPath()
	case "snapshots":
		path, err = cfg.SnapshotDir()
	case "latest":
		var dir string
		if dir, err = cfg.SnapshotDir(); err == nil {
			path, err = store.LatestSnapshot(dir)
		}
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}

func runInit() {
	path, err := config.ConfigPath()
	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		log.Fatalf("Config already exists at %s", path)
	}
	if err := config.Default().Save(); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	fmt.Println(path)
}
