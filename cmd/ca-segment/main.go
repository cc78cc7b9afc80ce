package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/ironsheep/ca-segment-mcp/internal/imaging"
	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/segment"
	"github.com/ironsheep/ca-segment-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("ca-segment - cellular-automaton image segmentation")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ca-segment                        Run the MCP server on stdin/stdout")
	fmt.Println("  ca-segment segment <in> [out]     Segment <in>, print regions as JSON,")
	fmt.Println("                                    and write an outline overlay to [out]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  CA_SEGMENT_LOG_LEVEL=debug    Enable debug logging")
	fmt.Println("  CA_SEGMENT_WORKERS=N          Rule worker count (0 runs inline)")
	fmt.Println()
	fmt.Println("In server mode it communicates via MCP protocol over stdin/stdout.")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("ca-segment %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if os.Getenv("CA_SEGMENT_LOG_LEVEL") == "debug" {
		log.Printf("ca-segment v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		segment.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	opts, err := optionsFromEnv()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "segment" {
		if len(os.Args) < 3 || len(os.Args) > 4 {
			usage()
			os.Exit(2)
		}
		out := ""
		if len(os.Args) == 4 {
			out = os.Args[3]
		}
		if err := segmentFile(ctx, opts, os.Args[2], out); err != nil {
			log.Fatalf("Segmentation failed: %v", err)
		}
		return
	}

	srv := server.NewWithOptions(opts)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Server error: %v", err)
	}
}

func optionsFromEnv() (segment.Options, error) {
	opts := segment.DefaultOptions()
	if v := os.Getenv("CA_SEGMENT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("CA_SEGMENT_WORKERS: %w", err)
		}
		opts.WorkerCount = n
	}
	return opts, opts.Validate()
}

func segmentFile(ctx context.Context, opts segment.Options, in, out string) error {
	img, err := imgio.Open(in)
	if err != nil {
		return err
	}
	p, err := segment.New(opts)
	if err != nil {
		return err
	}
	norm := imaging.Normalize(img, 0)
	res, err := p.Run(ctx, lattice.NewImageRaster(norm.Image))
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		log.Printf("Some cells failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Regions); err != nil {
		return err
	}

	if out == "" {
		return nil
	}
	canvas, err := imaging.RenderOverlay(norm.Image, res, imaging.OverlayOptions{
		LineColor: "#FF0000",
		Labels:    true,
	})
	if err != nil {
		return err
	}
	return imgio.Save(out, canvas, imgio.PNGEncoder())
}
