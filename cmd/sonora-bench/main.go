// Command sonora-bench loads an instruction batch from disk, applies it
// to a fresh Runtime, renders a number of blocks, and reports timing
// statistics. It replaces the teacher's examples/layer* demo programs as
// the one hand-runnable entry point into this module.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/tolvanen/sonora/core/node"
	"github.com/tolvanen/sonora/core/value"
	"github.com/tolvanen/sonora/internal/config"
	"github.com/tolvanen/sonora/internal/utils"
	"github.com/tolvanen/sonora/internal/wireutil"
	"github.com/tolvanen/sonora/pkg/runtime"
	"github.com/tolvanen/sonora/providers/observability"
	"github.com/tolvanen/sonora/providers/observability/slogobs"
)

func main() {
	batchPath := flag.String("batch", "testdata/sine_root.json", "path to a JSON instruction batch")
	blocks := flag.Int("blocks", 1000, "number of blocks to render")
	outChannels := flag.Int("channels", 1, "number of host output channels")
	dumpSnapshot := flag.Bool("snapshot", false, "print the graph's property snapshot after applying the batch")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sonora-bench: %v\n", err)
		os.Exit(1)
	}

	observer := slogobs.New(
		slogobs.WithLevel(cfg.LogLevel),
		slogobs.WithOutput(os.Stdout),
		slogobs.WithColors(true),
	)
	ctx := context.Background()

	raw, err := os.ReadFile(*batchPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sonora-bench: reading %s: %v\n", *batchPath, err)
		os.Exit(1)
	}
	batch, err := wireutil.DecodeBatch(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sonora-bench: decoding %s: %v\n", *batchPath, err)
		os.Exit(1)
	}

	rt, err := runtime.NewRuntime(cfg.SampleRate, cfg.BlockSize, runtime.WithObserver(observer))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sonora-bench: %v\n", err)
		os.Exit(1)
	}

	if code := rt.ApplyInstructions(ctx, batch); code != node.Ok {
		observer.Error(ctx, "applyInstructions failed", observability.Int("return_code", int(code)))
		os.Exit(1)
	}

	if *dumpSnapshot {
		fmt.Println(utils.ToString(rt.Snapshot()))
	}

	outputs := make([][]float64, *outChannels)
	for i := range outputs {
		outputs[i] = make([]float64, cfg.BlockSize)
	}

	var total time.Duration
	var worst time.Duration
	for i := 0; i < *blocks; i++ {
		timer := utils.NewTimer()
		rt.Process(nil, outputs, cfg.BlockSize, nil)
		timer.Stop()

		d := timer.GetDuration()
		total += d
		if d > worst {
			worst = d
		}
	}

	rt.ProcessQueuedEvents(func(name string, payload value.Value) {
		slog.Debug("node event", "name", name, "payload", payload.String())
	})

	fmt.Printf("rendered %d blocks of %d samples at %.0f Hz\n", *blocks, cfg.BlockSize, cfg.SampleRate)
	fmt.Printf("total: %s  avg/block: %s  worst/block: %s\n", total, total/time.Duration(*blocks), worst)
	slog.Info("sonora-bench finished", "blocks", *blocks, "block_size", cfg.BlockSize)
}
