package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shapestone/jsonsax/pkg/jsonsax"
)

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func getMemStats() runtime.MemStats {
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// testWholeFile loads the file into memory and feeds it to Parse in
// one call, the way a caller without a streaming source would.
func testWholeFile(filename string) error {
	fmt.Println("\n=== Testing Parse() on a fully buffered file ===")

	baseline := getMemStats()
	fmt.Printf("Baseline memory: %s\n", formatBytes(baseline.Alloc))

	fmt.Println("Reading file into memory...")
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	afterRead := getMemStats()
	fmt.Printf("After reading file: %s (delta: +%s)\n",
		formatBytes(afterRead.Alloc), formatBytes(afterRead.Alloc-baseline.Alloc))

	fmt.Println("Parsing JSON...")
	start := time.Now()
	p := jsonsax.NewParser()
	err = p.Parse(data, true)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	afterParse := getMemStats()
	fmt.Printf("After parsing: %s (delta: +%s)\n",
		formatBytes(afterParse.Alloc), formatBytes(afterParse.Alloc-baseline.Alloc))
	fmt.Printf("Parse time: %v\n", elapsed)
	return nil
}

// testStreaming drives ParseReader over the open file directly, so
// the resident set stays bounded by the lexer/buffer working set
// instead of the document size — the whole point of a push-mode
// parser in a memory-constrained environment.
func testStreaming(filename string) error {
	fmt.Println("\n=== Testing ParseReader() with bounded, constant memory ===")

	baseline := getMemStats()
	fmt.Printf("Baseline memory: %s\n", formatBytes(baseline.Alloc))

	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fmt.Println("Parsing JSON with streaming...")
	start := time.Now()
	p := jsonsax.NewParser()
	err = p.ParseReader(context.Background(), file)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	afterParse := getMemStats()
	fmt.Printf("After parsing: %s (delta: +%s)\n",
		formatBytes(afterParse.Alloc), formatBytes(afterParse.Alloc-baseline.Alloc))
	fmt.Printf("Parse time: %v\n", elapsed)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run test_memory_usage.go <json_file>")
		os.Exit(1)
	}

	filename := os.Args[1]

	stat, err := os.Stat(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing file: %s (%.2f MB)\n", filename, float64(stat.Size())/(1024*1024))

	fmt.Println("\n============================================================")
	if err := testWholeFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Parse() error: %v\n", err)
	}

	time.Sleep(500 * time.Millisecond)
	runtime.GC()
	runtime.GC()

	fmt.Println("\n============================================================")
	if err := testStreaming(filename); err != nil {
		fmt.Fprintf(os.Stderr, "ParseReader() error: %v\n", err)
	}

	fmt.Println("\n============================================================")
	fmt.Println("\nMemory test complete.")
}
