//go:build ignore

package main

import (
	"compress/gzip"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"atelier-checkout/internal/shipping"
)

// Writes the built-in shipping rates to a table file that can be edited and
// loaded through SHIPPING_TABLE_PATH or uploaded under SHIPPING_S3_PREFIX.
// A ".gz" output is gzip-compressed.
func main() {
	out := flag.String("out", "data/shipping/rates.json.gz", "output file")
	flag.Parse()

	table := shipping.DefaultTable()
	if err := table.Validate(); err != nil {
		log.Fatalf("Built-in table is invalid: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	if err := writeTable(*out, table); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}

	fmt.Printf("Created %s with %d methods and %d zones\n", *out, len(table.Methods), len(table.Zones))
	for _, zone := range table.Zones {
		fmt.Printf("  - %-6s %s (%d countries)\n", zone.Code, zone.Name, len(zone.Countries))
	}
}

func writeTable(path string, table *shipping.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	var encoder *json.Encoder
	if strings.HasSuffix(path, ".gz") {
		gzipWriter := gzip.NewWriter(file)
		defer gzipWriter.Close()
		encoder = json.NewEncoder(gzipWriter)
	} else {
		encoder = json.NewEncoder(file)
	}
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(table); err != nil {
		return fmt.Errorf("failed to encode table: %w", err)
	}
	return nil
}
