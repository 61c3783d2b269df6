package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/denius89/news-ai-bot-sub002/pkg/config"
)

// Opts with all CLI options
type Opts struct {
	Output string `short:"o" long:"output" default:"schema.json" description:"schema file to write"`
	Check  bool   `long:"check" description:"compare the generated schema with the output file instead of writing it"`
}

func main() {
	var opts Opts
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts Opts) error {
	data, err := generate()
	if err != nil {
		return err
	}

	if opts.Check {
		existing, err := os.ReadFile(opts.Output)
		if err != nil {
			return fmt.Errorf("read %s: %w", opts.Output, err)
		}
		if !sameJSON(existing, data) {
			return fmt.Errorf("%s is out of date, regenerate it", opts.Output)
		}
		fmt.Printf("%s is up to date\n", opts.Output)
		return nil
	}

	if err := os.WriteFile(opts.Output, data, 0o600); err != nil { //nolint:gosec // schema file is not sensitive
		return fmt.Errorf("write schema file: %w", err)
	}
	fmt.Printf("Schema generated successfully at %s\n", opts.Output)
	return nil
}

func generate() ([]byte, error) {
	data, err := json.MarshalIndent(config.GenerateSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}

// sameJSON compares two documents ignoring formatting
func sameJSON(a, b []byte) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
