// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

// Command gen-schema writes the JSON Schema that billetterie.yaml files are
// validated against.
//
//	gen-schema [--out schemas/config.schema.json] [--check]
//
// With --check nothing is written; the command exits 1 when the file on
// disk differs from the schema the current Config struct produces.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/billetterie/billetterie/internal/config"
)

const defaultOut = "schemas/config.schema.json"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("gen-schema", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	out := flags.StringP("out", "o", defaultOut, "schema file to write")
	check := flags.Bool("check", false, "fail if the schema file is out of date instead of writing it")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	schema, err := config.GenerateSchema()
	if err != nil {
		fmt.Fprintf(stderr, "gen-schema: %v\n", err)
		return 1
	}
	schema = append(schema, '\n')

	if *check {
		if err := compare(*out, schema); err != nil {
			fmt.Fprintf(stderr, "gen-schema: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s is up to date\n", *out)
		return 0
	}

	if err := write(*out, schema); err != nil {
		fmt.Fprintf(stderr, "gen-schema: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", *out, len(schema))
	return 0
}

func write(path string, schema []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := os.WriteFile(path, schema, 0o600); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func compare(path string, schema []byte) error {
	current, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if errors.Is(err, fs.ErrNotExist) {
		return oops.Code("SCHEMA_STALE").With("path", path).Errorf("%s does not exist; run gen-schema", path)
	}
	if err != nil {
		return oops.Code("SCHEMA_READ_FAILED").With("path", path).Wrap(err)
	}
	if !bytes.Equal(current, schema) {
		return oops.Code("SCHEMA_STALE").With("path", path).Errorf("%s is out of date; run gen-schema", path)
	}
	return nil
}
