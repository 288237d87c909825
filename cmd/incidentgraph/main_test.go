// Package main provides tests for the incidentgraph CLI.
package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leapstack-labs/incidentgraph/internal/cli"
)

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}

	if !strings.Contains(buf.String(), "incidentgraph v") {
		t.Errorf("version output should contain 'incidentgraph v', got: %s", buf.String())
	}
}

func TestHelpListsStages(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help error = %v", err)
	}

	for _, name := range []string{"ingest", "dedupe", "render", "run", "verify", "query"} {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("help should list %q, got: %s", name, buf.String())
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"frobnicate"})

	if err := cmd.Execute(); err == nil {
		t.Error("expected error for unknown command")
	}
}
