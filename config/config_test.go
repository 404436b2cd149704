package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultIsZeroValue(t *testing.T) {
	c := Default()
	if c.DefaultFormat != "" || c.LogVerbose || c.LockTimeout != 0 {
		t.Fatalf("Default() = %+v, want zero value", c)
	}
}

func TestReadParsesAllFields(t *testing.T) {
	doc := `
[format]
default = "2a"

[logging]
verbose = true

[lock]
timeout_seconds = 30
`
	c, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if c.DefaultFormat != "2a" {
		t.Fatalf("DefaultFormat = %q, want 2a", c.DefaultFormat)
	}
	if !c.LogVerbose {
		t.Fatal("LogVerbose = false, want true")
	}
	if c.LockTimeout != 30*time.Second {
		t.Fatalf("LockTimeout = %v, want 30s", c.LockTimeout)
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	want := Config{DefaultFormat: "2a", LogVerbose: true, LockTimeout: 5 * time.Second}
	data, err := Write(want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Read(strings.NewReader(string(data)))
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}
