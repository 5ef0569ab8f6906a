package tracing

import (
	"context"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	shutdown()
}

func TestExporterOptions(t *testing.T) {
	tests := []struct {
		endpoint string
		want     int
	}{
		{"collector:4318", 1},
		{"https://collector:4318", 1},
		{"http://localhost:4318", 2},
		{"http://localhost:4318/", 2},
		{"http://localhost:4318/custom/traces", 3},
	}
	for _, tt := range tests {
		if got := len(exporterOptions(tt.endpoint)); got != tt.want {
			t.Errorf("exporterOptions(%q) gave %d options, want %d", tt.endpoint, got, tt.want)
		}
	}
}
