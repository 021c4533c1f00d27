package main

import (
	"testing"

	"github.com/strand-analytics/graphopt/pkg/analyzer"
)

func TestNewContextPriorities(t *testing.T) {
	tests := []struct {
		flag string
		want analyzer.Priority
	}{
		{"low", analyzer.PriorityLow},
		{"high", analyzer.PriorityHigh},
		{"medium", analyzer.PriorityMedium},
		{"", analyzer.PriorityMedium},
	}
	for _, tt := range tests {
		octx := newContext("acme", tt.flag, true)
		if octx.Priority != tt.want {
			t.Errorf("priority %q: got %v, want %v", tt.flag, octx.Priority, tt.want)
		}
		if octx.TenantID != "acme" {
			t.Errorf("priority %q: tenant not carried", tt.flag)
		}
	}
}

func TestNewContextDisabledCacheOverride(t *testing.T) {
	octx := newContext("acme", "medium", false)
	if octx.CacheEnabled == nil || *octx.CacheEnabled {
		t.Fatal("disabled cache config must become a context-level override")
	}

	enabled := newContext("acme", "medium", true)
	if enabled.CacheEnabled != nil {
		t.Fatal("enabled cache must leave the override unset")
	}
}
