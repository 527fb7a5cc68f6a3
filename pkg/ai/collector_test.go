package ai

import (
	"errors"
	"strings"
	"testing"
)

func TestCollectorPreservesInsertionOrder(t *testing.T) {
	c := NewCollector()
	for _, key := range []string{"zeta", "alpha", "mid"} {
		if err := c.AddEntry(key, nil, "q: "+key, "", "tpl.txt"); err != nil {
			t.Fatalf("AddEntry(%s): %v", key, err)
		}
	}

	keys := c.Keys()
	want := []string{"zeta", "alpha", "mid"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}
	entries := c.Entries()
	if len(entries) != 3 || entries[0].Key != "zeta" {
		t.Errorf("Entries out of order: %v", entries)
	}
}

func TestCollectorDuplicateKeyNamesBothSources(t *testing.T) {
	c := NewCollector()
	if err := c.AddEntry("summary", nil, "q1", "", "a.tpl"); err != nil {
		t.Fatalf("first AddEntry: %v", err)
	}
	err := c.AddEntry("summary", nil, "q2", "", "b.tpl")

	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateKeyError", err)
	}
	if dup.FirstSource != "a.tpl" || dup.SecondSource != "b.tpl" {
		t.Errorf("sources = %q, %q; want a.tpl, b.tpl", dup.FirstSource, dup.SecondSource)
	}
	msg := dup.Error()
	if !strings.Contains(msg, "a.tpl") || !strings.Contains(msg, "b.tpl") {
		t.Errorf("error message misses a source location: %s", msg)
	}

	// The first entry survives the collision.
	if got := c.Entries()[0].Prompt; got != "q1" {
		t.Errorf("first entry prompt = %q, want q1", got)
	}
}

func TestCollectorInlineSourceLabel(t *testing.T) {
	c := NewCollector()
	if err := c.AddEntry("k", nil, "q", "", ""); err != nil {
		t.Fatal(err)
	}
	err := c.AddEntry("k", nil, "q", "", "")
	if err == nil || !strings.Contains(err.Error(), "<inline template>") {
		t.Errorf("err = %v, want inline-template label", err)
	}
}

func TestCollectorClear(t *testing.T) {
	c := NewCollector()
	c.AddGlobalContext("project uses react")
	if err := c.AddEntry("k", nil, "q", "", ""); err != nil {
		t.Fatal(err)
	}
	c.Clear()

	if c.HasEntries() {
		t.Error("HasEntries true after Clear")
	}
	if len(c.GlobalContexts()) != 0 {
		t.Error("global contexts survived Clear")
	}
	// The cleared key is reusable.
	if err := c.AddEntry("k", nil, "q", "", ""); err != nil {
		t.Errorf("AddEntry after Clear: %v", err)
	}
}

func TestCollectorCopiesContexts(t *testing.T) {
	c := NewCollector()
	contexts := []string{"one"}
	if err := c.AddEntry("k", contexts, "q", "", ""); err != nil {
		t.Fatal(err)
	}
	contexts[0] = "mutated"
	if got := c.Entries()[0].Contexts[0]; got != "one" {
		t.Errorf("stored context = %q, caller mutation leaked", got)
	}
}
