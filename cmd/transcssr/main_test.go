package main

import "testing"

func TestSweepDepthDefaultSkipsDegenerateDepth(t *testing.T) {
	cmd := newSweepCmd()
	f := cmd.Flags().Lookup("depths")
	if f == nil {
		t.Fatal("sweep command has no depths flag")
	}
	if f.DefValue != "2,3" {
		t.Errorf("default depths = %q, want \"2,3\": depth 1 has no recurrent class", f.DefValue)
	}
}

func TestParseFloatsAndInts(t *testing.T) {
	fs, err := parseFloats("0.001, 0.01")
	if err != nil || len(fs) != 2 || fs[1] != 0.01 {
		t.Errorf("parseFloats = %v, %v", fs, err)
	}
	is, err := parseInts("2,3")
	if err != nil || len(is) != 2 || is[0] != 2 {
		t.Errorf("parseInts = %v, %v", is, err)
	}
	if _, err := parseFloats("0.1,x"); err == nil {
		t.Error("expected error for a malformed float list")
	}
}
