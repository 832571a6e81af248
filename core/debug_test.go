package core

import (
	"strings"
	"testing"
)

func TestTimingRingOrder(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()

	for i := 0; i < TimingRingSize+4; i++ {
		RecordTiming(EvtSegment, 1, uint32(i), 0, 0)
	}

	events := TimingEvents()
	if len(events) != TimingRingSize {
		t.Fatalf("Expected %d events, got %d", TimingRingSize, len(events))
	}
	if events[0].Clock != 4 {
		t.Errorf("Expected oldest clock 4, got %d", events[0].Clock)
	}
	if last := events[len(events)-1].Clock; last != TimingRingSize+3 {
		t.Errorf("Expected newest clock %d, got %d", TimingRingSize+3, last)
	}
}

func TestDumpTimingRing(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	RecordTiming(EvtPlayEnd, 3, 500, 90, 0)
	RecordTiming(EvtWriteError, 3, 510, 0, 0)
	DumpTimingRing()

	if len(lines) != 4 {
		t.Fatalf("Expected header, 2 events, footer; got %q", lines)
	}
	if !strings.Contains(lines[1], "PLAY_END ch=3 clock=500 v1=90") {
		t.Errorf("Unexpected event line %q", lines[1])
	}
	if !strings.Contains(lines[2], "WRITE_ERR!") {
		t.Errorf("Unexpected event line %q", lines[2])
	}
}

func TestDebugPrintlnGated(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	DebugPrintln("shown")
	SetDebugEnabled(false)

	if len(got) != 1 || got[0] != "shown" {
		t.Errorf("Expected only the enabled message, got %q", got)
	}
	if EventName(99) != "UNKNOWN" {
		t.Errorf("Expected UNKNOWN for bad event type")
	}
}
