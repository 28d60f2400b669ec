package probe

import (
	"testing"

	"github.com/blkcore/blkmount/internal/partition"
)

func TestAIXProbeRecognizesMagic(t *testing.T) {
	data := make([]byte, 512)
	data[0], data[1], data[2], data[3] = 0xC9, 0xC2, 0xD4, 0xC1
	r := newReader(data, 512)
	list := partition.New()

	res, err := (&AIX{}).Probe(r, list, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res != partition.ProbeOK {
		t.Fatalf("Probe result = %v, want ProbeOK", res)
	}
	if len(list.Tables()) != 1 {
		t.Errorf("expected one recognized table, got %d", len(list.Tables()))
	}
	if len(list.Entries()) != 0 {
		t.Errorf("AIX probe should produce no entries, got %d", len(list.Entries()))
	}
}

func TestAIXProbeNoneWithoutMagic(t *testing.T) {
	data := make([]byte, 512)
	r := newReader(data, 512)
	list := partition.New()

	res, err := (&AIX{}).Probe(r, list, nil)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res != partition.ProbeNone {
		t.Errorf("Probe result = %v, want ProbeNone", res)
	}
}
