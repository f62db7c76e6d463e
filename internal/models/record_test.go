package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_NewerThan(t *testing.T) {
	tests := []struct {
		name  string
		a     *Record
		b     *Record
		aWins bool
	}{
		{
			name:  "higher clock wins",
			a:     &Record{Clock: 10, DeviceID: "device-a"},
			b:     &Record{Clock: 5, DeviceID: "device-b"},
			aWins: true,
		},
		{
			name:  "lower clock loses",
			a:     &Record{Clock: 3, DeviceID: "device-z"},
			b:     &Record{Clock: 5, DeviceID: "device-a"},
			aWins: false,
		},
		{
			name:  "equal clock falls back to device id",
			a:     &Record{Clock: 7, DeviceID: "device-b"},
			b:     &Record{Clock: 7, DeviceID: "device-a"},
			aWins: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.aWins, tt.a.NewerThan(tt.b))
			// ordering must be antisymmetric for all replicas to agree
			assert.Equal(t, !tt.aWins, tt.b.NewerThan(tt.a))
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	r := &Record{
		RecordID: "r1",
		Kind:     KindPlot,
		Payload:  Payload{"name": "north plot", "notes": []any{"dry season"}},
		Version:  3,
		Clock:    12,
	}

	clone := r.Clone()
	clone.Payload["name"] = "south plot"

	assert.Equal(t, "north plot", r.Payload["name"])
	assert.Equal(t, int64(3), clone.Version)
}

func TestPayload_Equal(t *testing.T) {
	a := Payload{"name": "farm", "area": 2.5, "notes": []any{"a", "b"}}
	b := Payload{"name": "farm", "area": 2.5, "notes": []any{"a", "b"}}
	c := Payload{"name": "farm", "area": 3.0, "notes": []any{"a", "b"}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, Payload(nil).Equal(Payload{}))
}

func TestKnownKind(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, KnownKind(k))
	}
	assert.False(t, KnownKind("tractor"))
}
