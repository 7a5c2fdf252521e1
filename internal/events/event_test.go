package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func field(raw string) MetadataField {
	return MetadataField{Value: json.RawMessage(raw)}
}

func TestMetadataField_Int(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{`3`, 3, false},
		{`"7"`, 7, false},
		{`2.0`, 2, false},
		{`"2.5"`, 0, true},
		{`"abc"`, 0, true},
		{`null`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := field(tt.raw).Int()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvent_Rank(t *testing.T) {
	e := &Event{Metadata: []MetadataField{field(`"5"`)}}
	rank, ok := e.Rank()
	assert.True(t, ok)
	assert.Equal(t, 5, rank)

	_, ok = (&Event{}).Rank()
	assert.False(t, ok)

	_, ok = (&Event{Metadata: []MetadataField{field(`"top"`)}}).Rank()
	assert.False(t, ok)
}

func TestEvent_Resolution(t *testing.T) {
	w, h, ok := (&Event{Details: Details{ViewportResolution: "1280x720"}}).Resolution()
	assert.True(t, ok)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	w, h, ok = (&Event{Metadata: []MetadataField{field(`800`), field(`"600"`)}}).Resolution()
	assert.True(t, ok)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	_, _, ok = (&Event{Details: Details{ViewportResolution: "wide"}}).Resolution()
	assert.False(t, ok)
}

func TestEvent_TypeFallback(t *testing.T) {
	assert.Equal(t, "click", (&Event{EventType: "mouse", Details: Details{Type: "click"}}).Type())
	assert.Equal(t, "mouse", (&Event{EventType: "mouse"}).Type())
}
