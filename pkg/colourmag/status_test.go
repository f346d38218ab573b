package colourmag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyleFor(t *testing.T) {
	tests := []struct {
		status StarStatus
		name   string
	}{
		{Selected, "green"},
		{Deselected, "red"},
		{Selected | Labeled, "blue"},
		{Labeled, "orange"},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.name, StyleFor(tt.status).Name)
		})
	}
}

func TestToggleSelected(t *testing.T) {
	s := Selected | Labeled
	s = s.ToggleSelected()
	assert.False(t, s.Has(Selected))
	assert.True(t, s.Has(Labeled))
	assert.Equal(t, "deselected|labeled", s.String())
	assert.Equal(t, Selected|Labeled, s.ToggleSelected())
}

func TestNewStatuses(t *testing.T) {
	st := NewStatuses(3)
	assert.Equal(t, []StarStatus{Selected, Selected, Selected}, st)
	assert.Empty(t, NewStatuses(0))
}
