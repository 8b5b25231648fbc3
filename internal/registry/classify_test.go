package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTitle(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		specialty string
		isHealth  bool
	}{
		{"doctor", "Doctor of Medicine", "doctor", true},
		{"surgeon uppercase", "ORTHOPEDIC SURGEON", "surgeon", true},
		{"nurse", "Registered Nurse", "nurse", true},
		{"paramedic", "Certified Paramedic", "paramedic", true},
		{"specialty", "Specialist in Pediatrics", "pediatrics", true},
		{"embedded keyword", "Emergency Medical Technician", "medical", true},
		{"engineer", "Civil Engineer", "", false},
		{"lawyer", "Attorney at Law", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specialty, isHealth := ClassifyTitle(tt.title)
			assert.Equal(t, tt.isHealth, isHealth)
			assert.Equal(t, tt.specialty, specialty)
		})
	}
}

func TestNamesMatch(t *testing.T) {
	tests := []struct {
		name     string
		registry string
		claimed  string
		match    bool
	}{
		{"exact", "Maria Lopez Garcia", "Maria Lopez Garcia", true},
		{"case insensitive", "MARIA LOPEZ GARCIA", "maria lopez garcia", true},
		{"claimed contained in registry", "Maria Lopez Garcia", "Maria Lopez", true},
		{"registry contained in claimed", "Maria Lopez", "Dr Maria Lopez Garcia", true},
		{"first token overlap", "Maria Lopez Garcia", "Maria Hernandez", true},
		{"no overlap", "Maria Lopez Garcia", "Juan Perez", false},
		{"empty registry", "", "Maria", false},
		{"empty claimed", "Maria Lopez", "", false},
		{"whitespace only", "Maria Lopez", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, NamesMatch(tt.registry, tt.claimed))
		})
	}
}
