package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LocationGroups maps campus areas to clusters of nearby location names.
// Items found in the same group get partial location credit when scoring.
type LocationGroups struct {
	Groups []LocationGroup `yaml:"groups"`
}

type LocationGroup struct {
	Name      string   `yaml:"name"`
	Locations []string `yaml:"locations"`
}

// defaultLocationGroups covers the stock campus taxonomy; a YAML file
// configured via location_groups_path replaces it entirely.
var defaultLocationGroups = &LocationGroups{
	Groups: []LocationGroup{
		{Name: "library", Locations: []string{"Library - Main Floor", "Library - 2nd Floor", "Library - Study Rooms"}},
		{Name: "student_center", Locations: []string{"Student Center - Cafeteria", "Student Center - Lounge"}},
		{Name: "classrooms", Locations: []string{"Classroom Building A", "Classroom Building B"}},
		{Name: "parking", Locations: []string{"Parking Lot A", "Parking Lot B"}},
		{Name: "recreation", Locations: []string{"Gymnasium", "Dormitory - Common Area"}},
	},
}

func LoadLocationGroups(path string) (*LocationGroups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read location groups: %w", err)
	}
	var g LocationGroups
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse location groups yaml: %w", err)
	}
	return &g, nil
}

func loadLocationGroupsIfConfigured(cfg Config) *LocationGroups {
	if strings.TrimSpace(cfg.LocationGroupsPath) == "" {
		return defaultLocationGroups
	}
	g, err := LoadLocationGroups(cfg.LocationGroupsPath)
	if err != nil {
		return defaultLocationGroups
	}
	return g
}

func normalizeLocationName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameGroup reports whether two location names belong to one group.
func (g *LocationGroups) SameGroup(loc1, loc2 string) bool {
	if g == nil {
		return false
	}
	a := normalizeLocationName(loc1)
	b := normalizeLocationName(loc2)
	if a == "" || b == "" {
		return false
	}
	for _, group := range g.Groups {
		foundA, foundB := false, false
		for _, name := range group.Locations {
			switch normalizeLocationName(name) {
			case a:
				foundA = true
			case b:
				foundB = true
			}
		}
		if foundA && foundB {
			return true
		}
	}
	return false
}
