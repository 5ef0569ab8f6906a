package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Style is the map look: palette, pinned route colors, default routes and
// viewport. A style file only needs the keys it overrides.
type Style struct {
	Palette          []string          `yaml:"palette" validate:"required,min=1,dive,hexcolor"`
	Pinned           map[string]string `yaml:"pinned" validate:"dive,keys,required,endkeys,hexcolor"`
	DefaultRoutes    []string          `yaml:"default_routes" validate:"dive,required"`
	StopsVisibleZoom int               `yaml:"stops_visible_zoom" validate:"gte=0,lte=22"`
	InitialZoom      int               `yaml:"initial_zoom" validate:"gte=0,lte=22"`
	CenterLat        float64           `yaml:"center_lat" validate:"latitude"`
	CenterLon        float64           `yaml:"center_lon" validate:"longitude"`
}

// DefaultStyle is the Chicago bus map.
func DefaultStyle() Style {
	return Style{
		Palette: []string{
			"#1E88E5", "#43A047", "#E53935", "#FB8C00",
			"#8E24AA", "#F9A825", "#00ACC1", "#5E35B1",
			"#3949AB", "#D81B60", "#546E7A", "#6D4C41",
			"#26A69A", "#7CB342", "#F4511E", "#757575",
		},
		Pinned: map[string]string{
			"22":  "#1E88E5",
			"36":  "#43A047",
			"151": "#E53935",
			"146": "#FB8C00",
			"66":  "#8E24AA",
			"6":   "#F9A825",
			"4":   "#00ACC1",
			"9":   "#5E35B1",
		},
		DefaultRoutes:    []string{"22"},
		StopsVisibleZoom: 14,
		InitialZoom:      13,
		CenterLat:        41.8781,
		CenterLon:        -87.6298,
	}
}

// LoadStyle reads a YAML style file over base and validates the result.
// Pinned colors merge with the base ones; lists replace.
func LoadStyle(path string, base Style) (Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Style{}, fmt.Errorf("read style file: %w", err)
	}
	return ParseStyle(data, base)
}

func ParseStyle(data []byte, base Style) (Style, error) {
	s := base
	s.Pinned = make(map[string]string, len(base.Pinned))
	for k, v := range base.Pinned {
		s.Pinned[k] = v
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Style{}, fmt.Errorf("parse style: %w", err)
	}
	if err := validator.New().Struct(s); err != nil {
		return Style{}, fmt.Errorf("invalid style: %w", err)
	}
	return s, nil
}
