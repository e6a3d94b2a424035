package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/limaJavier/scheduler/pkg/catalog"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// RawEntities mirrors the canonical records produced by the ingestion layer
type RawEntities struct {
	Courses []Course  `mapstructure:"courses"`
	Rooms   []Room    `mapstructure:"rooms"`
	Faculty []Faculty `mapstructure:"faculty"`
	Groups  []Group   `mapstructure:"groups"`
}

// LoadEntities reads a JSON or YAML entity file. Component names are canonicalised ("lecture" -> L)
func LoadEntities(path string) (*Entities, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read entities file: %w", err)
	}

	var input map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &input)
	default:
		err = json.Unmarshal(bytes, &input)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse entities file: %w", err)
	}

	raw, err := DecodeEntities(input)
	if err != nil {
		return nil, err
	}
	return NewEntities(raw.Courses, raw.Rooms, raw.Faculty, raw.Groups)
}

func DecodeEntities(input map[string]any) (RawEntities, error) {
	var raw RawEntities
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  componentHook,
		ErrorUnused: true,
		Result:      &raw,
	})
	if err != nil {
		return RawEntities{}, err
	}
	if err := decoder.Decode(input); err != nil {
		return RawEntities{}, fmt.Errorf("cannot decode entities: %w", err)
	}
	return raw, nil
}

func componentHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(catalog.ComponentType("")) {
		return data, nil
	}
	value := data.(string)
	if value == "" {
		return catalog.ComponentType(""), nil
	}
	return catalog.ParseComponent(value)
}
