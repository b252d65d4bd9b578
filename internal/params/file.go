package params

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// defaultStep replaces a zero step on a multi-iteration range.
const defaultStep = 0.01

type floatEntry struct {
	Start      *float64 `yaml:"start"`
	Step       float64  `yaml:"step"`
	Iterations int      `yaml:"iterations"`
}

// LoadFile reads a YAML parameters file into gen.
//
//	floats:
//	  macFastMa: {start: 10, step: 5, iterations: 4}
//	strings:
//	  mode: fast
//
// Entries keep their document order. Malformed entries are skipped with a warning.
func LoadFile(path string, gen Generator, logger zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to load parameters file")
		return fmt.Errorf("read parameters %s: %w", path, err)
	}
	if err := Parse(data, gen, logger); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to parse parameters file")
		return err
	}
	logger.Info().Str("path", path).Str("generator", gen.Name()).Msg("Using parameters file")
	return nil
}

// Parse declares the parameters of a YAML document on gen.
func Parse(data []byte, gen Generator, logger zerolog.Logger) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: top level must be a mapping", ErrParse)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "floats":
			if err := parseFloats(val, gen, logger); err != nil {
				return err
			}
		case "strings":
			if err := parseStrings(val, gen, logger); err != nil {
				return err
			}
		default:
			logger.Warn().Str("key", key).Msg("Unknown section in parameters file")
		}
	}
	return nil
}

func parseFloats(node *yaml.Node, gen Generator, logger zerolog.Logger) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: floats must be a mapping", ErrParse)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var e floatEntry
		if node.Content[i+1].Kind != yaml.MappingNode || node.Content[i+1].Decode(&e) != nil || e.Start == nil {
			logger.Warn().Str("param", name).Msg("Invalid parameter")
			continue
		}
		if e.Iterations < 1 {
			logger.Warn().Str("param", name).Int("iterations", 1).Msg("Invalid iterations value, changing")
			e.Iterations = 1
		}
		if e.Iterations > 1 && e.Step == 0 {
			logger.Warn().Str("param", name).Float64("step", defaultStep).Msg("Invalid step value, changing")
			e.Step = defaultStep
		}
		gen.AddFloat(name, *e.Start, e.Step, e.Iterations)
	}
	return nil
}

func parseStrings(node *yaml.Node, gen Generator, logger zerolog.Logger) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: strings must be a mapping", ErrParse)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, val := node.Content[i].Value, node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			logger.Warn().Str("param", name).Msg("Invalid string")
			continue
		}
		gen.AddString(name, val.Value)
	}
	return nil
}
