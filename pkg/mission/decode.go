package mission

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// ruleDoc is the authored YAML shape of a rule. The type key selects which
// of the remaining fields are meaningful.
type ruleDoc struct {
	Type       string    `yaml:"type"`
	Text       string    `yaml:"text"`
	Pattern    string    `yaml:"pattern"`
	Flags      string    `yaml:"flags"`
	Function   string    `yaml:"function"`
	Args       []string  `yaml:"args"`
	Match      string    `yaml:"match"`
	MinCount   *int      `yaml:"min_count"`
	ArgIndex   int       `yaml:"arg_index"`
	Min        *float64  `yaml:"min"`
	Max        *float64  `yaml:"max"`
	ArgsPrefix []string  `yaml:"args_prefix"`
	Rules      []ruleDoc `yaml:"rules"`

	line int
}

var (
	ruleKeys = []string{
		"type", "text", "pattern", "flags", "function", "args", "match",
		"min_count", "arg_index", "min", "max", "args_prefix", "rules",
	}
	checkpointKeys = []string{"id", "title", "description", "rules"}
)

// checkKeys rejects mapping keys outside allowed. Node.Decode does not
// inherit the decoder's KnownFields setting, so nested documents with
// custom unmarshalers check their own keys.
func checkKeys(value *yaml.Node, allowed []string) error {
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return fmt.Errorf("line %d: unknown field %q", key.Line, key.Value)
		}
	}
	return nil
}

func (d *ruleDoc) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, ruleKeys); err != nil {
		return err
	}
	type plain ruleDoc
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = ruleDoc(p)
	d.line = value.Line
	return nil
}

// UnmarshalYAML decodes a checkpoint and turns its rule documents into
// typed rules.
func (c *Checkpoint) UnmarshalYAML(value *yaml.Node) error {
	var doc struct {
		ID          string    `yaml:"id"`
		Title       string    `yaml:"title"`
		Description string    `yaml:"description"`
		Rules       []ruleDoc `yaml:"rules"`
	}
	if err := checkKeys(value, checkpointKeys); err != nil {
		return err
	}
	if err := value.Decode(&doc); err != nil {
		return err
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for i, rd := range doc.Rules {
		r, err := rd.toRule()
		if err != nil {
			return fmt.Errorf("checkpoint %q rules[%d]: %w", doc.ID, i, err)
		}
		rules = append(rules, r)
	}

	*c = Checkpoint{
		ID:          doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		Rules:       rules,
	}
	return nil
}

func (d ruleDoc) toRule() (Rule, error) {
	switch d.Type {
	case string(KindContains):
		return ContainsRule{Text: d.Text}, nil

	case string(KindPattern), "pattern":
		return PatternRule{Pattern: d.Pattern, Flags: d.Flags}, nil

	case string(KindCall):
		mode, err := parseMatchMode(d.Match)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", d.line, err)
		}
		minCount, err := d.minCount()
		if err != nil {
			return nil, err
		}
		return CallRule{
			Function: d.Function,
			Args:     d.Args,
			Match:    mode,
			MinCount: minCount,
		}, nil

	case string(KindNumericArgRange):
		if d.Min == nil || d.Max == nil {
			return nil, fmt.Errorf("line %d: %s rule requires min and max", d.line, KindNumericArgRange)
		}
		minCount, err := d.minCount()
		if err != nil {
			return nil, err
		}
		return NumericArgRangeRule{
			Function:   d.Function,
			ArgIndex:   d.ArgIndex,
			Min:        *d.Min,
			Max:        *d.Max,
			ArgsPrefix: d.ArgsPrefix,
			MinCount:   minCount,
		}, nil

	case string(KindAnyOf):
		nested := make([]Rule, 0, len(d.Rules))
		for i, child := range d.Rules {
			r, err := child.toRule()
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", i, err)
			}
			nested = append(nested, r)
		}
		return AnyOfRule{Rules: nested}, nil

	case "":
		return nil, fmt.Errorf("line %d: rule type is required", d.line)

	default:
		return nil, fmt.Errorf("line %d: unknown rule type %q", d.line, d.Type)
	}
}

// minCount returns the authored min_count, or zero when it is omitted. An
// explicit value must be at least 1.
func (d ruleDoc) minCount() (int, error) {
	if d.MinCount == nil {
		return 0, nil
	}
	if *d.MinCount < 1 {
		return 0, fmt.Errorf("line %d: min_count must be at least 1, got %d (omit it for the default of 1)", d.line, *d.MinCount)
	}
	return *d.MinCount, nil
}
