package grammar

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PolicyPath is the location of the resolution policy inside a world root.
var PolicyPath = filepath.Join("policies", "resolution.yaml")

// LoadResolutionGrammar reads and validates the resolution policy of the world
// rooted at worldRoot. It does not cache; callers own the grammar lifetime.
func LoadResolutionGrammar(worldRoot string) (*ResolutionGrammar, error) {
	path := filepath.Join(worldRoot, PolicyPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("loading resolution grammar: %w", err)
	}

	g, err := Parse(data)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Path = path
		}
		return nil, err
	}
	return g, nil
}

// Parse builds a grammar from policy file contents.
func Parse(data []byte) (*ResolutionGrammar, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid("parsing yaml: %v", err)
	}

	var root *yaml.Node
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root = resolve(doc.Content[0])
	}
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, invalid("top level must be a mapping")
	}

	versionNode := lookup(root, "version")
	if versionNode == nil || isNull(versionNode) {
		return nil, invalid("version is required")
	}
	if versionNode.Kind != yaml.ScalarNode {
		return nil, invalid("version must be a string")
	}

	interactions := lookup(root, "interactions")
	if interactions == nil {
		return nil, invalid("interactions is required")
	}
	if interactions.Kind != yaml.MappingNode {
		return nil, invalid("interactions must be a mapping")
	}

	chat := lookup(interactions, "chat")
	if chat == nil {
		return nil, invalid("interactions.chat is required")
	}
	if chat.Kind != yaml.MappingNode {
		return nil, invalid("interactions.chat must be a mapping")
	}

	spec, err := parseChat(chat)
	if err != nil {
		return nil, err
	}

	return NewResolutionGrammar(versionNode.Value, spec)
}

func parseChat(chat *yaml.Node) (ChatSpec, error) {
	var spec ChatSpec

	multipliers := lookup(chat, "channel_multipliers")
	if multipliers == nil {
		return spec, invalid("interactions.chat.channel_multipliers is required")
	}
	if multipliers.Kind != yaml.MappingNode {
		return spec, invalid("interactions.chat.channel_multipliers must be a mapping")
	}
	values := make(map[Channel]float64, 3)
	for _, channel := range Channels() {
		node := lookup(multipliers, string(channel))
		if node == nil {
			return spec, invalid("channel_multipliers missing required channel: %s", channel)
		}
		value, err := floatValue(node, "channel_multipliers."+string(channel))
		if err != nil {
			return spec, err
		}
		if value <= 0 {
			return spec, invalid("channel_multipliers.%s must be positive", channel)
		}
		values[channel] = value
	}
	spec.Say = values[ChannelSay]
	spec.Yell = values[ChannelYell]
	spec.Whisper = values[ChannelWhisper]

	threshold := lookup(chat, "min_gap_threshold")
	if threshold == nil || isNull(threshold) {
		return spec, invalid("interactions.chat.min_gap_threshold is required")
	}
	value, err := floatValue(threshold, "min_gap_threshold")
	if err != nil {
		return spec, err
	}
	spec.MinGapThreshold = value

	axes := lookup(chat, "axes")
	if axes == nil {
		return spec, invalid("interactions.chat.axes is required")
	}
	if axes.Kind != yaml.MappingNode {
		return spec, invalid("interactions.chat.axes must be a mapping")
	}

	seen := make(map[string]struct{})
	for i := 0; i+1 < len(axes.Content); i += 2 {
		name := axes.Content[i].Value
		if strings.TrimSpace(name) == "" {
			return spec, invalid("axis name is required")
		}
		if _, exists := seen[name]; exists {
			return spec, invalid("duplicate axis: %s", name)
		}
		seen[name] = struct{}{}

		rule, err := parseAxisRule(name, resolve(axes.Content[i+1]))
		if err != nil {
			return spec, err
		}
		spec.Rules = append(spec.Rules, rule)
	}

	return spec, nil
}

func parseAxisRule(name string, node *yaml.Node) (AxisRule, error) {
	if node == nil || node.Kind != yaml.MappingNode {
		return AxisRule{}, invalid("axis %q must be a mapping", name)
	}

	resolverNode := lookup(node, "resolver")
	if resolverNode == nil || isNull(resolverNode) {
		return AxisRule{}, invalid("axis %q: resolver is required (one of %s)", name, resolverNameList())
	}
	kind, ok := ParseResolverKind(resolverNode.Value)
	if resolverNode.Kind != yaml.ScalarNode || !ok {
		return AxisRule{}, invalid("axis %q: invalid resolver %q (one of %s)", name, resolverNode.Value, resolverNameList())
	}

	rule := AxisRule{Axis: name, Resolver: kind}
	if magnitude := lookup(node, "base_magnitude"); magnitude != nil && !isNull(magnitude) {
		value, err := floatValue(magnitude, "axes."+name+".base_magnitude")
		if err != nil {
			return AxisRule{}, err
		}
		rule.BaseMagnitude = value
	}
	return rule, nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return resolve(mapping.Content[i+1])
		}
	}
	return nil
}

func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// floatValue coerces integer, float, and numeric string scalars to float64.
func floatValue(node *yaml.Node, field string) (float64, error) {
	if node.Kind != yaml.ScalarNode || isNull(node) {
		return 0, invalid("%s must be a number", field)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(node.Value), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, invalid("%s must be a number, got %q", field, node.Value)
	}
	return value, nil
}
