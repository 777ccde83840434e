// Package grammar holds the per-world resolution policy: which resolver each
// axis uses for a chat interaction, the channel multipliers, and the minimum
// dominance gap. Grammars are immutable once built and safe to share across
// goroutines without locking.
package grammar

import (
	"fmt"
	"strings"
)

// Channel is the medium a chat interaction travels through.
type Channel string

const (
	ChannelSay     Channel = "say"
	ChannelYell    Channel = "yell"
	ChannelWhisper Channel = "whisper"
)

// Channels returns the recognised chat channels in canonical order.
func Channels() []Channel {
	return []Channel{ChannelSay, ChannelYell, ChannelWhisper}
}

// ResolverKind selects the resolver strategy for one axis. The zero value is
// NoEffect.
type ResolverKind uint8

const (
	NoEffect ResolverKind = iota
	DominanceShift
	SharedDrain
)

var resolverNames = map[ResolverKind]string{
	NoEffect:       "no_effect",
	DominanceShift: "dominance_shift",
	SharedDrain:    "shared_drain",
}

func (k ResolverKind) String() string {
	if name, ok := resolverNames[k]; ok {
		return name
	}
	return fmt.Sprintf("resolver(%d)", uint8(k))
}

// ParseResolverKind maps a policy file resolver name to its kind.
func ParseResolverKind(name string) (ResolverKind, bool) {
	switch name {
	case "dominance_shift":
		return DominanceShift, true
	case "shared_drain":
		return SharedDrain, true
	case "no_effect":
		return NoEffect, true
	}
	return NoEffect, false
}

func resolverNameList() string {
	return strings.Join([]string{"dominance_shift", "shared_drain", "no_effect"}, ", ")
}

// AxisRule is the resolution rule for a single axis.
type AxisRule struct {
	Axis          string
	Resolver      ResolverKind
	BaseMagnitude float64
}

// ChatSpec is the plain input used to build a ChatGrammar.
type ChatSpec struct {
	Say             float64
	Yell            float64
	Whisper         float64
	MinGapThreshold float64
	Rules           []AxisRule
}

// ChatGrammar is the chat interaction policy. Rules keep the declaration
// order of the policy file.
type ChatGrammar struct {
	say             float64
	yell            float64
	whisper         float64
	minGapThreshold float64
	rules           []AxisRule
	index           map[string]int
}

// Multiplier returns the multiplier for the named channel.
func (c *ChatGrammar) Multiplier(channel string) (float64, bool) {
	switch Channel(channel) {
	case ChannelSay:
		return c.say, true
	case ChannelYell:
		return c.yell, true
	case ChannelWhisper:
		return c.whisper, true
	}
	return 0, false
}

func (c *ChatGrammar) MinGapThreshold() float64 {
	return c.minGapThreshold
}

// Rules returns a copy of the axis rules in declaration order.
func (c *ChatGrammar) Rules() []AxisRule {
	return append([]AxisRule(nil), c.rules...)
}

// Axes returns the axis names in declaration order.
func (c *ChatGrammar) Axes() []string {
	axes := make([]string, 0, len(c.rules))
	for _, rule := range c.rules {
		axes = append(axes, rule.Axis)
	}
	return axes
}

func (c *ChatGrammar) Rule(axis string) (AxisRule, bool) {
	i, ok := c.index[axis]
	if !ok {
		return AxisRule{}, false
	}
	return c.rules[i], true
}

// ResolutionGrammar is the full resolution policy of one world.
type ResolutionGrammar struct {
	version string
	chat    ChatGrammar
}

func (g *ResolutionGrammar) Version() string {
	return g.version
}

func (g *ResolutionGrammar) Chat() *ChatGrammar {
	return &g.chat
}

// NewResolutionGrammar builds an immutable grammar from a spec. The rules
// slice is copied.
func NewResolutionGrammar(version string, spec ChatSpec) (*ResolutionGrammar, error) {
	if strings.TrimSpace(version) == "" {
		return nil, invalid("version is required")
	}
	multipliers := map[Channel]float64{ChannelSay: spec.Say, ChannelYell: spec.Yell, ChannelWhisper: spec.Whisper}
	for _, channel := range Channels() {
		if !(multipliers[channel] > 0) {
			return nil, invalid("channel_multipliers.%s must be positive", channel)
		}
	}

	rules := make([]AxisRule, 0, len(spec.Rules))
	index := make(map[string]int, len(spec.Rules))
	for _, rule := range spec.Rules {
		if strings.TrimSpace(rule.Axis) == "" {
			return nil, invalid("axis name is required")
		}
		if _, exists := index[rule.Axis]; exists {
			return nil, invalid("duplicate axis: %s", rule.Axis)
		}
		if _, known := resolverNames[rule.Resolver]; !known {
			return nil, invalid("axis %q: invalid resolver %s", rule.Axis, rule.Resolver)
		}
		index[rule.Axis] = len(rules)
		rules = append(rules, rule)
	}

	return &ResolutionGrammar{
		version: version,
		chat: ChatGrammar{
			say:             spec.Say,
			yell:            spec.Yell,
			whisper:         spec.Whisper,
			minGapThreshold: spec.MinGapThreshold,
			rules:           rules,
			index:           index,
		},
	}, nil
}

// CheckCoverage fails when any of the world's declared axes has no chat rule.
func CheckCoverage(g *ResolutionGrammar, axes []string) error {
	var missing []string
	for _, axis := range axes {
		if _, ok := g.chat.index[axis]; !ok {
			missing = append(missing, axis)
		}
	}
	if len(missing) > 0 {
		return invalid("interactions.chat.axes missing world axes: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Undeclared returns grammar axes that the world does not declare.
func Undeclared(g *ResolutionGrammar, axes []string) []string {
	declared := make(map[string]struct{}, len(axes))
	for _, axis := range axes {
		declared[axis] = struct{}{}
	}
	var extra []string
	for _, rule := range g.chat.rules {
		if _, ok := declared[rule.Axis]; !ok {
			extra = append(extra, rule.Axis)
		}
	}
	return extra
}
