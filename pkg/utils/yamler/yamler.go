// Package yamler builds yaml.Node trees, to write YAML with keys in a fixed order.
package yamler

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func Text(value string) *yaml.Node {
	return scalar("!!str", value)
}

func Bool(b bool) *yaml.Node {
	return scalar("!!bool", strconv.FormatBool(b))
}

func Int(n int) *yaml.Node {
	return scalar("!!int", strconv.Itoa(n))
}

// Float writes f in the shortest form which reads back as f.
//
// The tag is left implicit, so whole numbers are written like 1, not !!float 1.
func Float(f float64) *yaml.Node {
	return scalar("", strconv.FormatFloat(f, 'g', -1, 64))
}

func Null() *yaml.Node {
	return scalar("!!null", "null")
}

func Seq(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Content: items}
}

// Texts is a sequence of strings.
func Texts(values ...string) *yaml.Node {
	items := make([]*yaml.Node, 0, len(values))
	for _, v := range values {
		items = append(items, Text(v))
	}
	return Seq(items...)
}

type MapEntry struct {
	Key   string
	Value *yaml.Node
}

func Entry(key string, value *yaml.Node) MapEntry {
	return MapEntry{Key: key, Value: value}
}

// Map is a mapping with entries in the given order.
func Map(entries ...MapEntry) *yaml.Node {
	content := make([]*yaml.Node, 0, 2*len(entries))
	for _, e := range entries {
		content = append(content, Text(e.Key), e.Value)
	}
	return &yaml.Node{Kind: yaml.MappingNode, Content: content}
}
