package config

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteDefaults пишет YAML-файл со значениями по умолчанию для всех опций,
// сопровождая каждую комментарием и диапазоном.
func (s *Spec) WriteDefaults(w io.Writer) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	for _, d := range s.decls {
		comment := d.Comment()
		if r := d.RangeText(); r != "" {
			comment = strings.TrimSpace(comment + "\nRange: " + r)
		}

		key := &yaml.Node{
			Kind:        yaml.ScalarNode,
			Value:       d.Name(),
			HeadComment: comment,
		}

		value := &yaml.Node{}
		if err := value.Encode(d.DefaultValue()); err != nil {
			return fmt.Errorf("encode default %s: %w", d.Name(), err)
		}
		if value.Kind == yaml.SequenceNode {
			value.Style = yaml.FlowStyle
		}

		doc.Content = append(doc.Content, key, value)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write defaults: %w", err)
	}
	return enc.Close()
}
