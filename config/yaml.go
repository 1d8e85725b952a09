package config

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ParseYAML is an ff config file parser. Nested mappings are joined into flag
// names with "-", so
//
//	redis:
//	  addr: localhost:6379
//
// sets -redis-addr. Sequences set the flag once per element.
func ParseYAML(r io.Reader, set func(name, value string) error) error {
	var m map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(err, "decode yaml config failed")
	}
	return walk("", m, set)
}

func walk(prefix string, m map[string]interface{}, set func(name, value string) error) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "-" + k
		}

		switch v := m[k].(type) {
		case nil:
		case map[string]interface{}:
			if err := walk(name, v, set); err != nil {
				return err
			}
		case []interface{}:
			for _, item := range v {
				if err := setValue(name, item, set); err != nil {
					return err
				}
			}
		default:
			if err := setValue(name, v, set); err != nil {
				return err
			}
		}
	}
	return nil
}

func setValue(name string, v interface{}, set func(name, value string) error) error {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return errors.Errorf("config key %q: nested value not supported", name)
	}
	if err := set(name, fmt.Sprint(v)); err != nil {
		return errors.Wrapf(err, "config key %q", name)
	}
	return nil
}
