package services

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// fieldRule converts one client-supplied value to what gets stored.
type fieldRule func(v interface{}) (interface{}, error)

func stringField(maxLen int) fieldRule {
	return func(v interface{}) (interface{}, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		s = strings.TrimSpace(s)
		if len(s) > maxLen {
			return nil, fmt.Errorf("longer than %d characters", maxLen)
		}
		return s, nil
	}
}

func requiredString(maxLen int) fieldRule {
	base := stringField(maxLen)
	return func(v interface{}) (interface{}, error) {
		out, err := base(v)
		if err != nil {
			return nil, err
		}
		if out.(string) == "" {
			return nil, fmt.Errorf("must not be empty")
		}
		return out, nil
	}
}

func boolField(v interface{}) (interface{}, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("expected boolean, got %T", v)
	}
	return b, nil
}

// flatten turns {"address": {"city": "x"}} into {"address.city": "x"}.
func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// buildSet validates fields against the allow-list and returns a $set body.
// storePrefix is prepended to every stored key. Unknown fields are rejected.
func buildSet(fields map[string]interface{}, allowed map[string]fieldRule, storePrefix string) (bson.D, error) {
	flat := make(map[string]interface{}, len(fields))
	flatten("", fields, flat)
	if len(flat) == 0 {
		return nil, invalidf("no fields to update")
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := make(bson.D, 0, len(keys))
	for _, k := range keys {
		rule, ok := allowed[k]
		if !ok {
			return nil, invalidf("field %q cannot be updated", k)
		}
		v, err := rule(flat[k])
		if err != nil {
			return nil, invalidf("field %q: %v", k, err)
		}
		set = append(set, bson.E{Key: storePrefix + k, Value: v})
	}
	return set, nil
}
