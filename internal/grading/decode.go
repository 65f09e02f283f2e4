package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// decodeHost reads an analyze response. A field whose JSON type no longer
// matches the Go type is reset to its zero value (nil for pointers, empty for
// lists) and its path is recorded in Host.Dropped; only a body that is not a
// JSON object fails.
func decodeHost(r io.Reader) (*Host, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("analyze response is not an object")
	}

	h := &Host{}
	var dropped []string
	decodeTolerant(raw, reflect.ValueOf(h).Elem(), "", &dropped)
	h.Dropped = dropped
	return h, nil
}

// decodeTolerant decodes raw into dst, descending into objects and lists
// only when the strict decode fails so that a mismatch is confined to the
// innermost field that caused it.
func decodeTolerant(raw json.RawMessage, dst reflect.Value, path string, dropped *[]string) {
	if err := json.Unmarshal(raw, dst.Addr().Interface()); err == nil {
		return
	}

	switch dst.Kind() {
	case reflect.Struct:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			drop(dst, path, dropped)
			return
		}
		dst.Set(reflect.Zero(dst.Type()))
		decodeFields(fields, dst, path, map[string]bool{}, dropped)

	case reflect.Pointer:
		if dst.Type().Elem().Kind() != reflect.Struct {
			drop(dst, path, dropped)
			return
		}
		elem := reflect.New(dst.Type().Elem())
		decodeTolerant(raw, elem.Elem(), path, dropped)
		dst.Set(elem)

	case reflect.Slice:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			drop(dst, path, dropped)
			return
		}
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			decodeTolerant(item, out.Index(i), fmt.Sprintf("%s[%d]", path, i), dropped)
		}
		dst.Set(out)

	default:
		drop(dst, path, dropped)
	}
}

// decodeFields walks the struct fields the way encoding/json resolves them:
// direct fields claim their names before fields promoted from embedded
// structs.
func decodeFields(fields map[string]json.RawMessage, dst reflect.Value, path string, claimed map[string]bool, dropped *[]string) {
	t := dst.Type()
	var embedded []int

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			embedded = append(embedded, i)
			continue
		}
		if name == "" {
			name = f.Name
		}
		if claimed[name] {
			continue
		}
		claimed[name] = true

		raw, ok := lookupField(fields, name)
		if !ok {
			continue
		}
		decodeTolerant(raw, dst.Field(i), joinPath(path, name), dropped)
	}

	for _, i := range embedded {
		decodeFields(fields, dst.Field(i), path, claimed, dropped)
	}
}

// lookupField matches keys case-insensitively like encoding/json.
func lookupField(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if raw, ok := fields[name]; ok {
		return raw, true
	}
	for key, raw := range fields {
		if strings.EqualFold(key, name) {
			return raw, true
		}
	}
	return nil, false
}

func drop(dst reflect.Value, path string, dropped *[]string) {
	dst.Set(reflect.Zero(dst.Type()))
	*dropped = append(*dropped, path)
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
