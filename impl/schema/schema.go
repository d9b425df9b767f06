package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"

	_ "crypto/sha256"
	_ "crypto/sha512"

	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// SchemaVersion is the only image manifest schema version accepted
const SchemaVersion = 2

// kind is the JSON shape a key's value must have
type kind int

const (
	kindString kind = iota
	kindInteger
	kindObject
	kindArray
	kindStringArray
	kindStringMap
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "a string"
	case kindInteger:
		return "an integer"
	case kindObject:
		return "an object"
	case kindArray:
		return "an array"
	case kindStringArray:
		return "an array of strings"
	case kindStringMap:
		return "a map of string to string"
	}
	return "unknown"
}

// field declares one key of an entity, whether it must be present, and the
// JSON shape of its value.
type field struct {
	key      string
	required bool
	kind     kind
}

// manifestFields is the requirement table for an image manifest. Required keys
// are checked in declaration order.
var manifestFields = []field{
	{key: "schemaVersion", required: true, kind: kindInteger},
	{key: "config", required: true, kind: kindObject},
	{key: "layers", required: true, kind: kindArray},
	{key: "mediaType", required: false, kind: kindString},
	{key: "annotations", required: false, kind: kindStringMap},
}

// descriptorFields is the requirement table for a content descriptor (the
// manifest config and each layer).
var descriptorFields = []field{
	{key: "mediaType", required: true, kind: kindString},
	{key: "digest", required: true, kind: kindString},
	{key: "size", required: true, kind: kindInteger},
	{key: "urls", required: false, kind: kindStringArray},
	{key: "annotations", required: false, kind: kindStringMap},
}

// Decode decodes a JSON document into the generic tree that Validate accepts.
// Numbers are kept as json.Number so that 64-bit sizes survive intact.
func Decode(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("manifest is not a JSON object: %s", err)}
	}
	if doc == nil {
		return nil, &ValidationError{Message: "manifest is not a JSON object: null"}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ValidationError{Message: "manifest has unexpected data after the JSON object"}
	}
	return doc, nil
}

// Validate decides whether the passed decoded JSON is a well-formed image manifest.
// On success it returns the typed manifest and a nil error. Otherwise it returns an
// empty manifest and a *ValidationError naming the first offending key. The order of
// checks is:
//
//  1. required top-level keys
//  2. required keys of the config descriptor
//  3. required keys of each layer descriptor, in layer order
//  4. value checks, starting with schemaVersion
//
// An empty layers array is valid.
func Validate(doc map[string]any) (ocispec.Manifest, error) {
	if err := requireKeys(doc, manifestFields, ""); err != nil {
		return ocispec.Manifest{}, err
	}
	config, ok := doc["config"].(map[string]any)
	if !ok {
		return ocispec.Manifest{}, invalid("config", "must be %s", kindObject)
	}
	if err := requireKeys(config, descriptorFields, "config."); err != nil {
		return ocispec.Manifest{}, err
	}
	rawLayers, ok := doc["layers"].([]any)
	if !ok {
		return ocispec.Manifest{}, invalid("layers", "must be %s", kindArray)
	}
	layers := make([]map[string]any, len(rawLayers))
	for i, rawLayer := range rawLayers {
		prefix := fmt.Sprintf("layers[%d]", i)
		if layers[i], ok = rawLayer.(map[string]any); !ok {
			return ocispec.Manifest{}, invalid(prefix, "must be %s", kindObject)
		}
		if err := requireKeys(layers[i], descriptorFields, prefix+"."); err != nil {
			return ocispec.Manifest{}, err
		}
	}

	version, ok := asInteger(doc["schemaVersion"])
	if !ok {
		return ocispec.Manifest{}, invalid("schemaVersion", "must be %s", kindInteger)
	}
	if version != SchemaVersion {
		return ocispec.Manifest{}, invalid("schemaVersion", "must be %d, got %d", SchemaVersion, version)
	}

	m := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: SchemaVersion},
		Layers:    make([]ocispec.Descriptor, 0, len(layers)),
	}
	var err error
	if m.MediaType, err = optionalString(doc, "mediaType", ""); err != nil {
		return ocispec.Manifest{}, err
	}
	if m.Annotations, err = optionalStringMap(doc, "annotations", ""); err != nil {
		return ocispec.Manifest{}, err
	}
	if m.Config, err = toDescriptor(config, "config."); err != nil {
		return ocispec.Manifest{}, err
	}
	for i, layer := range layers {
		desc, err := toDescriptor(layer, fmt.Sprintf("layers[%d].", i))
		if err != nil {
			return ocispec.Manifest{}, err
		}
		m.Layers = append(m.Layers, desc)
	}
	return m, nil
}

// requireKeys checks that every required key in the passed table is present
// and not null.
func requireKeys(obj map[string]any, fields []field, prefix string) error {
	for _, f := range fields {
		if !f.required {
			continue
		}
		if v, exists := obj[f.key]; !exists || v == nil {
			return missing(prefix + f.key)
		}
	}
	return nil
}

// toDescriptor converts a descriptor object whose required keys are known to be
// present into a typed descriptor, checking each value.
func toDescriptor(obj map[string]any, prefix string) (ocispec.Descriptor, error) {
	desc := ocispec.Descriptor{}
	mediaType, ok := obj["mediaType"].(string)
	if !ok {
		return desc, invalid(prefix+"mediaType", "must be %s", kindString)
	}
	if mediaType == "" {
		return desc, invalid(prefix+"mediaType", "must not be empty")
	}
	desc.MediaType = mediaType

	rawDigest, ok := obj["digest"].(string)
	if !ok {
		return desc, invalid(prefix+"digest", "must be %s", kindString)
	}
	dgst, err := ParseDigest(rawDigest)
	if err != nil {
		return desc, invalid(prefix+"digest", "%s", err)
	}
	desc.Digest = dgst

	size, ok := asInteger(obj["size"])
	if !ok {
		return desc, invalid(prefix+"size", "must be %s in the int64 range", kindInteger)
	}
	if size < 0 {
		return desc, invalid(prefix+"size", "must not be negative")
	}
	desc.Size = size

	if desc.URLs, err = optionalURLs(obj, "urls", prefix); err != nil {
		return desc, err
	}
	if desc.Annotations, err = optionalStringMap(obj, "annotations", prefix); err != nil {
		return desc, err
	}
	return desc, nil
}

// ParseDigest parses a digest of the form algorithm:hex, accepting only sha256
// and sha512 with lower case hex of the algorithm's length.
func ParseDigest(s string) (digest.Digest, error) {
	dgst, err := digest.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%q is not a valid digest: %s", s, err)
	}
	switch dgst.Algorithm() {
	case digest.SHA256, digest.SHA512:
		return dgst, nil
	}
	return "", fmt.Errorf("%q uses unsupported algorithm %q", s, dgst.Algorithm())
}

func optionalString(obj map[string]any, key, prefix string) (string, error) {
	v, exists := obj[key]
	if !exists || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(prefix+key, "must be %s", kindString)
	}
	return s, nil
}

// optionalStringMap returns nil for an absent, null, or empty map.
func optionalStringMap(obj map[string]any, key, prefix string) (map[string]string, error) {
	v, exists := obj[key]
	if !exists || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalid(prefix+key, "must be %s", kindStringMap)
	}
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		s, ok := val.(string)
		if !ok {
			return nil, invalid(fmt.Sprintf("%s%s.%s", prefix, key, k), "must be %s", kindString)
		}
		out[k] = s
	}
	return out, nil
}

// optionalURLs returns nil for an absent, null, or empty array. Each entry must be
// an absolute URI.
func optionalURLs(obj map[string]any, key, prefix string) ([]string, error) {
	v, exists := obj[key]
	if !exists || v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, invalid(prefix+key, "must be %s", kindStringArray)
	}
	if len(arr) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(arr))
	for i, val := range arr {
		s, ok := val.(string)
		if !ok {
			return nil, invalid(fmt.Sprintf("%s%s[%d]", prefix, key, i), "must be %s", kindString)
		}
		u, err := url.Parse(s)
		if err != nil || !u.IsAbs() {
			return nil, invalid(fmt.Sprintf("%s%s[%d]", prefix, key, i), "%q is not an absolute URI", s)
		}
		out = append(out, s)
	}
	return out, nil
}

// asInteger accepts the numeric representations a JSON decoder can produce and
// returns the value if it is integral and fits in an int64.
func asInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	}
	return 0, false
}
