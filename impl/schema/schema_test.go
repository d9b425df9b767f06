package schema

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"toymanifest/mock"
)

func mustDecode(t *testing.T, s string) map[string]any {
	doc, err := Decode([]byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

// Test that the canonical manifest validates and matches the typed fixture
func TestValidManifest(t *testing.T) {
	m, err := Validate(mustDecode(t, mock.ManifestJson))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m, mock.Manifest()) {
		t.Fatalf("validated manifest does not match fixture:\n%+v\n%+v", m, mock.Manifest())
	}
}

func TestEmptyDocument(t *testing.T) {
	_, err := Validate(map[string]any{})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "schemaVersion" || !strings.Contains(ve.Message, "must contain key") {
		t.Fatalf("unexpected error: %+v", ve)
	}
}

func TestMissingKeys(t *testing.T) {
	type testcase struct {
		doc   string
		field string
	}
	testcases := []testcase{
		{
			doc:   `{"schemaVersion": 2, "layers": []}`,
			field: "config",
		},
		{
			doc:   `{"schemaVersion": 2, "config": {"mediaType": "x", "digest": "` + mock.ConfigDigest + `", "size": 1}}`,
			field: "layers",
		},
		{
			doc:   `{"schemaVersion": 2, "config": {"digest": "` + mock.ConfigDigest + `", "size": 1}, "layers": []}`,
			field: "config.mediaType",
		},
		{
			doc:   `{"schemaVersion": 2, "config": {"mediaType": "x", "size": 1}, "layers": []}`,
			field: "config.digest",
		},
		{
			doc:   `{"schemaVersion": 2, "config": {"mediaType": "x", "digest": "` + mock.ConfigDigest + `"}, "layers": []}`,
			field: "config.size",
		},
		{
			doc: `{"schemaVersion": 2, "config": {"mediaType": "x", "digest": "` + mock.ConfigDigest + `", "size": 1},
				"layers": [{"mediaType": "y", "digest": "` + mock.LayerDigest + `", "size": 1}, {"mediaType": "y", "size": 1}]}`,
			field: "layers[1].digest",
		},
		{
			doc:   `{"schemaVersion": null, "config": {}, "layers": []}`,
			field: "schemaVersion",
		},
	}
	for _, tc := range testcases {
		_, err := Validate(mustDecode(t, tc.doc))
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for %s, got %v", tc.field, err)
		}
		if ve.Field != tc.field {
			t.Errorf("expected field %q, got %q (%s)", tc.field, ve.Field, ve.Message)
		}
		if !strings.Contains(ve.Message, "must contain key") {
			t.Errorf("unexpected message %q", ve.Message)
		}
	}
}

func TestSchemaVersion(t *testing.T) {
	doc := mustDecode(t, strings.Replace(mock.ManifestJson, `"schemaVersion": 2`, `"schemaVersion": 86`, 1))
	_, err := Validate(doc)
	if err == nil {
		t.Fatal("expected schemaVersion 86 to fail")
	}
	if !strings.Contains(err.Error(), "schemaVersion") {
		t.Fatalf("expected error to cite schemaVersion, got %q", err)
	}
	doc = mustDecode(t, strings.Replace(mock.ManifestJson, `"schemaVersion": 2`, `"schemaVersion": "2"`, 1))
	if _, err = Validate(doc); err == nil {
		t.Fatal("expected string schemaVersion to fail")
	}
}

func TestEmptyLayers(t *testing.T) {
	doc := mustDecode(t, `{"schemaVersion": 2, "config": {"mediaType": "x", "digest": "`+mock.ConfigDigest+`", "size": 10}, "layers": []}`)
	m, err := Validate(doc)
	if err != nil {
		t.Fatal(err)
	}
	if m.Layers == nil || len(m.Layers) != 0 {
		t.Fatalf("expected non-nil empty layers, got %v", m.Layers)
	}
}

func TestBadValues(t *testing.T) {
	type testcase struct {
		from  string
		to    string
		field string
	}
	testcases := []testcase{
		{from: mock.LayerDigest, to: "sha256:abc", field: "layers[0].digest"},
		{from: mock.LayerDigest, to: "md5:9834876dcfb05cb167a5c24953eba58c", field: "layers[0].digest"},
		{from: `"size": 32654`, to: `"size": -1`, field: "layers[0].size"},
		{from: `"size": 32654`, to: `"size": 1.5`, field: "layers[0].size"},
		{from: mock.LayerUrl, to: "file1.tar.gz", field: "layers[0].urls[0]"},
		{from: `"annotations": {"this": "that"}`, to: `"annotations": {"this": 1}`, field: "config.annotations.this"},
		{from: `"layers": [`, to: `"layers": [1, `, field: "layers[0]"},
	}
	for _, tc := range testcases {
		doc := mustDecode(t, strings.Replace(mock.ManifestJson, tc.from, tc.to, 1))
		_, err := Validate(doc)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for %s, got %v", tc.field, err)
		}
		if ve.Field != tc.field {
			t.Errorf("expected field %q, got %q (%s)", tc.field, ve.Field, ve.Message)
		}
	}
}

func TestDecode(t *testing.T) {
	for _, s := range []string{"", "null", "[]", "{", "42", mock.ManifestJson + " trailing garbage {", mock.ManifestJson + "{}"} {
		if _, err := Decode([]byte(s)); err == nil {
			t.Errorf("expected decode of %q to fail", s)
		}
	}
	if _, err := Decode([]byte(mock.ManifestJson + "\n\t ")); err != nil {
		t.Errorf("trailing white space should decode: %s", err)
	}
}

func TestParseDigest(t *testing.T) {
	if _, err := ParseDigest(mock.ConfigDigest); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseDigest("sha256:" + strings.ToUpper(mock.ConfigDigest[7:])); err == nil {
		t.Fatal("expected upper case hex to fail")
	}
	if _, err := ParseDigest("b5b2b2c507a0944348e0303114d8d93aaaa081732b86451d9bce1f432a537bc7"); err == nil {
		t.Fatal("expected digest without algorithm to fail")
	}
}
