package codec

import "testing"

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.PutU64("height", 42)
	w.PutString("note", "hello")
	w.PutBool("verified", true)
	w.PutF64("score", 3.5)

	schema := Schema{
		"height":   TU64,
		"note":     TBytes,
		"verified": TBool,
		"score":    TF64,
	}
	r, err := DecodeSchema(w.Bytes(), schema, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if v, err := r.U64("height"); err != nil || v != 42 {
		t.Fatalf("height = %v, %v", v, err)
	}
	if v, err := r.String("note"); err != nil || v != "hello" {
		t.Fatalf("note = %q, %v", v, err)
	}
	if v, err := r.Bool("verified"); err != nil || !v {
		t.Fatalf("verified = %v, %v", v, err)
	}
	if v, err := r.F64("score"); err != nil || v != 3.5 {
		t.Fatalf("score = %v, %v", v, err)
	}
}

func TestDecodeSchemaRejectsUnknownField(t *testing.T) {
	w := NewWriter()
	w.PutU64("height", 1)
	w.PutU64("mystery", 2)

	_, err := DecodeSchema(w.Bytes(), Schema{"height": TU64}, nil)
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestDecodeSchemaAcceptsLegacyAlias(t *testing.T) {
	w := NewWriter()
	w.PutU64("height", 1)
	w.PutU64("consumer_amount", 5)

	r, err := DecodeSchema(w.Bytes(), Schema{"height": TU64}, map[string]bool{"consumer_amount": true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !r.Has("consumer_amount") {
		t.Fatal("expected legacy alias field to be retained")
	}
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	type doc struct {
		Zeta  int `json:"zeta"`
		Alpha int `json:"alpha"`
	}
	out, err := CanonicalJSON(doc{Zeta: 1, Alpha: 2})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	want := `{"alpha":2,"zeta":1}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestCanonicalJSONDeterministicAcrossMapOrder(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": 3}
	out1, _ := CanonicalJSON(a)
	out2, _ := CanonicalJSON(a)
	if string(out1) != string(out2) {
		t.Fatal("expected stable output across repeated calls")
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(out1) != want {
		t.Fatalf("got %s, want %s", out1, want)
	}
}

func TestUnmarshalStrictRejectsUnknownField(t *testing.T) {
	type doc struct {
		Name string `json:"name"`
	}
	var d doc
	err := UnmarshalStrict([]byte(`{"name":"x","extra":1}`), &d)
	if err == nil {
		t.Fatal("expected strict unmarshal to reject unknown field")
	}
}
