package cartridge

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	sections := map[string][]byte{
		"main": []byte("program-bytes-here"),
		"ui":   []byte("raw-asset-bytes"),
	}
	h := Header{
		AppTitle: "demo", WindowWidth: 640, WindowHeight: 480, NumThreads: 4,
		VSync: true,
		Sections: []SectionHeader{
			{Name: "main", Type: SectionProgram, Size: uint32(len(sections["main"]))},
			{Name: "ui", Type: SectionRaw, Size: uint32(len(sections["ui"]))},
		},
	}

	data, err := Encode(h, sections)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	c, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Header.AppTitle != "demo" {
		t.Errorf("AppTitle = %q, want demo", c.Header.AppTitle)
	}
	if string(c.Sections["main"]) != "program-bytes-here" {
		t.Errorf("section main = %q", c.Sections["main"])
	}
	if string(c.Sections["ui"]) != "raw-asset-bytes" {
		t.Errorf("section ui = %q", c.Sections["ui"])
	}
}

func TestDecodeBadMagicFailsClosed(t *testing.T) {
	t.Parallel()
	h := Header{AppTitle: "x", Sections: []SectionHeader{{Name: "a", Type: SectionRaw, Size: 3}}}
	data, err := Encode(h, map[string][]byte{"a": []byte("abc")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Corrupt the magic number in place.
	data[0], data[1], data[2], data[3] = 'X', 'X', 'X', 'X'

	c, err := Decode(data)
	if err == nil {
		t.Fatal("expected decode error for bad magic")
	}
	if c != nil {
		t.Error("expected no cartridge to be returned on bad magic")
	}
}

func TestDecodeBadVersionFailsClosed(t *testing.T) {
	t.Parallel()
	h := Header{AppTitle: "x"}
	data, err := Encode(h, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Version follows the 4-byte magic field.
	data[4] = 0xFF
	data[5] = 0xFF

	if _, err := Decode(data); err == nil {
		t.Fatal("expected decode error for bad version")
	}
}

func TestDecodeSectionBoundsRejected(t *testing.T) {
	t.Parallel()
	h := Header{Sections: []SectionHeader{{Name: "a", Type: SectionRaw, Size: 4}}}
	data, err := Encode(h, map[string][]byte{"a": []byte("abcd")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	truncated := data[:len(data)-2]
	if _, err := Decode(truncated); err == nil {
		t.Fatal("expected bounds error on truncated section body")
	}
}

func TestTooManySectionsRejected(t *testing.T) {
	t.Parallel()
	sections := make([]SectionHeader, maxSections+1)
	for i := range sections {
		sections[i] = SectionHeader{Name: "s", Type: SectionRaw}
	}
	if _, err := Encode(Header{Sections: sections}, nil); err != ErrTooManySections {
		t.Fatalf("err = %v, want ErrTooManySections", err)
	}
}

func TestCompressSectionRoundTrip(t *testing.T) {
	t.Parallel()
	original := []byte("some asset bytes that repeat repeat repeat repeat")
	compressed, err := CompressSection(original)
	if err != nil {
		t.Fatalf("CompressSection: %v", err)
	}
	restored, err := DecompressSection(compressed)
	if err != nil {
		t.Fatalf("DecompressSection: %v", err)
	}
	if string(restored) != string(original) {
		t.Errorf("restored = %q, want %q", restored, original)
	}
}

func TestSectionBodyDecompressesTransparently(t *testing.T) {
	t.Parallel()
	raw := []byte("asset payload")
	compressed, err := CompressSection(raw)
	if err != nil {
		t.Fatalf("CompressSection: %v", err)
	}
	h := Header{Sections: []SectionHeader{
		{Name: "tex", Type: SectionImage, Size: uint32(len(compressed)), Reserved: [4]uint32{CompressionZstd}},
	}}
	data, err := Encode(h, map[string][]byte{"tex": compressed})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	c, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, err := c.SectionBody("tex")
	if err != nil {
		t.Fatalf("SectionBody: %v", err)
	}
	if string(body) != string(raw) {
		t.Errorf("SectionBody = %q, want %q", body, raw)
	}
}

func TestDecodePipelineRoundTrip(t *testing.T) {
	t.Parallel()
	doc := &PipelineDoc{
		Name: "demo",
		Stages: []PipelineStage{
			{Entry: "preprocess", Bindings: map[string]string{"input": "frame"}},
			{Entry: "infer"},
		},
	}
	data, err := EncodePipeline(doc)
	if err != nil {
		t.Fatalf("EncodePipeline: %v", err)
	}
	got, err := DecodePipeline(data)
	if err != nil {
		t.Fatalf("DecodePipeline: %v", err)
	}
	if got.Name != "demo" || len(got.Stages) != 2 {
		t.Fatalf("got = %+v", got)
	}
	if got.Stages[0].Bindings["input"] != "frame" {
		t.Errorf("binding = %+v", got.Stages[0])
	}
}

func TestHashSymbolNameDeterministic(t *testing.T) {
	t.Parallel()
	a := HashSymbolName("host.index.0")
	b := HashSymbolName("host.index.0")
	if a != b {
		t.Error("HashSymbolName must be deterministic")
	}
	if a == HashSymbolName("host.index.1") {
		t.Error("distinct names should (almost always) hash differently")
	}
}
