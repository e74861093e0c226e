package profile

import "testing"

func TestLoadBundledProfile(t *testing.T) {
	p, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Name != "SMP Negeri 2 Ayah" {
		t.Fatalf("unexpected name %q", p.Name)
	}
	if len(p.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(p.Sections))
	}
	for _, section := range p.Sections {
		if section.Title == "" || len(section.Paragraphs) == 0 {
			t.Fatalf("incomplete section %+v", section)
		}
	}
}
