package normalize

import (
	"testing"
)

func TestClusterMergesAccentAndCaseVariants(t *testing.T) {
	g := Cluster([]string{
		"Ingeniería de Sistemas",
		"INGENIERIA DE SISTEMAS",
		"ingenieria de sistemas",
	}, DefaultOptions())

	if len(g.Groups()) != 1 {
		t.Fatalf("expected 1 group, got %d", len(g.Groups()))
	}
	c1, ok := g.Canonical("Ingeniería de Sistemas")
	if !ok {
		t.Fatalf("variant not resolvable")
	}
	c2, _ := g.Canonical("INGENIERIA DE SISTEMAS")
	if c1 != c2 {
		t.Fatalf("variants map to different canonicals: %q vs %q", c1, c2)
	}
}

func TestClusterMergesByEditDistance(t *testing.T) {
	g := Cluster([]string{
		"INGENIERIA DE SISTEMAS",
		"INGENIERIA DE SISTEMA",
	}, DefaultOptions())

	if len(g.Groups()) != 1 {
		t.Fatalf("expected typo variant merged, got %d groups", len(g.Groups()))
	}
}

func TestClusterMergesByTokenOverlap(t *testing.T) {
	g := Cluster([]string{
		"TECNOLOGIA MEDICA TERAPIA FISICA",
		"TECNOLOGIA MEDICA TERAPIA FISICA REHABILITACION",
	}, DefaultOptions())

	if len(g.Groups()) != 1 {
		t.Fatalf("expected token-overlap merge, got %d groups", len(g.Groups()))
	}
}

func TestClusterFirstTokenBlocking(t *testing.T) {
	// Same token sets in different order never compare: first tokens differ.
	g := Cluster([]string{
		"GESTION PUBLICA",
		"PUBLICA GESTION",
	}, DefaultOptions())

	if len(g.Groups()) != 2 {
		t.Fatalf("expected blocking to keep groups apart, got %d", len(g.Groups()))
	}
}

func TestClusterConnectives(t *testing.T) {
	names := []string{
		"ADMINISTRACION DE EMPRESAS",
		"ADMINISTRACION EMPRESAS",
	}

	withDrop := DefaultOptions()
	withDrop.DropConnectives = true
	if n := len(Cluster(names, withDrop).Groups()); n != 1 {
		t.Fatalf("with connectives dropped: expected 1 group, got %d", n)
	}
	if n := len(Cluster(names, DefaultOptions()).Groups()); n != 2 {
		t.Fatalf("with connectives kept: expected 2 groups, got %d", n)
	}
}

func TestClusterRepresentativeByFrequency(t *testing.T) {
	g := Cluster([]string{
		"Contabilidad",
		"Contabilidad",
		"Contabilidad",
		"CONTABILIDAD",
	}, DefaultOptions())

	c, ok := g.Canonical("CONTABILIDAD")
	if !ok || c != "Contabilidad" {
		t.Fatalf("expected most frequent variant as canonical, got %q (ok=%v)", c, ok)
	}
}

func TestClusterRepresentativeTieBreaks(t *testing.T) {
	// Equal frequency: shortest wins, then lexical.
	g := Cluster([]string{
		"INGENIERIA DE SISTEMAS",
		"INGENIERIA DE SISTEMA",
	}, DefaultOptions())

	c, _ := g.Canonical("INGENIERIA DE SISTEMAS")
	if c != "INGENIERIA DE SISTEMA" {
		t.Fatalf("expected shortest variant as canonical, got %q", c)
	}
}

func TestClusterDropsBlanks(t *testing.T) {
	g := Cluster([]string{"", "   ", "DERECHO"}, DefaultOptions())
	if len(g.Groups()) != 1 {
		t.Fatalf("expected blanks dropped, got %d groups", len(g.Groups()))
	}
	if _, ok := g.Canonical(""); ok {
		t.Fatalf("blank must not resolve")
	}
	if _, ok := g.Canonical("MEDICINA"); ok {
		t.Fatalf("unseen variant must not resolve")
	}
}

func TestClusterDeterministicUnderPermutation(t *testing.T) {
	a := []string{"DERECHO", "Ingeniería Civil", "INGENIERIA CIVIL", "ENFERMERIA", "ENFERMERIA TECNICA"}
	b := []string{"ENFERMERIA TECNICA", "INGENIERIA CIVIL", "ENFERMERIA", "DERECHO", "Ingeniería Civil"}

	ga, gb := Cluster(a, DefaultOptions()), Cluster(b, DefaultOptions())
	if len(ga.Groups()) != len(gb.Groups()) {
		t.Fatalf("group counts differ: %d vs %d", len(ga.Groups()), len(gb.Groups()))
	}
	for _, raw := range a {
		ca, _ := ga.Canonical(raw)
		cb, _ := gb.Canonical(raw)
		if ca != cb {
			t.Errorf("canonical for %q differs across permutations: %q vs %q", raw, ca, cb)
		}
	}
}
