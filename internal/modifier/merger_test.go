package modifier

import (
	"slices"
	"testing"

	"github.com/cockroachdb/apd/v3"

	"github.com/albertocavalcante/modlens/pkg/pdxscript"
)

// render flattens Merged output for comparison.
func render(m *Merger) []string {
	var out []string
	for mod := range m.Merged() {
		if mod.IsGroup() {
			out = append(out, "group "+mod.Key)
			for _, l := range mod.Leaves {
				out = append(out, "  "+l.Key+"="+l.Value.String())
			}
			continue
		}
		out = append(out, mod.Key+"="+mod.Raw)
	}
	return out
}

func TestInverseLaw(t *testing.T) {
	tests := []struct {
		name string
		mod  Modifier
	}{
		{name: "flat", mod: Leaf("political_power_gain", "0.15")},
		{name: "negative", mod: Leaf("stability_factor", "-0.05")},
		{name: "group", mod: Group("fascism_drift", Leaf("a", "1"), Leaf("b", "0.3"))},
		{name: "passthrough", mod: Leaf("custom_modifier_tooltip", "MY_TT")},
		{name: "unparsable", mod: Leaf("weird", "@var")},
		{name: "empty group", mod: Group("nothing")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMerger()
			m.Add(tt.mod)
			m.Remove(tt.mod)
			if !m.IsEmpty() {
				t.Errorf("after add+remove Merged() = %v, want empty", render(m))
			}
		})
	}
}

func TestInverseLawInterleaved(t *testing.T) {
	mods := []Modifier{
		Leaf("a", "0.1"),
		Leaf("a", "0.2"),
		Group("g", Leaf("x", "1.5"), Leaf("y", "-2")),
		Leaf("b", "3"),
		Leaf("custom_modifier_tooltip", "TT_1"),
		Group("g", Leaf("x", "0.5")),
	}

	m := NewMerger()
	m.AddAll(mods)
	// Remove in a different order.
	for _, i := range []int{3, 0, 5, 2, 4, 1} {
		m.Remove(mods[i])
	}
	if !m.IsEmpty() {
		t.Errorf("Merged() = %v, want empty", render(m))
	}
}

func TestMagnitude(t *testing.T) {
	m := NewMerger()
	m.Add(Leaf("a", "5"))
	m.Add(Leaf("a", "-5"))
	if _, ok := m.Value("a"); ok {
		t.Error("a should be pruned after netting to zero")
	}

	m.Add(Leaf("a", "3"))
	m.Add(Leaf("a", "3"))
	got := render(m)
	if !slices.Equal(got, []string{"a=6"}) {
		t.Errorf("Merged() = %v, want [a=6]", got)
	}
}

func TestDecimalExactness(t *testing.T) {
	m := NewMerger()
	for range 10 {
		m.Add(Leaf("a", "0.1"))
	}
	v, ok := m.Value("a")
	if !ok {
		t.Fatal("a missing")
	}
	want := apd.New(1, 0)
	if v.Cmp(want) != 0 {
		t.Errorf("sum of ten 0.1 = %s, want 1", v.String())
	}

	for range 10 {
		m.Remove(Leaf("a", "0.1"))
	}
	if !m.IsEmpty() {
		t.Errorf("Merged() = %v, want empty", render(m))
	}
}

func TestGroupedAccumulation(t *testing.T) {
	m := NewMerger()
	m.Add(Group("targeted", Leaf("attack", "0.1"), Leaf("defence", "0.2")))
	m.Add(Group("targeted", Leaf("attack", "0.15")))

	v, ok := m.GroupValue("targeted", "attack")
	if !ok || v.String() != "0.25" {
		t.Errorf("GroupValue(attack) = %s, %v; want 0.25", v.String(), ok)
	}

	m.Remove(Group("targeted", Leaf("defence", "0.2")))
	if _, ok := m.GroupValue("targeted", "defence"); ok {
		t.Error("defence should be pruned")
	}
	m.Remove(Group("targeted", Leaf("attack", "0.25")))
	if !m.IsEmpty() {
		t.Errorf("group should be pruned when empty, got %v", render(m))
	}
}

func TestMergedOrder(t *testing.T) {
	m := NewMerger()
	m.Add(Group("zeta", Leaf("b", "1"), Leaf("a", "2")))
	m.Add(Leaf("y", "1"))
	m.Add(Leaf("custom_modifier_tooltip", "SECOND"))
	m.Add(Leaf("x", "1"))
	m.Add(Group("alpha", Leaf("c", "1")))
	m.Add(Leaf("custom_modifier_tooltip", "FIRST"))

	want := []string{
		"custom_modifier_tooltip=SECOND",
		"custom_modifier_tooltip=FIRST",
		"x=1",
		"y=1",
		"group alpha",
		"  c=1",
		"group zeta",
		"  a=2",
		"  b=1",
	}
	if got := render(m); !slices.Equal(got, want) {
		t.Errorf("Merged() = %v, want %v", got, want)
	}
	if m.Len() != 6 {
		t.Errorf("Len() = %d, want 6", m.Len())
	}
}

func TestPassthroughRemovedByIdentity(t *testing.T) {
	m := NewMerger()
	m.Add(Leaf("custom_modifier_tooltip", "A"))
	m.Add(Leaf("custom_modifier_tooltip", "B"))
	m.Add(Leaf("custom_modifier_tooltip", "A"))

	m.Remove(Leaf("custom_modifier_tooltip", "A"))
	want := []string{"custom_modifier_tooltip=B", "custom_modifier_tooltip=A"}
	if got := render(m); !slices.Equal(got, want) {
		t.Errorf("Merged() = %v, want %v", got, want)
	}

	m.Remove(Leaf("custom_modifier_tooltip", "missing"))
	if m.Len() != 2 {
		t.Errorf("removing an absent tooltip changed the list: %v", render(m))
	}
}

func TestUnparsableCountsAsZero(t *testing.T) {
	m := NewMerger()
	m.Add(Leaf("a", "1"))
	m.Add(Leaf("a", "not_a_number"))
	v, _ := m.Value("a")
	if v.String() != "1" {
		t.Errorf("a = %s, want 1", v.String())
	}

	m.Add(Leaf("b", "yes"))
	if _, ok := m.Value("b"); ok {
		t.Error("a zero-valued leaf should not create an entry")
	}
}

func TestNonFiniteAndOutOfRangeCountAsZero(t *testing.T) {
	tests := []string{"nan", "NaN", "Infinity", "-inf", "1e40", "1e28", "1e-40", "12345678901234567890123456789"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			if v := Leaf("x", raw).Value; !v.IsZero() {
				t.Fatalf("Leaf(%q).Value = %s, want 0", raw, v.String())
			}

			m := NewMerger()
			m.Add(Leaf("x", "1"))
			m.Add(Leaf("a", raw))
			m.Add(Leaf("x", raw))
			m.Remove(Leaf("a", raw))
			m.Remove(Leaf("x", raw))

			if got, want := render(m), []string{"x=1"}; !slices.Equal(got, want) {
				t.Errorf("Merged() = %v, want %v", got, want)
			}
		})
	}
}

func TestRangeLimits(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"9999999999999999999999999999", "9999999999999999999999999999"},
		{"0.0000000000000000000000000001", "1E-28"},
		{"1e27", "1E+27"},
		{"-2.5", "-2.5"},
	}
	for _, tt := range tests {
		m := Leaf("x", tt.raw)
		if got := m.Value.String(); got != tt.want {
			t.Errorf("Leaf(%q).Value = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestExtremeMagnitudesStayExact(t *testing.T) {
	big := Leaf("x", "9999999999999999999999999999")
	tiny := Leaf("x", "0.0000000000000000000000000001")

	m := NewMerger()
	m.Add(Leaf("x", "1"))
	m.Add(big)
	m.Add(tiny)
	m.Add(big)
	m.Remove(big)
	m.Remove(tiny)
	m.Remove(big)

	v, ok := m.Value("x")
	if !ok || v.Cmp(apd.New(1, 0)) != 0 {
		t.Errorf("x = %s, %v; want 1", v.String(), ok)
	}
}

func TestDirectNonFiniteValueIgnored(t *testing.T) {
	var nan Modifier
	nan.Key = "x"
	nan.Value.Form = apd.NaN

	m := NewMerger()
	m.Add(Leaf("x", "2"))
	m.Add(nan)
	m.Remove(nan)
	if got, want := render(m), []string{"x=2"}; !slices.Equal(got, want) {
		t.Errorf("Merged() = %v, want %v", got, want)
	}
}

func TestClear(t *testing.T) {
	m := NewMerger()
	m.Add(Leaf("a", "1"))
	m.Add(Group("g", Leaf("b", "1")))
	m.Add(Leaf("custom_modifier_tooltip", "X"))
	m.Clear()
	if !m.IsEmpty() {
		t.Errorf("Clear() left %v", render(m))
	}
}

func TestCustomPassthroughKeys(t *testing.T) {
	m := NewMerger("hidden_note")
	m.Add(Leaf("hidden_note", "7"))
	m.Add(Leaf("custom_modifier_tooltip", "5"))

	want := []string{"hidden_note=7", "custom_modifier_tooltip=5"}
	if got := render(m); !slices.Equal(got, want) {
		t.Errorf("Merged() = %v, want %v", got, want)
	}
}

func TestMergedStopsEarly(t *testing.T) {
	m := NewMerger()
	m.Add(Leaf("a", "1"))
	m.Add(Leaf("b", "1"))
	m.Add(Group("g", Leaf("c", "1")))

	n := 0
	for range m.Merged() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d items, want 2", n)
	}
}

func TestFromBlock(t *testing.T) {
	src := `
modifier = {
	political_power_gain = 0.25
	custom_modifier_tooltip = MY_TT
	targeted_modifier = {
		tag = GER
		attack_bonus_against = 0.1
	}
}
`
	root, err := pdxscript.Parse("test.txt", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	mods := FromBlock(root.Child("modifier"))
	if len(mods) != 3 {
		t.Fatalf("len(FromBlock()) = %d, want 3", len(mods))
	}
	if mods[0].Key != "political_power_gain" || mods[0].Value.String() != "0.25" {
		t.Errorf("mods[0] = %s=%s", mods[0].Key, mods[0].Value.String())
	}
	if !mods[2].IsGroup() || len(mods[2].Leaves) != 2 {
		t.Errorf("mods[2] = %+v, want group with 2 leaves", mods[2])
	}
	if FromBlock(nil) != nil {
		t.Error("FromBlock(nil) should be nil")
	}
}
