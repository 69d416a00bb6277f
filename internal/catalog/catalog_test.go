package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
}

func TestValidateRejectsBadData(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Catalog)
	}{
		{"no products", func(c *Catalog) { c.Products = nil }},
		{"duplicate product", func(c *Catalog) { c.Products = append(c.Products, c.Products[0]) }},
		{"cost multiplier one", func(c *Catalog) { c.Products[0].CostMultiplier = 1 }},
		{"missing starter", func(c *Catalog) { c.Starter = "caviar" }},
		{"staff bad target", func(c *Catalog) { c.Staff[0].Target = "caviar" }},
		{"upgrade bad prerequisite", func(c *Catalog) { c.Upgrades[1].Requires = "caviar" }},
		{"upgrade no effects", func(c *Catalog) { c.Upgrades[0].Effects = nil }},
		{"title ladder not increasing", func(c *Catalog) { c.Titles[2].Cost = c.Titles[1].Cost }},
		{"first title not free", func(c *Catalog) { c.Titles[0].Cost = 5 }},
		{"no chat colors", func(c *Catalog) { c.ChatColors = nil }},
		{"malformed chat color", func(c *Catalog) { c.ChatColors[0] = "red" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLookups(t *testing.T) {
	c := Default()
	if p, ok := c.Product("balas"); !ok || p.BaseRevenue != 1 {
		t.Fatalf("product lookup: %+v ok=%v", p, ok)
	}
	if _, ok := c.Product("caviar"); ok {
		t.Fatalf("unexpected product hit")
	}
	if s, ok := c.StaffByID("uriel"); !ok || s.Target != TargetGlobal {
		t.Fatalf("staff lookup: %+v ok=%v", s, ok)
	}
	if u, ok := c.UpgradeByID("leitor"); !ok || len(u.Effects) != 2 {
		t.Fatalf("upgrade lookup: %+v ok=%v", u, ok)
	}
	if !c.ValidChatColor("#000000") || c.ValidChatColor("#ff8800") {
		t.Fatalf("chat color palette lookup broken")
	}
}

func TestTitleLadder(t *testing.T) {
	c := Default()
	if got := c.TitleFor(0).Name; got != "NOOB" {
		t.Fatalf("TitleFor(0) = %q", got)
	}
	if got := c.TitleFor(999).Name; got != "DEUS VAREJO" {
		t.Fatalf("TitleFor(999) = %q", got)
	}
	next, ok := c.NextTitle(0)
	if !ok || next.Name != "REPOSITOR" || next.Cost != 1000000 {
		t.Fatalf("NextTitle(0) = %+v ok=%v", next, ok)
	}
	if _, ok := c.NextTitle(len(c.Titles) - 1); ok {
		t.Fatalf("ladder should be exhausted")
	}
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	yml := `
starter: pao
products:
  - id: pao
    name: Pão
    base_cost: 10
    base_revenue: 1
    cost_multiplier: 1.2
titles:
  - name: NOVATO
    cost: 0
  - name: CHEFE
    cost: 1000
chat_colors:
  - "#000000"
  - "#dc2626"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Starter != "pao" || len(c.Products) != 1 {
		t.Fatalf("unexpected catalog: %+v", c)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
