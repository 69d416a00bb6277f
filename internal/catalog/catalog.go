// Package catalog holds the static game configuration: the product line,
// hireable staff, one-time upgrades, the prestige title ladder, and the
// redeemable credit codes. Defaults are compiled in; operators can override
// the whole catalog with a YAML file for rebalancing without a redeploy.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EffectTarget values with special meaning. Any other target is a product id.
const (
	TargetGlobal = "global"
	TargetClick  = "click"
)

type Product struct {
	ID             string  `yaml:"id" json:"id"`
	Name           string  `yaml:"name" json:"name"`
	Icon           string  `yaml:"icon" json:"icon"`
	BaseCost       float64 `yaml:"base_cost" json:"base_cost"`
	BaseRevenue    float64 `yaml:"base_revenue" json:"base_revenue"`
	CostMultiplier float64 `yaml:"cost_multiplier" json:"cost_multiplier"`
	UnlockCost     float64 `yaml:"unlock_cost" json:"unlock_cost"`
	ReqPrestige    int     `yaml:"req_prestige" json:"req_prestige"`
}

type Staff struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Role        string  `yaml:"role" json:"role"`
	Description string  `yaml:"description" json:"description"`
	Cost        float64 `yaml:"cost" json:"cost"`
	Multiplier  float64 `yaml:"multiplier" json:"multiplier"`
	Target      string  `yaml:"target" json:"target"`
}

// Effect is one multiplicative income rule granted by an upgrade.
// Target is a product id, TargetGlobal, or TargetClick.
type Effect struct {
	Target string  `yaml:"target" json:"target"`
	Value  float64 `yaml:"value" json:"value"`
}

type Upgrade struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Cost        float64  `yaml:"cost" json:"cost"`
	Requires    string   `yaml:"requires" json:"requires"`
	Effects     []Effect `yaml:"effects" json:"effects"`
}

// Title is one rung of the prestige ladder. Cost is the cumulative lifetime
// earnings needed to accept the promotion to this title.
type Title struct {
	Name string  `yaml:"name" json:"name"`
	Cost float64 `yaml:"cost" json:"cost"`
}

// Code is a redeemable VIP credit voucher. Each account may redeem a given
// code once.
type Code struct {
	Code    string `yaml:"code" json:"code"`
	Credits int    `yaml:"credits" json:"credits"`
}

// Bot is a house leaderboard account that keeps fresh servers lively.
type Bot struct {
	Username         string  `yaml:"username" json:"username"`
	Title            string  `yaml:"title" json:"title"`
	PrestigeLevel    int     `yaml:"prestige_level" json:"prestige_level"`
	LifetimeEarnings float64 `yaml:"lifetime_earnings" json:"lifetime_earnings"`
	PlayTime         int64   `yaml:"play_time" json:"play_time"`
}

type Catalog struct {
	Starter    string    `yaml:"starter" json:"starter"`
	Products   []Product `yaml:"products" json:"products"`
	Staff      []Staff   `yaml:"staff" json:"staff"`
	Upgrades   []Upgrade `yaml:"upgrades" json:"upgrades"`
	Titles     []Title   `yaml:"titles" json:"titles"`
	Codes      []Code    `yaml:"codes" json:"codes"`
	Quotes     []string  `yaml:"quotes" json:"quotes"`
	Bots       []Bot     `yaml:"bots" json:"bots"`
	ChatColors []string  `yaml:"chat_colors" json:"chat_colors"`
}

// Default returns the built-in supermarket catalog.
func Default() *Catalog {
	return &Catalog{
		Starter: "balas",
		Products: []Product{
			{ID: "balas", Name: "Balas", Icon: "🍬", BaseCost: 10, BaseRevenue: 1, CostMultiplier: 1.15, UnlockCost: 0, ReqPrestige: 0},
			{ID: "agua", Name: "Água", Icon: "💧", BaseCost: 250, BaseRevenue: 8, CostMultiplier: 1.15, UnlockCost: 100, ReqPrestige: 0},
			{ID: "padaria", Name: "Pão", Icon: "🥖", BaseCost: 1500, BaseRevenue: 40, CostMultiplier: 1.14, UnlockCost: 1000, ReqPrestige: 0},
			{ID: "hortifruti", Name: "Hortifruti", Icon: "🍎", BaseCost: 15000, BaseRevenue: 250, CostMultiplier: 1.13, UnlockCost: 10000, ReqPrestige: 1},
			{ID: "arroz", Name: "Cesta Básica", Icon: "🍚", BaseCost: 60000, BaseRevenue: 800, CostMultiplier: 1.12, UnlockCost: 40000, ReqPrestige: 1},
			{ID: "acougue", Name: "Açougue", Icon: "🥩", BaseCost: 350000, BaseRevenue: 3500, CostMultiplier: 1.11, UnlockCost: 200000, ReqPrestige: 2},
			{ID: "eletro", Name: "Eletro", Icon: "📺", BaseCost: 1500000, BaseRevenue: 12000, CostMultiplier: 1.10, UnlockCost: 1000000, ReqPrestige: 2},
			{ID: "moveis", Name: "Móveis", Icon: "🪑", BaseCost: 8000000, BaseRevenue: 55000, CostMultiplier: 1.09, UnlockCost: 5000000, ReqPrestige: 3},
			{ID: "informatica", Name: "Informática", Icon: "💻", BaseCost: 40000000, BaseRevenue: 220000, CostMultiplier: 1.08, UnlockCost: 25000000, ReqPrestige: 3},
			{ID: "automotivo", Name: "Peças Auto", Icon: "🚗", BaseCost: 150000000, BaseRevenue: 900000, CostMultiplier: 1.07, UnlockCost: 100000000, ReqPrestige: 4},
			{ID: "imoveis", Name: "Imóveis", Icon: "🏢", BaseCost: 1000000000, BaseRevenue: 5000000, CostMultiplier: 1.06, UnlockCost: 750000000, ReqPrestige: 4},
		},
		Staff: []Staff{
			{ID: "bryan", Name: "Bryan", Role: "Estagiário", Description: "Lucro Balas x2", Cost: 1000, Multiplier: 2, Target: "balas"},
			{ID: "leo", Name: "Leo", Role: "Repositor", Description: "Lucro Água x2", Cost: 5000, Multiplier: 2, Target: "agua"},
			{ID: "samuel", Name: "Samuel", Role: "Padeiro", Description: "Lucro Pão x2", Cost: 25000, Multiplier: 2, Target: "padaria"},
			{ID: "joao", Name: "João", Role: "Feirante", Description: "Lucro Hortifruti x2", Cost: 150000, Multiplier: 2, Target: "hortifruti"},
			{ID: "kaue", Name: "Kaue", Role: "Açougueiro", Description: "Lucro Açougue x2", Cost: 1000000, Multiplier: 2, Target: "acougue"},
			{ID: "uriel", Name: "Uriel", Role: "Gerente", Description: "Lucro Global +50%", Cost: 50000000, Multiplier: 1.5, Target: TargetGlobal},
		},
		Upgrades: []Upgrade{
			{ID: "tenis", Name: "Tênis Ortopédico", Description: "Clique x2.", Cost: 500,
				Effects: []Effect{{Target: TargetClick, Value: 2}}},
			{ID: "leitor", Name: "Leitor Código", Description: "Água/Balas x2.", Cost: 2500, Requires: "agua",
				Effects: []Effect{{Target: "balas", Value: 2}, {Target: "agua", Value: 2}}},
			{ID: "forno", Name: "Forno Turbo", Description: "Pão x3.", Cost: 20000, Requires: "padaria",
				Effects: []Effect{{Target: "padaria", Value: 3}}},
			{ID: "caminhao", Name: "Caminhão", Description: "Hortifruti x3.", Cost: 100000, Requires: "hortifruti",
				Effects: []Effect{{Target: "hortifruti", Value: 3}}},
			{ID: "ar", Name: "Ar Condicionado", Description: "Global +20%.", Cost: 5000000,
				Effects: []Effect{{Target: TargetGlobal, Value: 1.2}}},
		},
		Titles: []Title{
			{Name: "NOOB", Cost: 0},
			{Name: "REPOSITOR", Cost: 1000000},
			{Name: "CAIXA", Cost: 5000000},
			{Name: "FISCAL", Cost: 25000000},
			{Name: "GERENTE", Cost: 100000000},
			{Name: "DIRETOR", Cost: 500000000},
			{Name: "CEO", Cost: 2500000000},
			{Name: "SÓCIO", Cost: 10000000000},
			{Name: "DONO", Cost: 50000000000},
			{Name: "MAGNATA", Cost: 250000000000},
			{Name: "LENDA", Cost: 1000000000000},
			{Name: "DEUS VAREJO", Cost: 10000000000000},
		},
		Codes: []Code{
			{Code: "BEMVINDO", Credits: 5},
			{Code: "INAUGURACAO", Credits: 10},
			{Code: "FERIADAO", Credits: 15},
		},
		Bots: []Bot{
			{Username: "MasterMarket", Title: "CEO", PrestigeLevel: 6, LifetimeEarnings: 5000000000, PlayTime: 432000},
			{Username: "SandraCaixa", Title: "GERENTE", PrestigeLevel: 4, LifetimeEarnings: 320000000, PlayTime: 280800},
			{Username: "SrBarriga", Title: "DIRETOR", PrestigeLevel: 5, LifetimeEarnings: 900000000, PlayTime: 198000},
			{Username: "RepositorFlash", Title: "FISCAL", PrestigeLevel: 3, LifetimeEarnings: 42000000, PlayTime: 540000},
		},
		Quotes: []string{
			"Atenção frente de caixa!",
			"Limpeza no corredor 4.",
			"Leve 3 e pague 3!",
			"O sistema caiu!",
			"Quem comeu o estoque?",
			"Fim de mês lotado.",
			"Cuidado com o carrinho.",
			"Leonardo quer férias.",
			"Hoje o dia rende!",
			"A meta é bater a meta.",
			"Sorria, sendo filmado.",
			"Dinheiro não traz felicidade, compra!",
		},
		ChatColors: []string{
			"#000000", // black, the default
			"#1d4ed8", // blue
			"#dc2626", // red
			"#15803d", // green
			"#7e22ce", // purple
			"#c2410c", // orange
			"#be185d", // pink
		},
	}
}

// Load reads a full catalog override from a YAML file and validates it.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects misconfigurations at startup so the economy never has to
// deal with them mid-game. In particular a cost multiplier <= 1 would make
// the MAX-buy logarithm ill-defined.
func (c *Catalog) Validate() error {
	if len(c.Products) == 0 {
		return fmt.Errorf("catalog has no products")
	}
	if len(c.Titles) < 2 {
		return fmt.Errorf("catalog needs at least two titles")
	}
	seen := make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		if p.ID == "" {
			return fmt.Errorf("product with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate product id %q", p.ID)
		}
		seen[p.ID] = true
		if p.CostMultiplier <= 1 {
			return fmt.Errorf("product %q: cost multiplier must be > 1, got %v", p.ID, p.CostMultiplier)
		}
		if p.BaseCost <= 0 || p.BaseRevenue <= 0 {
			return fmt.Errorf("product %q: base cost and revenue must be > 0", p.ID)
		}
		if p.UnlockCost < 0 || p.ReqPrestige < 0 {
			return fmt.Errorf("product %q: negative unlock cost or prestige requirement", p.ID)
		}
	}
	if _, ok := c.Product(c.Starter); !ok {
		return fmt.Errorf("starter product %q not in catalog", c.Starter)
	}
	for _, s := range c.Staff {
		if s.Multiplier <= 1 {
			return fmt.Errorf("staff %q: multiplier must be > 1", s.ID)
		}
		if s.Target != TargetGlobal && !seen[s.Target] {
			return fmt.Errorf("staff %q: unknown target %q", s.ID, s.Target)
		}
	}
	for _, u := range c.Upgrades {
		if u.Cost <= 0 {
			return fmt.Errorf("upgrade %q: cost must be > 0", u.ID)
		}
		if u.Requires != "" && !seen[u.Requires] {
			return fmt.Errorf("upgrade %q: unknown prerequisite %q", u.ID, u.Requires)
		}
		if len(u.Effects) == 0 {
			return fmt.Errorf("upgrade %q: no effects", u.ID)
		}
		for _, e := range u.Effects {
			if e.Value <= 1 {
				return fmt.Errorf("upgrade %q: effect value must be > 1", u.ID)
			}
			if e.Target != TargetGlobal && e.Target != TargetClick && !seen[e.Target] {
				return fmt.Errorf("upgrade %q: unknown effect target %q", u.ID, e.Target)
			}
		}
	}
	if c.Titles[0].Cost != 0 {
		return fmt.Errorf("first title must cost 0")
	}
	for i := 1; i < len(c.Titles); i++ {
		if c.Titles[i].Cost <= c.Titles[i-1].Cost {
			return fmt.Errorf("title costs must be strictly increasing, %q <= %q", c.Titles[i].Name, c.Titles[i-1].Name)
		}
	}
	if len(c.ChatColors) == 0 {
		return fmt.Errorf("catalog has no chat colors")
	}
	for _, v := range c.ChatColors {
		if len(v) != 7 || v[0] != '#' {
			return fmt.Errorf("chat color %q: want #rrggbb", v)
		}
	}
	return nil
}

func (c *Catalog) Product(id string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (c *Catalog) StaffByID(id string) (Staff, bool) {
	for _, s := range c.Staff {
		if s.ID == id {
			return s, true
		}
	}
	return Staff{}, false
}

func (c *Catalog) UpgradeByID(id string) (Upgrade, bool) {
	for _, u := range c.Upgrades {
		if u.ID == id {
			return u, true
		}
	}
	return Upgrade{}, false
}

// ValidChatColor reports whether the color is on the chat palette.
func (c *Catalog) ValidChatColor(color string) bool {
	for _, v := range c.ChatColors {
		if v == color {
			return true
		}
	}
	return false
}

func (c *Catalog) CodeByValue(code string) (Code, bool) {
	for _, cd := range c.Codes {
		if cd.Code == code {
			return cd, true
		}
	}
	return Code{}, false
}

// TitleFor clamps a prestige level into the title ladder.
func (c *Catalog) TitleFor(prestigeLevel int) Title {
	idx := prestigeLevel
	if idx >= len(c.Titles) {
		idx = len(c.Titles) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return c.Titles[idx]
}

// NextTitle returns the next rung above the given prestige level, or false
// when the ladder is exhausted.
func (c *Catalog) NextTitle(prestigeLevel int) (Title, bool) {
	next := prestigeLevel + 1
	if next >= len(c.Titles) {
		return Title{}, false
	}
	return c.Titles[next], true
}
