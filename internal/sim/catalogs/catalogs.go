package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	VariantMilitary = "military"
	VariantExtended = "extended"
)

const (
	QuestActivity  = "activity"
	QuestPurchase  = "purchase"
	QuestBattleWin = "battle_win"
)

// Catalog is the static table of everything a player can buy, hire or be
// asked to do. It is read-only after Load.
type Catalog struct {
	Variant   string
	Assets    AssetCatalog
	Materials MaterialCatalog
	Units     UnitCatalog
	Quests    QuestCatalog
	Digest    string
}

type AssetCatalog struct {
	Order []string
	ByID  map[string]AssetDef
}

type AssetDef struct {
	ID          string           `yaml:"id" json:"id"`
	DisplayName string           `yaml:"name" json:"name"`
	Cost        int64            `yaml:"cost" json:"cost"`
	Power       int64            `yaml:"power" json:"power"`
	Materials   map[string]int64 `yaml:"materials,omitempty" json:"materials,omitempty"`
}

type MaterialCatalog struct {
	Order []string
	ByID  map[string]MaterialDef
}

type MaterialDef struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"name" json:"name"`
}

type UnitCatalog struct {
	Order []string
	ByID  map[string]UnitDef
}

// UnitDef is a worker unit. Units have no combat power; each one yields
// materials on every harvest.
type UnitDef struct {
	ID          string           `yaml:"id" json:"id"`
	DisplayName string           `yaml:"name" json:"name"`
	Cost        int64            `yaml:"cost" json:"cost"`
	Yields      map[string]int64 `yaml:"yields" json:"yields"`
}

type QuestCatalog struct {
	Order []string
	ByID  map[string]QuestTemplate
}

type QuestTemplate struct {
	ID     string `yaml:"id" json:"id"`
	Title  string `yaml:"title" json:"title"`
	Type   string `yaml:"type" json:"type"`
	Target int64  `yaml:"target" json:"target"`
	Reward int64  `yaml:"reward" json:"reward"`
}

type fileV1 struct {
	Variant   string          `yaml:"variant" json:"variant"`
	Assets    []AssetDef      `yaml:"assets" json:"assets"`
	Materials []MaterialDef   `yaml:"materials,omitempty" json:"materials,omitempty"`
	Units     []UnitDef       `yaml:"units,omitempty" json:"units,omitempty"`
	Quests    []QuestTemplate `yaml:"quests,omitempty" json:"quests,omitempty"`
}

// Load reads a catalog file. The file must define at least one asset.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileV1
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog.yaml: %w", err)
	}
	c, err := build(f)
	if err != nil {
		return nil, fmt.Errorf("catalog.yaml: %w", err)
	}
	return c, nil
}

// ForVariant returns one of the built-in catalogs.
func ForVariant(variant string) (*Catalog, error) {
	switch strings.ToLower(strings.TrimSpace(variant)) {
	case "", VariantMilitary:
		return build(militaryFile())
	case VariantExtended:
		return build(extendedFile())
	default:
		return nil, fmt.Errorf("unknown catalog variant %q", variant)
	}
}

// Default returns the built-in military catalog.
func Default() *Catalog {
	c, err := build(militaryFile())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Asset(id string) (AssetDef, bool) {
	d, ok := c.Assets.ByID[id]
	return d, ok
}

func (c *Catalog) Unit(id string) (UnitDef, bool) {
	d, ok := c.Units.ByID[id]
	return d, ok
}

// AssetList returns the asset definitions in catalog order.
func (c *Catalog) AssetList() []AssetDef {
	out := make([]AssetDef, 0, len(c.Assets.Order))
	for _, id := range c.Assets.Order {
		out = append(out, c.Assets.ByID[id])
	}
	return out
}

func (c *Catalog) UnitList() []UnitDef {
	out := make([]UnitDef, 0, len(c.Units.Order))
	for _, id := range c.Units.Order {
		out = append(out, c.Units.ByID[id])
	}
	return out
}

func (c *Catalog) QuestList() []QuestTemplate {
	out := make([]QuestTemplate, 0, len(c.Quests.Order))
	for _, id := range c.Quests.Order {
		out = append(out, c.Quests.ByID[id])
	}
	return out
}

func build(f fileV1) (*Catalog, error) {
	c := &Catalog{
		Variant:   strings.ToLower(strings.TrimSpace(f.Variant)),
		Assets:    AssetCatalog{ByID: map[string]AssetDef{}},
		Materials: MaterialCatalog{ByID: map[string]MaterialDef{}},
		Units:     UnitCatalog{ByID: map[string]UnitDef{}},
		Quests:    QuestCatalog{ByID: map[string]QuestTemplate{}},
	}
	if c.Variant == "" {
		c.Variant = VariantMilitary
	}
	if len(f.Assets) == 0 {
		return nil, fmt.Errorf("no assets defined")
	}

	for _, m := range f.Materials {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("material with empty id")
		}
		if _, dup := c.Materials.ByID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate material %q", m.ID)
		}
		if m.DisplayName == "" {
			m.DisplayName = m.ID
		}
		c.Materials.Order = append(c.Materials.Order, m.ID)
		c.Materials.ByID[m.ID] = m
	}

	for _, a := range f.Assets {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return nil, fmt.Errorf("asset with empty id")
		}
		if _, dup := c.Assets.ByID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate asset %q", a.ID)
		}
		if a.Cost <= 0 || a.Power <= 0 {
			return nil, fmt.Errorf("asset %q: cost and power must be positive", a.ID)
		}
		for m, n := range a.Materials {
			if _, ok := c.Materials.ByID[m]; !ok {
				return nil, fmt.Errorf("asset %q: unknown material %q", a.ID, m)
			}
			if n <= 0 {
				return nil, fmt.Errorf("asset %q: material %q amount must be positive", a.ID, m)
			}
		}
		if a.DisplayName == "" {
			a.DisplayName = a.ID
		}
		c.Assets.Order = append(c.Assets.Order, a.ID)
		c.Assets.ByID[a.ID] = a
	}

	for _, u := range f.Units {
		u.ID = strings.TrimSpace(u.ID)
		if u.ID == "" {
			return nil, fmt.Errorf("unit with empty id")
		}
		if _, dup := c.Units.ByID[u.ID]; dup {
			return nil, fmt.Errorf("duplicate unit %q", u.ID)
		}
		if u.Cost <= 0 {
			return nil, fmt.Errorf("unit %q: cost must be positive", u.ID)
		}
		for m, n := range u.Yields {
			if _, ok := c.Materials.ByID[m]; !ok {
				return nil, fmt.Errorf("unit %q: unknown material %q", u.ID, m)
			}
			if n <= 0 {
				return nil, fmt.Errorf("unit %q: yield of %q must be positive", u.ID, m)
			}
		}
		if u.DisplayName == "" {
			u.DisplayName = u.ID
		}
		c.Units.Order = append(c.Units.Order, u.ID)
		c.Units.ByID[u.ID] = u
	}

	for _, q := range f.Quests {
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			return nil, fmt.Errorf("quest with empty id")
		}
		if _, dup := c.Quests.ByID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate quest %q", q.ID)
		}
		switch q.Type {
		case QuestActivity, QuestPurchase, QuestBattleWin:
		default:
			return nil, fmt.Errorf("quest %q: bad type %q", q.ID, q.Type)
		}
		if q.Target <= 0 || q.Reward < 0 {
			return nil, fmt.Errorf("quest %q: target must be positive and reward non-negative", q.ID)
		}
		if q.Title == "" {
			q.Title = q.ID
		}
		c.Quests.Order = append(c.Quests.Order, q.ID)
		c.Quests.ByID[q.ID] = q
	}

	// Digest over the canonical JSON form so that key order in the source
	// file does not matter.
	canon := fileV1{Variant: c.Variant}
	canon.Assets = c.AssetList()
	for _, id := range c.Materials.Order {
		canon.Materials = append(canon.Materials, c.Materials.ByID[id])
	}
	canon.Units = c.UnitList()
	canon.Quests = c.QuestList()
	b, err := json.Marshal(canon)
	if err != nil {
		return nil, err
	}
	c.Digest = sha256Hex(b)
	return c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
