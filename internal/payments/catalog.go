package payments

import (
	"fmt"
	"strconv"
	"strings"
)

// CreditPackage is a purchasable bundle of credits.
type CreditPackage struct {
	PriceID string `json:"priceId"`
	Credits int    `json:"credits"`
	Label   string `json:"label"`
}

// DefaultPackages are the refill bundles offered in the chat UI.
var DefaultPackages = []CreditPackage{
	{PriceID: "price_1QzkhrC6GhLmHVjlQY9FTGxG", Credits: 3, Label: "3 Credits - 5 RON"},
	{PriceID: "price_1QzhQ0C6GhLmHVjlaZocKJi0", Credits: 10, Label: "10 Credits - 10 RON"},
	{PriceID: "price_1QzhQ0C6GhLmHVjlxhHXptcV", Credits: 25, Label: "25 Credits - 20 RON"},
	{PriceID: "price_1QzhQ0C6GhLmHVjlzaboVGVo", Credits: 50, Label: "50 Credits - 40 RON"},
}

type Catalog struct {
	packages []CreditPackage
	byPrice  map[string]CreditPackage
}

func NewCatalog(packages []CreditPackage) *Catalog {
	c := &Catalog{
		packages: packages,
		byPrice:  make(map[string]CreditPackage, len(packages)),
	}
	for _, p := range packages {
		c.byPrice[p.PriceID] = p
	}
	return c
}

// ParseCatalog reads "price_id:credits" pairs separated by commas.
// An empty value yields DefaultPackages.
func ParseCatalog(raw string) (*Catalog, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewCatalog(DefaultPackages), nil
	}

	var packages []CreditPackage
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		priceID, rawCredits, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(priceID) == "" {
			return nil, fmt.Errorf("invalid credit package %q", entry)
		}
		credits, err := strconv.Atoi(strings.TrimSpace(rawCredits))
		if err != nil || credits <= 0 {
			return nil, fmt.Errorf("invalid credits in credit package %q", entry)
		}
		packages = append(packages, CreditPackage{
			PriceID: strings.TrimSpace(priceID),
			Credits: credits,
			Label:   fmt.Sprintf("%d Credits", credits),
		})
	}
	return NewCatalog(packages), nil
}

func (c *Catalog) Packages() []CreditPackage {
	return c.packages
}

// Lookup returns the package for a price id.
func (c *Catalog) Lookup(priceID string) (CreditPackage, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}
