package reference

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/claim"
	"github.com/smallbiznis/nanolite/internal/reference/domain"
)

// Keys collects the reference ids a batch of records points at so they can
// be resolved with one query per table.
type Keys struct {
	ids      map[domain.Table][]snowflake.ID
	regions  []string
	villages []string
}

func (k *Keys) Add(t domain.Table, ids ...snowflake.ID) {
	if k.ids == nil {
		k.ids = make(map[domain.Table][]snowflake.ID)
	}
	for _, id := range ids {
		if id != 0 {
			k.ids[t] = append(k.ids[t], id)
		}
	}
}

func (k *Keys) AddOptional(t domain.Table, id *snowflake.ID) {
	if id != nil {
		k.Add(t, *id)
	}
}

func (k *Keys) AddItems(items []claim.LineItem) {
	for _, item := range items {
		k.Add(domain.TableBrands, item.BrandID)
		k.Add(domain.TableCategories, item.CategoryID)
		k.Add(domain.TableProducts, item.ProductID)
	}
}

func (k *Keys) AddAddress(a claim.Address) {
	for _, p := range a.Parts {
		k.regions = append(k.regions, p.Province, p.City, p.District, p.Village)
		if p.PostalCode == "" && p.Village != "" {
			k.villages = append(k.villages, p.Village)
		}
	}
}

// Lookup is a resolved snapshot of reference names. It implements
// claim.RegionNamer.
type Lookup struct {
	names    map[domain.Table]map[snowflake.ID]string
	products map[snowflake.ID]domain.Product
	regions  map[string]string
	postal   map[string]string
}

// Load resolves every key in keys.
func Load(ctx context.Context, repo domain.Repository, companyID snowflake.ID, keys Keys) (*Lookup, error) {
	l := &Lookup{
		names:    make(map[domain.Table]map[snowflake.ID]string),
		products: make(map[snowflake.ID]domain.Product),
		regions:  make(map[string]string),
	}
	for t, ids := range keys.ids {
		if t == domain.TableProducts {
			products, err := repo.Products(ctx, companyID, ids)
			if err != nil {
				return nil, fmt.Errorf("load products: %w", err)
			}
			names := make(map[snowflake.ID]string, len(products))
			for _, p := range products {
				l.products[p.ID] = p
				names[p.ID] = p.Name
			}
			l.names[t] = names
			continue
		}
		names, err := repo.Names(ctx, t, companyID, ids)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", t, err)
		}
		l.names[t] = names
	}

	regions, err := repo.RegionNames(ctx, keys.regions)
	if err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}
	for _, r := range regions {
		l.regions[r.Kind+":"+r.Code] = r.Name
	}

	l.postal, err = repo.PostalCodes(ctx, keys.villages)
	if err != nil {
		return nil, fmt.Errorf("load postal codes: %w", err)
	}
	return l, nil
}

// Name returns the display name of id in t, or "" when unknown.
func (l *Lookup) Name(t domain.Table, id snowflake.ID) string {
	if l == nil {
		return ""
	}
	return l.names[t][id]
}

func (l *Lookup) OptionalName(t domain.Table, id *snowflake.ID) string {
	if id == nil {
		return ""
	}
	return l.Name(t, *id)
}

// Has reports whether id exists in t.
func (l *Lookup) Has(t domain.Table, id snowflake.ID) bool {
	if l == nil {
		return false
	}
	_, ok := l.names[t][id]
	return ok
}

func (l *Lookup) Product(id snowflake.ID) (domain.Product, bool) {
	if l == nil {
		return domain.Product{}, false
	}
	p, ok := l.products[id]
	return p, ok
}

// Colors is a claim.ColorLookup over the loaded products.
func (l *Lookup) Colors(id snowflake.ID) []string {
	p, ok := l.Product(id)
	if !ok {
		return nil
	}
	return p.Colors
}

// Price returns the catalog price of a loaded product.
func (l *Lookup) Price(id snowflake.ID) (int64, bool) {
	p, ok := l.Product(id)
	if !ok {
		return 0, false
	}
	return p.Price, true
}

func (l *Lookup) RegionName(kind claim.RegionKind, code string) string {
	if l == nil {
		return ""
	}
	return l.regions[string(kind)+":"+code]
}

func (l *Lookup) PostalCode(villageCode string) string {
	if l == nil {
		return ""
	}
	return l.postal[villageCode]
}
