package selection

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"mysterybox/internal/domain"
)

const (
	// minEligiblePrice excludes free or placeholder-priced items.
	minEligiblePrice = 0.01

	// maxPickAttempts bounds the primary pass against pathological inputs
	// where no remaining item fits the budget.
	maxPickAttempts = 1000

	// cheapBias is how many of the cheapest candidates the primary pass
	// draws from while the minimum item count is not yet met. Picking cheap
	// early preserves budget room for the remaining required picks.
	cheapBias = 3

	// valueStopRatio stops the primary pass early once the running total is
	// close enough to the drawn target.
	valueStopRatio = 0.9
)

// ErrNoEligibleItems means the template's filters matched zero catalog rows.
// The caller's remedy is to widen the filters or sync the catalog.
var ErrNoEligibleItems = errors.New("no catalog items match the template filters")

// UnsatisfiableError means eligible items exist but no combination satisfies
// the template's minimum value and item count, even via the fallback pass.
// The diagnostic fields help the caller widen the constraints.
type UnsatisfiableError struct {
	EligibleCount      int
	CheapestPrice      float64
	MostExpensivePrice float64
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf(
		"constraints unsatisfiable: %d eligible items, prices %.2f to %.2f",
		e.EligibleCount, e.CheapestPrice, e.MostExpensivePrice,
	)
}

// Result is a successful selection before persistence.
type Result struct {
	Items      []domain.SelectedItem
	TotalValue float64
	Savings    float64
}

// Selector runs the constrained-random bundle selection. The random source
// is injected so tests can replay exact sequences.
type Selector struct {
	rng *rand.Rand
}

// New creates a Selector. A nil source gets a time-seeded one.
func New(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{rng: rng}
}

// Select picks a subset of the catalog snapshot satisfying the template's
// value and count bounds. It runs a randomized primary pass and, if that
// fails to converge, a deterministic greedy fallback.
func (s *Selector) Select(tpl *domain.BundleTemplate, catalog []domain.CatalogItem) (*Result, error) {
	eligible := Eligible(tpl, catalog)
	if len(eligible) == 0 {
		return nil, ErrNoEligibleItems
	}

	if chosen, ok := s.primaryPass(tpl, eligible); ok {
		return s.buildResult(chosen), nil
	}

	if chosen, ok := fallbackPass(tpl, eligible); ok {
		return s.buildResult(chosen), nil
	}

	return nil, unsatisfiable(eligible)
}

// Eligible filters the catalog snapshot down to items the template allows:
// active, in stock, priced, and passing the type and tag filters.
func Eligible(tpl *domain.BundleTemplate, catalog []domain.CatalogItem) []domain.CatalogItem {
	var out []domain.CatalogItem
	for _, item := range catalog {
		if !item.InStock() || item.Price < minEligiblePrice {
			continue
		}
		if !typeAllowed(tpl, item.ProductType) {
			continue
		}
		if !tagsAllowed(tpl, item.Tags) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// typeAllowed applies the include/exclude product type filters. An empty
// include list allows all types; any exclusion match removes the item.
func typeAllowed(tpl *domain.BundleTemplate, productType string) bool {
	pt := strings.ToLower(strings.TrimSpace(productType))

	for _, excluded := range tpl.ExcludeTypes {
		if pt == strings.ToLower(strings.TrimSpace(excluded)) {
			return false
		}
	}

	if len(tpl.IncludeTypes) == 0 {
		return true
	}
	for _, included := range tpl.IncludeTypes {
		if pt == strings.ToLower(strings.TrimSpace(included)) {
			return true
		}
	}
	return false
}

// tagsAllowed applies the include/exclude tag filters. Matching is
// case-insensitive substring containment, preserving legacy behavior.
func tagsAllowed(tpl *domain.BundleTemplate, tags []string) bool {
	if anyTagMatches(tags, tpl.ExcludeTags) {
		return false
	}
	if len(tpl.IncludeTags) == 0 {
		return true
	}
	return anyTagMatches(tags, tpl.IncludeTags)
}

func anyTagMatches(itemTags, filterTags []string) bool {
	for _, filter := range filterTags {
		f := strings.ToLower(strings.TrimSpace(filter))
		if f == "" {
			continue
		}
		for _, tag := range itemTags {
			if strings.Contains(strings.ToLower(tag), f) {
				return true
			}
		}
	}
	return false
}

// primaryPass draws a random target value and item count, then greedily
// picks items that fit the remaining budget. While the minimum item count
// is unmet, picks are biased toward the cheapest candidates.
func (s *Selector) primaryPass(tpl *domain.BundleTemplate, eligible []domain.CatalogItem) ([]domain.CatalogItem, bool) {
	targetValue := tpl.MinValue + s.rng.Float64()*(tpl.MaxValue-tpl.MinValue)
	targetItems := tpl.MinItems + s.rng.Intn(tpl.MaxItems-tpl.MinItems+1)

	var chosen []domain.CatalogItem
	picked := make(map[int64]bool)
	total := 0.0

	for attempt := 0; attempt < maxPickAttempts; attempt++ {
		if len(chosen) >= targetItems {
			break
		}
		if len(chosen) >= tpl.MinItems && total >= valueStopRatio*targetValue {
			break
		}

		budget := targetValue - total
		candidates := candidatesWithin(eligible, picked, budget)
		if len(candidates) == 0 {
			break
		}

		var pick domain.CatalogItem
		if len(chosen) < tpl.MinItems {
			sort.Slice(candidates, func(i, j int) bool {
				return candidates[i].Price < candidates[j].Price
			})
			n := cheapBias
			if len(candidates) < n {
				n = len(candidates)
			}
			pick = candidates[s.rng.Intn(n)]
		} else {
			pick = candidates[s.rng.Intn(len(candidates))]
		}

		chosen = append(chosen, pick)
		picked[pick.ExternalID] = true
		total += pick.Price
	}

	if total >= tpl.MinValue && len(chosen) >= tpl.MinItems {
		return chosen, true
	}
	return nil, false
}

// fallbackPass is the deterministic recovery strategy: take the most
// expensive items that fit under the value ceiling until both minimums are
// met, then pad with the cheapest remaining items if the count is short.
// A pick is only accepted if the minimum item count stays reachable with
// the cheapest items still available, so one big pick cannot strand the
// bundle below the count floor.
func fallbackPass(tpl *domain.BundleTemplate, eligible []domain.CatalogItem) ([]domain.CatalogItem, bool) {
	byPriceDesc := make([]domain.CatalogItem, len(eligible))
	copy(byPriceDesc, eligible)
	sort.Slice(byPriceDesc, func(i, j int) bool {
		return byPriceDesc[i].Price > byPriceDesc[j].Price
	})
	byPriceAsc := make([]domain.CatalogItem, len(eligible))
	copy(byPriceAsc, eligible)
	sort.Slice(byPriceAsc, func(i, j int) bool {
		return byPriceAsc[i].Price < byPriceAsc[j].Price
	})

	var chosen []domain.CatalogItem
	picked := make(map[int64]bool)
	total := 0.0

	for _, item := range byPriceDesc {
		if total >= tpl.MinValue && len(chosen) >= tpl.MinItems {
			break
		}
		if len(chosen) >= tpl.MaxItems {
			break
		}
		if total+item.Price > tpl.MaxValue {
			continue
		}
		if need := tpl.MinItems - len(chosen) - 1; need > 0 {
			pad, ok := cheapestPad(byPriceAsc, picked, item.ExternalID, need)
			if !ok || total+item.Price+pad > tpl.MaxValue {
				continue
			}
		}
		chosen = append(chosen, item)
		picked[item.ExternalID] = true
		total += item.Price
	}

	if len(chosen) < tpl.MinItems {
		for _, item := range byPriceAsc {
			if len(chosen) >= tpl.MinItems || len(chosen) >= tpl.MaxItems {
				break
			}
			if picked[item.ExternalID] || total+item.Price > tpl.MaxValue {
				continue
			}
			chosen = append(chosen, item)
			picked[item.ExternalID] = true
			total += item.Price
		}
	}

	if total >= tpl.MinValue && len(chosen) >= tpl.MinItems {
		return chosen, true
	}
	return nil, false
}

// cheapestPad sums the prices of the need cheapest unpicked items, skipping
// the candidate under consideration. ok is false when fewer than need items
// remain.
func cheapestPad(byPriceAsc []domain.CatalogItem, picked map[int64]bool, candidateID int64, need int) (float64, bool) {
	sum := 0.0
	for _, item := range byPriceAsc {
		if need == 0 {
			break
		}
		if picked[item.ExternalID] || item.ExternalID == candidateID {
			continue
		}
		sum += item.Price
		need--
	}
	if need > 0 {
		return 0, false
	}
	return sum, true
}

// buildResult resolves a variant for each chosen item and computes totals.
// Savings compare against the compare-at price where one exists.
func (s *Selector) buildResult(chosen []domain.CatalogItem) *Result {
	res := &Result{Items: make([]domain.SelectedItem, 0, len(chosen))}
	compareTotal := 0.0

	for _, item := range chosen {
		res.Items = append(res.Items, domain.SelectedItem{
			ExternalID:        item.ExternalID,
			ExternalVariantID: s.chooseVariant(item),
			Title:             item.Title,
			PriceAtSelection:  item.Price,
		})
		res.TotalValue += item.Price

		if item.CompareAtPrice != nil && *item.CompareAtPrice > item.Price {
			compareTotal += *item.CompareAtPrice
		} else {
			compareTotal += item.Price
		}
	}

	if savings := compareTotal - res.TotalValue; savings > 0 {
		res.Savings = savings
	}
	return res
}

// chooseVariant prefers a uniformly random in-stock variant, falling back to
// the first variant when none have stock.
func (s *Selector) chooseVariant(item domain.CatalogItem) int64 {
	if len(item.Variants) == 0 {
		return 0
	}

	var inStock []domain.Variant
	for _, v := range item.Variants {
		if v.StockQuantity > 0 {
			inStock = append(inStock, v)
		}
	}
	if len(inStock) == 0 {
		return item.Variants[0].ExternalID
	}
	return inStock[s.rng.Intn(len(inStock))].ExternalID
}

func candidatesWithin(eligible []domain.CatalogItem, picked map[int64]bool, budget float64) []domain.CatalogItem {
	var out []domain.CatalogItem
	for _, item := range eligible {
		if picked[item.ExternalID] || item.Price > budget {
			continue
		}
		out = append(out, item)
	}
	return out
}

func unsatisfiable(eligible []domain.CatalogItem) *UnsatisfiableError {
	e := &UnsatisfiableError{EligibleCount: len(eligible)}
	for i, item := range eligible {
		if i == 0 || item.Price < e.CheapestPrice {
			e.CheapestPrice = item.Price
		}
		if item.Price > e.MostExpensivePrice {
			e.MostExpensivePrice = item.Price
		}
	}
	return e
}
