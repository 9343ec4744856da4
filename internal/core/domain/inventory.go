package domain

// Inventory is the singleton index of listed assets. Assets holds each
// listed mint exactly once, in listing order; membership must always match
// the set of existing AssetInfo records.
type Inventory struct {
	Authority string
	Assets    []string
}

func NewInventory(authority string) *Inventory {
	return &Inventory{Authority: authority}
}

// HasAsset reports whether mint is currently listed.
func (inv *Inventory) HasAsset(mint string) bool {
	for _, m := range inv.Assets {
		if m == mint {
			return true
		}
	}
	return false
}

// AddAsset appends mint to the index.
func (inv *Inventory) AddAsset(mint string) error {
	if inv.HasAsset(mint) {
		return ErrDuplicateAsset
	}
	inv.Assets = append(inv.Assets, mint)
	return nil
}

// RemoveAsset removes mint from the index, preserving listing order.
func (inv *Inventory) RemoveAsset(mint string) error {
	for i, m := range inv.Assets {
		if m == mint {
			inv.Assets = append(inv.Assets[:i], inv.Assets[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
