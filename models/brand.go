package models

// Brand is a brand record shown in the brand directory.
type Brand struct {
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Website     string          `json:"website"`
	Status      Status          `json:"status"`
	Featured    bool            `json:"featured"`
	Logo        *AssetReference `json:"logo,omitempty"`
}

func (Brand) Kind() Kind { return KindBrand }
