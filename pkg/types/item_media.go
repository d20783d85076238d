package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/campusmart/campusmart-backend/pkg/enums"
)

// ItemImage is one uploaded picture of a listing.
type ItemImage struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// ItemImages is the ordered image list persisted as JSONB.
type ItemImages []ItemImage

// Value marshals the list into JSON for Postgres.
func (i ItemImages) Value() (driver.Value, error) {
	if i == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the list.
func (i *ItemImages) Scan(value interface{}) error {
	raw, err := jsonBytes("item images", value)
	if err != nil {
		return err
	}
	if raw == nil {
		*i = ItemImages{}
		return nil
	}
	result := ItemImages{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*i = result
	return nil
}

// ItemCategories is the category set persisted as JSONB.
type ItemCategories []enums.ItemCategory

// Value marshals the set into JSON for Postgres.
func (c ItemCategories) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the set.
func (c *ItemCategories) Scan(value interface{}) error {
	raw, err := jsonBytes("item categories", value)
	if err != nil {
		return err
	}
	if raw == nil {
		*c = ItemCategories{}
		return nil
	}
	result := ItemCategories{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*c = result
	return nil
}

// Contains reports whether the set holds category.
func (c ItemCategories) Contains(category enums.ItemCategory) bool {
	for _, candidate := range c {
		if candidate == category {
			return true
		}
	}
	return false
}

func jsonBytes(kind string, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%s: unsupported scan type %T", kind, value)
	}
}
