package mapper

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// encodeJSON stores nil and empty values as SQL NULL
func encodeJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}

func decodeJSON[T any](raw datatypes.JSON) *T {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}
