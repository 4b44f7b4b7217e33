package dto

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// MarshalDetectedErrors serializes error descriptors for storage.
func MarshalDetectedErrors(errs []DetectedError) (datatypes.JSON, error) {
	if len(errs) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(errs)
	if err != nil {
		return nil, err
	}

	return datatypes.JSON(payload), nil
}

func unmarshalDetectedErrors(raw datatypes.JSON, target *[]DetectedError) error {
	return json.Unmarshal(raw, target)
}
