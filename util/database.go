package util

import (
	"encoding/json"

	"github.com/jinzhu/gorm/dialects/postgres"
)

func EncodeStructTypeToPostgresJsonb(structType interface{}) (*postgres.Jsonb, error) {
	structTypeAsJSON, err := json.Marshal(structType)
	if err != nil {
		return nil, err
	}

	return &postgres.Jsonb{RawMessage: json.RawMessage(structTypeAsJSON)}, nil
}

func DecodePostgresJsonbToStructType(sourceJsonb *postgres.Jsonb, structType interface{}) error {
	if IsEmptyPostgresJsonb(sourceJsonb) {
		return nil
	}

	return json.Unmarshal(sourceJsonb.RawMessage, structType)
}

func IsEmptyPostgresJsonb(jsonb *postgres.Jsonb) bool {
	if jsonb == nil {
		return true
	}

	jsonbString := string(jsonb.RawMessage)
	return jsonbString == "" || jsonbString == "null" || jsonbString == "{}" || jsonbString == "[]"
}
