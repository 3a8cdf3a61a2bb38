package common

import (
	"github.com/google/uuid"
)

// NewRecordID generates a result record ID. Format: res_<uuid>
func NewRecordID() string {
	return "res_" + uuid.New().String()
}

// NewRunID generates a batch run ID. Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}
