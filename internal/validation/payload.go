// Package validation enforces the per-kind payload schemas at the API
// boundary. The sync engine carries payloads as opaque maps; this is the
// one place domain shape is checked, both on local writes and on the
// coordinator before a change is accepted.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/agrisync/agrisync/internal/models"
)

var validate = validator.New()

// Payload checks that payload matches the schema for the given record kind.
// Unknown fields are rejected so a typo'd field name cannot silently skip
// the merge rules for its intended field.
func Payload(kind string, payload models.Payload) error {
	if !models.KnownKind(kind) {
		return fmt.Errorf("unknown record kind %q", kind)
	}
	if payload == nil {
		return fmt.Errorf("payload is required for kind %q", kind)
	}

	target, err := schemaFor(kind)
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("payload not serializable: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("payload does not match %s schema: %w", kind, err)
	}

	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("invalid %s payload: %w", kind, err)
	}

	return nil
}

func schemaFor(kind string) (any, error) {
	switch kind {
	case models.KindFarm:
		return &models.FarmPayload{}, nil
	case models.KindPlot:
		return &models.PlotPayload{}, nil
	case models.KindObservation:
		return &models.ObservationPayload{}, nil
	case models.KindLivestock:
		return &models.LivestockPayload{}, nil
	case models.KindTransaction:
		return &models.TransactionPayload{}, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}
