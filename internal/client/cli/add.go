package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agrisync/agrisync/internal/models"
)

func (c *Cli) runAdd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing record kind. Usage: agrisync add <farm|plot|observation|livestock|transaction>")
	}
	kind := args[0]
	if !models.KnownKind(kind) {
		return fmt.Errorf("unknown record kind: %s", kind)
	}

	recSvc, err := c.openRecords(ctx)
	if err != nil {
		return err
	}

	var payload models.Payload
	switch kind {
	case models.KindFarm:
		payload, err = c.promptFarm()
	case models.KindPlot:
		payload, err = c.promptPlot()
	case models.KindObservation:
		payload, err = c.promptObservation()
	case models.KindLivestock:
		payload, err = c.promptLivestock()
	case models.KindTransaction:
		payload, err = c.promptTransaction()
	}
	if err != nil {
		return err
	}

	record, err := recSvc.Create(ctx, kind, payload)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", kind, err)
	}

	c.io.Println()
	c.io.Printf("✓ %s saved locally.\n", kind)
	c.io.Printf("ID: %s\n", record.RecordID)
	c.io.Println("It will reach the coordinator on the next sync.")

	return nil
}

func (c *Cli) promptFarm() (models.Payload, error) {
	payload := models.Payload{}
	if err := c.askString(payload, "name", "Farm name: ", true); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "farm_type", "Farm type (crop, livestock, mixed, aquaculture, forestry): ", true); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "farming_system", "Farming system (optional): ", false); err != nil {
		return nil, err
	}
	if err := c.askFloat(payload, "total_area_ha", "Total area in hectares (optional): "); err != nil {
		return nil, err
	}
	return payload, c.askNote(payload, "notes")
}

func (c *Cli) promptPlot() (models.Payload, error) {
	payload := models.Payload{}
	if err := c.askString(payload, "farm_id", "Farm ID: ", true); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "name", "Plot name: ", true); err != nil {
		return nil, err
	}
	if err := c.askFloat(payload, "area_ha", "Area in hectares (optional): "); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "soil_type", "Soil type (optional: clay, sandy, loam, silt, laterite, volcanic, alluvial): ", false); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "crop_variety", "Crop variety (optional): ", false); err != nil {
		return nil, err
	}
	return payload, c.askNote(payload, "notes")
}

func (c *Cli) promptObservation() (models.Payload, error) {
	payload := models.Payload{}
	if err := c.askString(payload, "plot_id", "Plot ID: ", true); err != nil {
		return nil, err
	}

	today := time.Now().Format("2006-01-02")
	date, err := c.io.ReadInput(fmt.Sprintf("Date observed [%s]: ", today))
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = today
	}
	payload["observed_on"] = date

	if err := c.askString(payload, "category", "Category (growth, pest, disease, soil, water, weather): ", true); err != nil {
		return nil, err
	}
	if err := c.askInt(payload, "severity", "Severity 0-5 (optional): "); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "details", "Details (optional): ", false); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Cli) promptLivestock() (models.Payload, error) {
	payload := models.Payload{}
	if err := c.askString(payload, "farm_id", "Farm ID: ", true); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "species", "Species: ", true); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "breed", "Breed (optional): ", false); err != nil {
		return nil, err
	}
	if err := c.askInt(payload, "headcount", "Headcount (optional): "); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "health_status", "Health status (optional): ", false); err != nil {
		return nil, err
	}
	return payload, c.askNote(payload, "notes")
}

func (c *Cli) promptTransaction() (models.Payload, error) {
	payload := models.Payload{}
	if err := c.askString(payload, "farm_id", "Farm ID: ", true); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "kind", "Type (sale, purchase): ", true); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "item", "Item: ", true); err != nil {
		return nil, err
	}
	if err := c.askFloat(payload, "quantity", "Quantity: "); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "unit", "Unit (optional, e.g. kg, bags): ", false); err != nil {
		return nil, err
	}
	if err := c.askFloat(payload, "amount", "Amount (optional): "); err != nil {
		return nil, err
	}
	if err := c.askString(payload, "currency", "Currency (optional, 3 letters): ", false); err != nil {
		return nil, err
	}
	return payload, nil
}

// askString prompts for a string field; empty optional answers are left
// out of the payload entirely.
func (c *Cli) askString(payload models.Payload, field, prompt string, required bool) error {
	value, err := c.io.ReadInput(prompt)
	if err != nil {
		return err
	}
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	payload[field] = value
	return nil
}

func (c *Cli) askFloat(payload models.Payload, field, prompt string) error {
	value, err := c.io.ReadInput(prompt)
	if err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s must be a number: %w", field, err)
	}
	payload[field] = f
	return nil
}

func (c *Cli) askInt(payload models.Payload, field, prompt string) error {
	value, err := c.io.ReadInput(prompt)
	if err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be a whole number: %w", field, err)
	}
	payload[field] = n
	return nil
}

// askNote optionally appends a first entry to a list-valued field. Lists
// merge by union across devices, so notes from two phones both survive.
func (c *Cli) askNote(payload models.Payload, field string) error {
	value, err := c.io.ReadInput("Note (optional): ")
	if err != nil {
		return err
	}
	if value != "" {
		payload[field] = []any{value}
	}
	return nil
}
