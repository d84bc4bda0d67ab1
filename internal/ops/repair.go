package ops

import (
	"context"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/xmlstore"
)

// RepairInput contains parameters for the Repair operation.
type RepairInput struct {
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// Validate implements validation.Validatable.
func (in RepairInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Path, validation.Required),
	)
}

// RepairOutput contains the result of the Repair operation.
type RepairOutput struct {
	Path    string            `json:"path"`
	Repairs []xmlstore.Repair `json:"repairs"`
	Written bool              `json:"written"`
}

// Repair loads a document, which gives every node with a duplicated ID a
// fresh one, and rewrites it in place when anything changed. A document
// without duplicates is not rewritten.
func Repair(ctx context.Context, cfg *config.Config, input RepairInput) (*RepairOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.DryRun {
		if err := ValidatePath(input.Path, PathCheckWrite, cfg); err != nil {
			return nil, err
		}
	}

	doc, err := LoadDocument(ctx, cfg, input.Path)
	if err != nil {
		return nil, err
	}

	out := &RepairOutput{Path: input.Path, Repairs: doc.Storage.Repairs()}
	if out.Repairs == nil {
		out.Repairs = []xmlstore.Repair{}
	}
	if len(out.Repairs) == 0 || input.DryRun {
		return out, nil
	}

	if err := doc.Save(ctx, cfg); err != nil {
		return nil, err
	}
	out.Written = true
	slog.Info("document repaired", "path", input.Path, "repairs", len(out.Repairs))
	return out, nil
}
