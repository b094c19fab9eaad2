package legacy

import (
	"context"
	"encoding/json"

	"github.com/itchyny/gojq"

	"github.com/rendis/listwizard/pkg/schema"
)

// upgradeV1 turns a version-1 draft (sections at the top level, homeFacts,
// currentStep) into the current document shape. Current documents pass
// through unchanged.
const upgradeV1 = `
if (.version // 1) >= 2 then . else
  (.currentStep // .lastStep // "") as $last
  | (.updatedAt // null) as $updated
  | (del(.id, .version, .currentStep, .lastStep, .updatedAt, .sections)
     | if has("homeFacts") then
         .propertySpecs = ((.propertySpecs // {}) + .homeFacts) | del(.homeFacts)
       else . end
     | if (.address | type) == "string" then
         .address = {value: {line1: .address}}
       elif (.address | type) == "object" and ((.address | has("value")) | not) then
         .address = {value: .address}
       else . end
     | if has("occupancyStatus") then
         .occupancy = ((.occupancy // {}) + {status: .occupancyStatus}) | del(.occupancyStatus)
       else . end
     | with_entries(select(.value | type == "object"))) as $flat
  | {id: (.id // ""), version: $version, sections: ((.sections // {}) + $flat), lastStep: $last}
  | if $updated != null then .updatedAt = $updated else . end
  | if .lastStep == "" then del(.lastStep) else . end
  | if .id == "" then del(.id) else . end
end
`

// Migrator upgrades persisted draft documents. The compiled program is
// immutable, so a Migrator is safe for concurrent use.
type Migrator struct {
	code *gojq.Code
}

// NewMigrator compiles the upgrade program.
func NewMigrator() (*Migrator, error) {
	query, err := gojq.Parse(upgradeV1)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "parse draft upgrade program").WithCause(err)
	}
	code, err := gojq.Compile(query, gojq.WithVariables([]string{"$version"}))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "compile draft upgrade program").WithCause(err)
	}
	return &Migrator{code: code}, nil
}

// Migrate upgrades a decoded JSON document.
func (m *Migrator) Migrate(ctx context.Context, doc map[string]any) (map[string]any, error) {
	iter := m.code.RunWithContext(ctx, doc, schema.DraftVersion)
	v, ok := iter.Next()
	if !ok {
		return nil, schema.NewError(schema.ErrCodeMigration, "draft upgrade produced no output")
	}
	if err, isErr := v.(error); isErr {
		return nil, schema.NewErrorf(schema.ErrCodeMigration, "draft upgrade failed: %s", err.Error()).WithCause(err)
	}
	out, ok := v.(map[string]any)
	if !ok {
		return nil, schema.NewError(schema.ErrCodeMigration, "draft upgrade did not produce an object")
	}
	return out, nil
}

// MigrateJSON decodes, upgrades and re-decodes a draft document.
func (m *Migrator) MigrateJSON(ctx context.Context, raw []byte) (*schema.DraftRecord, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "draft is not a JSON object").WithCause(err)
	}
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "draft is not a JSON object")
	}
	upgraded, err := m.Migrate(ctx, doc)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(upgraded)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeMigration, "encode upgraded draft").WithCause(err)
	}
	d := schema.NewDraftRecord("")
	if err := json.Unmarshal(b, d); err != nil {
		return nil, schema.NewError(schema.ErrCodeMigration, "decode upgraded draft").WithCause(err)
	}
	if d.Sections == nil {
		d.Sections = make(map[string]schema.Section)
	}
	return d, nil
}
