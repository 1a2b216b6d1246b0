// Package main writes JSON Schema documents for the content YAML files so
// editors can validate NPC templates, spawn directives, skills and territories.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/cory-johannsen/subjugate/internal/game/combat"
	"github.com/cory-johannsen/subjugate/internal/game/npc"
	"github.com/cory-johannsen/subjugate/internal/game/territory"
)

// spawnsFile mirrors the layout of content/spawns.yaml.
type spawnsFile struct {
	Spawns []npc.Spawn `json:"spawns"`
}

// skillsFile mirrors the layout of content/skills.yaml.
type skillsFile struct {
	Skills []combat.Skill `json:"skills"`
}

type document struct {
	file        string
	title       string
	description string
	value       any
}

var documents = []document{
	{"npc.schema.json", "NPC Template", "One file per template under content/npcs.", new(npc.Template)},
	{"spawns.schema.json", "Spawn Directives", "Initial NPC population in content/spawns.yaml.", new(spawnsFile)},
	{"skills.schema.json", "Skill Catalog", "Combat skills in content/skills.yaml.", new(skillsFile)},
	{"territory.schema.json", "Territory", "One file per territory under content/territories.", new(territory.Definition)},
}

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "content/schema", "directory to write the JSON schemas into")
	flag.Parse()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create schema directory: %v\n", err)
		os.Exit(1)
	}
	for _, doc := range documents {
		path := filepath.Join(outDir, doc.file)
		if err := writeSchema(path, buildSchema(doc)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", path)
	}
}

func buildSchema(doc document) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(doc.value)
	schema.Title = doc.title
	schema.Description = doc.description
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
