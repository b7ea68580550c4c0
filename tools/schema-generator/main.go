// Command schema-generator writes the JSON schemas editors use to validate
// viewsync.yml: the file itself and its "logging" extension section.
//
//	go run ./tools/schema-generator -out schema/definitions
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/vargaseous/sec-mcptest/config"
	"github.com/vargaseous/sec-mcptest/logging"
)

func main() {
	outDir := flag.String("out", filepath.Join("schema", "definitions"), "output directory")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	configSchema, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating config schema: %v", err)
	}
	write(filepath.Join(*outDir, "viewsync.schema.json"), configSchema)

	loggingSchema, err := generateLoggingSchema()
	if err != nil {
		log.Fatalf("Error generating logging schema: %v", err)
	}
	write(filepath.Join(*outDir, "logging.schema.json"), loggingSchema)
}

func generateLoggingSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	schema := r.Reflect(&logging.Config{})
	schema.Title = "viewsync logging configuration"
	schema.Description = "Schema for the extensions.logging section of viewsync.yml."
	// Every logging field is optional.
	schema.Required = nil

	return json.MarshalIndent(schema, "", "  ")
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("Error writing %s: %v", path, err)
	}
	log.Printf("Wrote %s", path)
}
