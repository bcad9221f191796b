// Command schema-gen writes the JSON schema for the advisor's structured
// review so frontends can validate reports without importing Go code.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/runtime"
)

const outputPath = "schemas/architecture-review.schema.json"

func main() {
	schema, err := runtime.ReviewSchema()
	if err != nil {
		fmt.Printf("Error generating review schema: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		fmt.Printf("Error creating schema directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outputPath, []byte(schema+"\n"), 0o644); err != nil {
		fmt.Printf("Error writing schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Wrote", outputPath)
}
