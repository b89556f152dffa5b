// cmd/tools/schema-check/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"landreg-workers/internal/ingest"
	"landreg-workers/internal/models"
	"landreg-workers/pkg/recordschema"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	bumpCmd := flag.NewFlagSet("bump", flag.ExitOnError)

	validatePath := validateCmd.String("path", "", "Registry file (default: the embedded registry)")

	checkPath := checkCmd.String("registry", "", "Registry file (default: the embedded registry)")

	bumpPath := bumpCmd.String("path", "", "Registry file to update")
	bumpType := bumpCmd.String("type", "", "Entity type (APPLICANT or PARCEL)")
	bumpVersion := bumpCmd.String("version", "", "New schema version")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := load(*validatePath)
		if err == nil {
			err = recordschema.Check(reg)
		}
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry %s is valid (%d schemas).\n", reg.Version, len(reg.Schemas))

	case "check":
		checkCmd.Parse(os.Args[2:])
		if checkCmd.NArg() == 0 {
			fmt.Println("Error: at least one batch file is required for check.")
			checkCmd.Usage()
			os.Exit(1)
		}
		reg, err := load(*checkPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		v, err := recordschema.NewValidator(reg)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		failed := false
		for _, path := range checkCmd.Args() {
			bad, err := checkBatchFile(os.Stdout, v, path)
			if err != nil {
				fmt.Printf("%s: %v\n", path, err)
				failed = true
				continue
			}
			failed = failed || bad > 0
		}
		if failed {
			os.Exit(1)
		}

	case "bump":
		bumpCmd.Parse(os.Args[2:])
		if *bumpPath == "" || *bumpType == "" || *bumpVersion == "" {
			fmt.Println("Error: path, type, and version are required for bump.")
			bumpCmd.Usage()
			os.Exit(1)
		}
		if err := bumpSchema(*bumpPath, *bumpType, *bumpVersion); err != nil {
			fmt.Printf("Error updating registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated %s schema to %s\n", *bumpType, *bumpVersion)

	case "help":
		fallthrough
	default:
		help()
	}
}

func load(path string) (*recordschema.Registry, error) {
	if path == "" {
		return recordschema.Default(), nil
	}
	return recordschema.LoadRegistry(path)
}

// checkBatchFile validates every record of an ingest request file and
// returns how many records failed.
func checkBatchFile(out io.Writer, v *recordschema.Validator, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var req ingest.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return 0, fmt.Errorf("parse batch: %w", err)
	}

	bad := 0
	for i, rec := range req.Records {
		t, err := models.ParseEntityType(rec.Type)
		if err != nil {
			fmt.Fprintf(out, "%s: record %d: %v\n", path, i, err)
			bad++
			continue
		}
		violations, err := v.Validate(string(t), rec.Payload)
		if err != nil {
			return bad, err
		}
		for _, vi := range violations {
			fmt.Fprintf(out, "%s: record %d (%s): %s: %s [%s]\n", path, i, t, vi.Field, vi.Message, vi.Code)
		}
		if len(violations) > 0 {
			bad++
		}
	}
	fmt.Fprintf(out, "%s: %d records, %d invalid\n", path, len(req.Records), bad)
	return bad, nil
}

func bumpSchema(path, entityType, version string) error {
	reg, err := recordschema.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	t, err := models.ParseEntityType(entityType)
	if err != nil {
		return err
	}

	found := false
	for i := range reg.Schemas {
		if reg.Schemas[i].EntityType == string(t) {
			reg.Schemas[i].Version = version
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no schema for %s", t)
	}
	if err := recordschema.Check(reg); err != nil {
		return err
	}

	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func help() {
	fmt.Println("Usage: schema-check <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  validate  Check that a record schema registry compiles and covers every entity type")
	fmt.Println("  check     Validate the records of ingest batch files against the registry")
	fmt.Println("  bump      Set the version of one entity type's schema")
	fmt.Println("  help      Show this help message")
}
