package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carebridge/authz"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "validate":
		handleValidate()
	case "convert":
		handleConvert()
	case "stats":
		handleStats()
	case "check":
		handleCheck()
	case "default":
		handleDefault()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("authz-rules - Rule table tool for the carebridge authorization core")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  authz-rules validate <file>                          - Validate a rule config")
	fmt.Println("  authz-rules convert <input> <output>                 - Convert between formats")
	fmt.Println("  authz-rules stats <file>                             - Show rule table statistics")
	fmt.Println("  authz-rules check <file> <type> <op> k=v [k=v...]    - Evaluate one decision")
	fmt.Println("  authz-rules default <output>                         - Write the stock rule tables")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
	fmt.Println("Check facts: user, role, family, family_role, owner, resource_family, public")
}

func loadConfig(filename string) (*authz.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	loader := authz.NewConfigLoader()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	}
	return nil, fmt.Errorf("unsupported format: %s", filepath.Ext(filename))
}

func saveConfig(cfg *authz.Config, filename string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported format: %s", filepath.Ext(filename))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authz-rules validate <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Configuration valid: %d resource types\n", len(cfg.RuleSets))
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: authz-rules convert <input> <output>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := saveConfig(cfg, os.Args[3]); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], os.Args[3])
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authz-rules stats <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	reg, err := cfg.BuildRegistry()
	if err != nil {
		fmt.Printf("Error building registry: %v\n", err)
		os.Exit(1)
	}
	total := 0
	fmt.Println("Rule tables:")
	for _, resourceType := range reg.Types() {
		rules := reg.Rules(resourceType)
		total += len(rules)
		fmt.Printf("  %-16s %d rules\n", resourceType, len(rules))
		for _, rule := range rules {
			fmt.Printf("    %s -> %s\n", rule.Condition.String(), rule.Level)
		}
	}
	fmt.Printf("Total: %d resource types, %d rules\n", len(reg.Types()), total)
}

func handleCheck() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: authz-rules check <file> <type> <op> k=v [k=v...]")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	reg, err := cfg.BuildRegistry()
	if err != nil {
		fmt.Printf("Error building registry: %v\n", err)
		os.Exit(1)
	}
	engine, err := authz.NewEngine(reg)
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	resourceType := os.Args[3]
	op := authz.Operation(os.Args[4])
	actx, err := parseContextArgs(os.Args[5:])
	if err != nil {
		fmt.Printf("Error parsing context: %v\n", err)
		os.Exit(1)
	}

	details := engine.AccessDetails(actx, resourceType)
	allowed := engine.CanPerform(actx, resourceType, op)
	fmt.Printf("Level:   %s\n", details.Level)
	fmt.Printf("Allowed: %t (%s %s)\n", allowed, op, resourceType)
	if len(details.MatchedRules) == 0 {
		fmt.Println("Matched: none")
	} else {
		fmt.Println("Matched:")
		for _, m := range details.MatchedRules {
			fmt.Printf("  %s\n", m)
		}
	}
	if !allowed {
		os.Exit(2)
	}
}

func parseContextArgs(args []string) (*authz.AccessContext, error) {
	actx := &authz.AccessContext{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected k=v, got %q", arg)
		}
		switch k {
		case "user":
			actx.UserID = v
		case "role":
			actx.Role = authz.Role(v)
		case "family":
			actx.FamilyID = v
		case "family_role":
			actx.FamilyRole = authz.FamilyRole(v)
		case "owner":
			actx.ResourceOwnerID = v
		case "resource_family":
			actx.ResourceFamilyID = v
		case "public":
			actx.ResourcePublic = v == "true" || v == "1"
		default:
			return nil, fmt.Errorf("unknown fact %q", k)
		}
	}
	return actx, nil
}

func handleDefault() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authz-rules default <output>")
		os.Exit(1)
	}
	if err := saveConfig(authz.DefaultConfig(), os.Args[2]); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default rule tables to %s\n", os.Args[2])
}
