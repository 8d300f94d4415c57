package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamhouse/eventflow/pkg/compat"
	"github.com/streamhouse/eventflow/pkg/registry"
	"github.com/streamhouse/eventflow/pkg/schema"
)

const schemaCommandTimeout = 30 * time.Second

func newSchemaCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "schema",
		Short: "Manage schemas in the registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	command.AddCommand(
		&cobra.Command{
			Use:   "list [subject]",
			Short: "List subjects, or the versions of one subject",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withClient(runSchemaList),
		},
		&cobra.Command{
			Use:   "register <subject> <file>",
			Short: "Register a schema under a subject",
			Args:  cobra.ExactArgs(2),
			RunE:  withClient(runSchemaRegister),
		},
		&cobra.Command{
			Use:   "update <subject> <file>",
			Short: "Register a new schema version after checking compatibility",
			Args:  cobra.ExactArgs(2),
			RunE:  withClient(runSchemaUpdate),
		},
		&cobra.Command{
			Use:   "get <subject> [version]",
			Short: "Show one version of a subject's schema (default latest)",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  withClient(runSchemaGet),
		},
		&cobra.Command{
			Use:   "check-compatibility <subject> <file>",
			Short: "Check a schema against a subject's latest version",
			Args:  cobra.ExactArgs(2),
			RunE:  withClient(runSchemaCheck),
		},
		&cobra.Command{
			Use:   "config [subject] [mode]",
			Short: "Show or set the compatibility mode (global or per subject)",
			Args:  cobra.MaximumNArgs(2),
			RunE:  withClient(runSchemaConfig),
		},
		&cobra.Command{
			Use:   "delete <subject> [version]",
			Short: "Delete a subject or one of its versions",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  withClient(runSchemaDelete),
		},
	)
	return command
}

type schemaRunFunc func(ctx context.Context, client *registry.Client, args []string) error

// withClient builds the registry client and a bounded context before
// handing control to the subcommand.
func withClient(fn schemaRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := registry.NewClient(loadRegistryConfig())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), schemaCommandTimeout)
		defer cancel()
		return fn(ctx, client, args)
	}
}

func loadSchemaDefinition(path string) (*schema.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return schema.Parse(data)
}

func parseVersionArg(args []string) (int, error) {
	if len(args) < 2 || args[1] == "latest" {
		return registry.VersionLatest, nil
	}
	version, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("version must be a number or \"latest\": %q", args[1])
	}
	return version, nil
}

func runSchemaList(ctx context.Context, client *registry.Client, args []string) error {
	if len(args) == 0 {
		subjects, err := client.ListSubjects(ctx)
		if err != nil {
			return err
		}
		if len(subjects) == 0 {
			fmt.Println("no subjects registered")
			return nil
		}
		for _, subject := range subjects {
			versions, err := client.ListVersions(ctx, subject)
			if err != nil {
				fmt.Printf("%s (failed to list versions: %v)\n", subject, err)
				continue
			}
			fmt.Printf("%s  versions: %v\n", subject, versions)
		}
		return nil
	}

	subject := args[0]
	versions, err := client.ListVersions(ctx, subject)
	if err != nil {
		return err
	}
	for _, version := range versions {
		meta, err := client.GetBySubjectVersion(ctx, subject, version)
		if err != nil {
			return err
		}
		fmt.Printf("version %d: id %d\n", meta.Version, meta.ID)
	}
	return nil
}

func runSchemaRegister(ctx context.Context, client *registry.Client, args []string) error {
	subject := args[0]
	def, err := loadSchemaDefinition(args[1])
	if err != nil {
		return err
	}

	id, err := client.Register(ctx, subject, def)
	if err != nil {
		return err
	}
	fmt.Printf("registered %s with schema id %d\n", subject, id)
	return nil
}

func runSchemaUpdate(ctx context.Context, client *registry.Client, args []string) error {
	subject := args[0]
	def, err := loadSchemaDefinition(args[1])
	if err != nil {
		return err
	}

	versions, err := client.ListVersions(ctx, subject)
	if errors.Is(err, registry.ErrUnknownSubject) {
		id, err := client.Register(ctx, subject, def)
		if err != nil {
			return err
		}
		fmt.Printf("no existing schema, registered first version of %s with id %d\n", subject, id)
		return nil
	}
	if err != nil {
		return err
	}

	mode, err := client.GetConfig(ctx, subject)
	if err != nil {
		// Subject has no explicit override; fall back to the global mode.
		mode, err = client.GetConfig(ctx, "")
		if err != nil {
			return err
		}
	}

	history := make([]*schema.Definition, 0, len(versions))
	for _, version := range versions {
		meta, err := client.GetBySubjectVersion(ctx, subject, version)
		if err != nil {
			return err
		}
		history = append(history, meta.Definition)
	}

	if violations := compat.Check(mode, def, history); len(violations) > 0 {
		fmt.Printf("schema is not %s compatible with %s:\n", mode, subject)
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
		return fmt.Errorf("update aborted")
	}

	ok, messages, err := client.CheckCompatibility(ctx, subject, def)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("registry rejected the schema as incompatible with %s:\n", subject)
		for _, msg := range messages {
			fmt.Printf("  - %s\n", msg)
		}
		return fmt.Errorf("update aborted")
	}

	id, err := client.Register(ctx, subject, def)
	if err != nil {
		return err
	}
	fmt.Printf("updated %s, new schema id %d\n", subject, id)
	return nil
}

func runSchemaGet(ctx context.Context, client *registry.Client, args []string) error {
	version, err := parseVersionArg(args)
	if err != nil {
		return err
	}

	meta, err := client.GetBySubjectVersion(ctx, args[0], version)
	if err != nil {
		return err
	}
	fmt.Printf("subject: %s\nversion: %d\nid: %d\nschema: %s\n",
		meta.Subject, meta.Version, meta.ID, meta.Definition.Document())
	return nil
}

func runSchemaCheck(ctx context.Context, client *registry.Client, args []string) error {
	subject := args[0]
	def, err := loadSchemaDefinition(args[1])
	if err != nil {
		return err
	}

	ok, messages, err := client.CheckCompatibility(ctx, subject, def)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("schema is not compatible with %s:\n", subject)
		for _, msg := range messages {
			fmt.Printf("  - %s\n", msg)
		}
		return fmt.Errorf("incompatible schema")
	}
	fmt.Printf("schema is compatible with %s\n", subject)
	return nil
}

func runSchemaConfig(ctx context.Context, client *registry.Client, args []string) error {
	switch len(args) {
	case 0:
		mode, err := client.GetConfig(ctx, "")
		if err != nil {
			return err
		}
		fmt.Printf("global compatibility: %s\n", mode)
		return nil
	case 1:
		// A single argument is a mode when it parses as one, otherwise
		// a subject to inspect.
		if mode, err := compat.ParseMode(args[0]); err == nil {
			if err := client.SetConfig(ctx, "", mode); err != nil {
				return err
			}
			fmt.Printf("global compatibility set to %s\n", mode)
			return nil
		}
		mode, err := client.GetConfig(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s compatibility: %s\n", args[0], mode)
		return nil
	default:
		mode, err := compat.ParseMode(args[1])
		if err != nil {
			return err
		}
		if err := client.SetConfig(ctx, args[0], mode); err != nil {
			return err
		}
		fmt.Printf("%s compatibility set to %s\n", args[0], mode)
		return nil
	}
}

func runSchemaDelete(ctx context.Context, client *registry.Client, args []string) error {
	subject := args[0]
	if len(args) == 1 {
		versions, err := client.DeleteSubject(ctx, subject)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %s (versions %v)\n", subject, versions)
		return nil
	}

	version, err := parseVersionArg(args)
	if err != nil {
		return err
	}
	deleted, err := client.DeleteVersion(ctx, subject, version)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %s version %d\n", subject, deleted)
	return nil
}
