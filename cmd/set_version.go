package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/release-plz-go/internal/setversion"
)

func newSetVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-version <package>@<version> [<package>@<version>...]",
		Short: "Force one or more packages to an explicit version",
		Long: `Bypasses the conventional-commit bump engine entirely: sets the named
packages to exactly the given version and cascades that version into
every sibling manifest that path-depends on them, the same manifest
rewrite the update planner performs for computed bumps.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			changes, err := parseVersionChanges(args)
			if err != nil {
				return err
			}

			ws, _, _, err := loadWorkspace(ctx)
			if err != nil {
				return err
			}

			if err := setversion.Apply(ws, changes); err != nil {
				return err
			}

			return printJSON(cmd, changes)
		},
	}

	return cmd
}

func parseVersionChanges(args []string) ([]setversion.Change, error) {
	changes := make([]setversion.Change, 0, len(args))
	for _, arg := range args {
		name, version, ok := strings.Cut(arg, "@")
		if !ok || name == "" || version == "" {
			return nil, fmt.Errorf("invalid argument %q, want <package>@<version>", arg)
		}
		changes = append(changes, setversion.Change{Package: name, Version: version})
	}
	return changes, nil
}
