package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
)

const (
	envUser  = "EQMS_USER"
	envRoles = "EQMS_ROLES"
)

// actingPrincipal resolves the caller from --user/--roles, falling back to
// EQMS_USER and EQMS_ROLES.
func actingPrincipal() domaincapa.Principal {
	user := strings.TrimSpace(userID)
	if user == "" {
		user = strings.TrimSpace(os.Getenv(envUser))
	}
	roles := userRoles
	if len(roles) == 0 {
		if raw := strings.TrimSpace(os.Getenv(envRoles)); raw != "" {
			roles = strings.Split(raw, ",")
		}
	}
	return domaincapa.NewPrincipal(user, roles...)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errs.Wrap(err, "write json output")
	}
	return nil
}

func parseDateFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, errs.E(errs.KindValidation, "--%s must be YYYY-MM-DD", name)
	}
	return &t, nil
}

// resolveText reads a text flag or its -file variant. The two are mutually
// exclusive.
func resolveText(cmd *cobra.Command, name string, required bool) (string, error) {
	inline, _ := cmd.Flags().GetString(name)
	file, _ := cmd.Flags().GetString(name + "-file")

	if strings.TrimSpace(inline) != "" && strings.TrimSpace(file) != "" {
		return "", errors.New(name + " and " + name + "-file are mutually exclusive")
	}

	if strings.TrimSpace(file) != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", errs.Wrapf(err, "read %s file %q", name, file)
		}
		inline = string(raw)
	}

	if required && strings.TrimSpace(inline) == "" {
		return "", errors.New(name + " is required (set --" + name + " or --" + name + "-file)")
	}
	return inline, nil
}
