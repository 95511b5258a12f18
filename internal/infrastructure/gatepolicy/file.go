package gatepolicy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"eqms/internal/domain/capa"
)

const fileVersion = 1

type gateFile struct {
	Version       int                 `toml:"version" yaml:"version"`
	ReviewerRoles []string            `toml:"reviewer_roles" yaml:"reviewer_roles"`
	Gates         map[string]gateSpec `toml:"gates" yaml:"gates"`
	Cancel        *gateSpec           `toml:"cancel" yaml:"cancel"`
}

type gateSpec struct {
	ApproverRoles           []string `toml:"approver_roles" yaml:"approver_roles"`
	RequireEvidence         *bool    `toml:"require_evidence" yaml:"require_evidence"`
	RequireReviewedEvidence *bool    `toml:"require_reviewed_evidence" yaml:"require_reviewed_evidence"`
	RequireActionSignOff    *bool    `toml:"require_action_sign_off" yaml:"require_action_sign_off"`
}

// Load reads a gate policy file. Entries overlay the built-in gate table:
// phases or flags the file leaves out keep their default values.
func Load(path string) (capa.GatePolicy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return capa.DefaultGatePolicy(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return capa.GatePolicy{}, fmt.Errorf("read gate policy: %w", err)
	}
	return Parse(path, raw)
}

// Parse decodes raw by the extension of name (.toml, .yaml, .yml).
func Parse(name string, raw []byte) (capa.GatePolicy, error) {
	var file gateFile

	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return capa.GatePolicy{}, fmt.Errorf("parse gate policy toml: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return capa.GatePolicy{}, fmt.Errorf("parse gate policy yaml: %w", err)
		}
	default:
		return capa.GatePolicy{}, fmt.Errorf("unsupported gate policy format %q", filepath.Ext(name))
	}

	return file.apply(capa.DefaultGatePolicy())
}

func (f gateFile) apply(policy capa.GatePolicy) (capa.GatePolicy, error) {
	if f.Version != fileVersion {
		return capa.GatePolicy{}, fmt.Errorf("unsupported gate policy version %d, expected %d", f.Version, fileVersion)
	}

	if len(f.ReviewerRoles) > 0 {
		policy.ReviewerRoles = toRoles(f.ReviewerRoles)
	}

	gates := make(map[capa.Phase]capa.Gate, len(policy.Gates))
	for phase, gate := range policy.Gates {
		gates[phase] = gate
	}
	for rawPhase, spec := range f.Gates {
		phase, err := capa.ParsePhase(rawPhase)
		if err != nil {
			return capa.GatePolicy{}, fmt.Errorf("gate %q: %w", rawPhase, err)
		}
		if phase.IsTerminal() {
			return capa.GatePolicy{}, fmt.Errorf("gate %q: terminal phases have no exit gate", rawPhase)
		}
		gates[phase] = spec.overlay(gates[phase])
	}
	policy.Gates = gates

	if f.Cancel != nil {
		policy.Cancel = f.Cancel.overlay(policy.Cancel)
	}

	if err := policy.Validate(); err != nil {
		return capa.GatePolicy{}, fmt.Errorf("invalid gate policy: %w", err)
	}
	return policy, nil
}

func (s gateSpec) overlay(base capa.Gate) capa.Gate {
	if s.ApproverRoles != nil {
		base.ApproverRoles = toRoles(s.ApproverRoles)
	}
	if s.RequireEvidence != nil {
		base.RequireEvidence = *s.RequireEvidence
	}
	if s.RequireReviewedEvidence != nil {
		base.RequireReviewedEvidence = *s.RequireReviewedEvidence
	}
	if s.RequireActionSignOff != nil {
		base.RequireActionSignOff = *s.RequireActionSignOff
	}
	return base
}

func toRoles(raw []string) []capa.Role {
	return capa.NewPrincipal("", raw...).Roles
}
