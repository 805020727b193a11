// Copyright 2025 The Sigil Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package settings holds the tunables of a contract compilation.
//
// Settings come from three places, in increasing precedence: the built-in
// defaults, the sigil.yml manifest of the project being compiled, and the
// process environment for developer knobs such as debug tracing.
package settings

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/xyproto/env/v2"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefaultManifestName is the file name LoadManifest conventionally reads
// from a project root.
const DefaultManifestName = "sigil.yml"

// DebugEnvVar switches on debug tracing of the code generator when set
// to a true value in the environment.
const DebugEnvVar = "SIGIL_CODEGEN_DEBUG"

// Machine revisions the compiler can target. Later revisions extend
// earlier ones.
const (
	VersionShanghai = "shanghai"
	VersionCancun   = "cancun"
)

type (
	// Optimizer configures the assembly optimizer.
	Optimizer struct {
		// Enabled turns the optimizer on for both halves of a
		// contract.
		Enabled bool `yaml:"enabled"`

		// Runs is the expected number of executions of the deployed
		// code over its lifetime. It weighs code size against
		// execution cost.
		Runs uint `yaml:"runs"`

		// ExpectedExecutionsPerDeployment is Runs for the half of
		// the contract being compiled. Constructor code executes
		// exactly once, so the compiler overrides this with 1 for
		// the creation half.
		ExpectedExecutionsPerDeployment uint `yaml:"-"`
	}

	// Settings is everything a caller can tune about code generation.
	Settings struct {
		// EVMVersion names the revision of the target machine.
		EVMVersion string `yaml:"evm-version"`

		Optimizer Optimizer `yaml:"optimizer"`
	}

	// The manifest wraps the settings under a codegen key so that
	// other tools can share the file.
	manifest struct {
		Codegen Settings `yaml:"codegen"`
	}
)

// Default returns the settings used when a project has no manifest.
func Default() Settings {
	return Settings{
		EVMVersion: VersionCancun,
		Optimizer: Optimizer{
			Enabled:                         true,
			Runs:                            200,
			ExpectedExecutionsPerDeployment: 200,
		},
	}
}

// LoadManifest reads settings from a yaml manifest. Keys absent from the
// file keep their default value.
func LoadManifest(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errors.Wrap(err, "cannot read settings manifest")
	}
	m := manifest{Codegen: Default()}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Settings{}, errors.Wrapf(err, "cannot parse settings manifest %s", path)
	}
	s := m.Codegen
	s.Optimizer.ExpectedExecutionsPerDeployment = s.Optimizer.Runs
	if err := s.Validate(); err != nil {
		return Settings{}, errors.Wrapf(err, "invalid settings manifest %s", path)
	}
	return s, nil
}

// Validate reports every defect of the settings, not only the first.
func (s Settings) Validate() error {
	var errs error
	switch s.EVMVersion {
	case VersionShanghai, VersionCancun:
	default:
		errs = multierr.Append(errs, errors.Errorf("unknown machine version %q", s.EVMVersion))
	}
	if s.Optimizer.Enabled && s.Optimizer.Runs == 0 {
		errs = multierr.Append(errs, errors.New("optimizer runs must be positive when the optimizer is enabled"))
	}
	return errs
}

// SupportsTransientStorage reports whether the targeted machine revision
// has the TLOAD and TSTORE instructions.
func (s Settings) SupportsTransientStorage() bool {
	return s.EVMVersion == VersionCancun
}

// ForCreation derives the settings for compiling the creation half of a
// contract. Constructor code runs once, so the optimizer is told not to
// trade size for execution cost.
func (s Settings) ForCreation() Settings {
	s.Optimizer.ExpectedExecutionsPerDeployment = 1
	return s
}

// Debug reports whether debug tracing is switched on in the
// environment.
func Debug() bool {
	return env.Bool(DebugEnvVar)
}

// NewLogger returns the logger for compiler diagnostics. Debug tracing
// is included when DebugEnvVar is set.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	if Debug() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
