package rules

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sieveworks/sieve/pkg/core"
)

// LoadStageFile loads and compiles a stage rules file (YAML).
//
// The stage parameter is the stage name the caller expects (from pipeline
// configuration). A file may omit its stage key and inherit the caller's
// name; if both are set they must agree.
func LoadStageFile(path, stage string) (*core.RuleSet, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading rules file %s: %w", path, err)
	}

	var spec StageSpec
	if err := k.UnmarshalWithConf("", &spec, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			Result:           &spec,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	}); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	if spec.Stage == "" {
		spec.Stage = stage
	} else if stage != "" && spec.Stage != stage {
		return nil, &core.RuleCompilationError{
			Field:  "stage",
			Reason: fmt.Sprintf("rules file %s declares stage %q, pipeline expects %q", path, spec.Stage, stage),
		}
	}

	set, err := Compile(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// StageFile pairs a stage name with the rules file that defines its gate.
type StageFile struct {
	Stage string
	Path  string
}

// LoadStages loads every stage's rules file in pipeline order. All files are
// compiled even when earlier ones fail, so rule authors see every error in
// one pass; the combined failure is returned with errors.Join.
func LoadStages(files []StageFile) ([]*core.RuleSet, error) {
	var (
		sets    []*core.RuleSet
		loadErr []error
	)
	for _, f := range files {
		set, err := LoadStageFile(f.Path, f.Stage)
		if err != nil {
			loadErr = append(loadErr, err)
			continue
		}
		sets = append(sets, set)
	}
	if len(loadErr) > 0 {
		return nil, errors.Join(loadErr...)
	}
	return sets, nil
}
